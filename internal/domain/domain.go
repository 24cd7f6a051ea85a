package domain

import (
	"fmt"
	"strings"
)

// Recipient is one row of a roster.
type Recipient struct {
	Name  string
	Email string
	Role  string
}

// Trimmed returns r with surrounding whitespace removed from every field.
func (r Recipient) Trimmed() Recipient {
	return Recipient{
		Name:  strings.TrimSpace(r.Name),
		Email: strings.TrimSpace(r.Email),
		Role:  strings.TrimSpace(r.Role),
	}
}

// Kind selects the template, output prefix and e-mail wording of a document.
type Kind string

const (
	KindCertificate Kind = "certificate"
	KindOfferLetter Kind = "offer_letter"
)

// Label names the kind in intermediate document file names.
func (k Kind) Label() string {
	switch k {
	case KindCertificate:
		return "Certificate"
	case KindOfferLetter:
		return "OfferLetter"
	}
	return string(k)
}

// ParseKind accepts the canonical names plus the hyphenated URL form.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "certificate", "certificates":
		return KindCertificate, nil
	case "offer_letter", "offer-letter", "offer-letters", "offerletter":
		return KindOfferLetter, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Status is the processing state of one row.
type Status string

const (
	StatusPending Status = "Pending"
	StatusSuccess Status = "Success"
)

// Failed builds the status string reported for a failed row.
func Failed(reason string) Status {
	return Status("Failed: " + reason)
}

// IsFailed reports whether s is a failure status.
func (s Status) IsFailed() bool {
	return strings.HasPrefix(string(s), "Failed")
}

// Outcome is the result of processing one row.
type Outcome struct {
	Name   string `json:"Name"`
	Email  string `json:"Email"`
	Role   string `json:"Role"`
	Status Status `json:"status"`
	Output string `json:"-"`
}

// BatchResult holds one Outcome per input row, in input order.
type BatchResult struct {
	ID      string    `json:"batch_id,omitempty"`
	Results []Outcome `json:"results"`
}

// Failures counts failed rows.
func (b BatchResult) Failures() int {
	n := 0
	for _, o := range b.Results {
		if o.Status.IsFailed() {
			n++
		}
	}
	return n
}
