// Package notify delivers rendered documents by e-mail. It sends exactly one
// message per call and never retries; subject and body are sent as given.
package notify

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"certdispatch/internal/domain"
	"certdispatch/internal/infra/logging"
	"certdispatch/internal/infra/metrics"
)

// Message is a fully prepared e-mail.
type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Attachment is a file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Transport hands a Message to a mail provider.
type Transport interface {
	Send(ctx context.Context, msg *Message) error
}

// Dispatcher validates attachments and sends one message per call.
type Dispatcher struct {
	transport Transport
	metrics   *metrics.Metrics
}

// NewDispatcher returns a Dispatcher sending through t.
func NewDispatcher(t Transport, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{transport: t, metrics: m}
}

// Send e-mails subject and body with the files at attachments to recipient.
func (d *Dispatcher) Send(ctx context.Context, recipient, subject, body string, attachments []string) error {
	msg := &Message{To: strings.TrimSpace(recipient), Subject: subject, Body: body}
	for _, p := range attachments {
		a, err := loadAttachment(p)
		if err != nil {
			return err
		}
		msg.Attachments = append(msg.Attachments, a)
	}

	// Attachments are checked first so a missing file reports NotFound
	// regardless of the address.
	if msg.To == "" {
		return fmt.Errorf("%w: recipient address is empty", domain.ErrDelivery)
	}

	err := d.transport.Send(ctx, msg)
	d.metrics.ObserveDispatch(err)
	if err != nil {
		logging.Warn("E-mail delivery failed", "to", msg.To, "error", err)
		if errors.Is(err, domain.ErrDelivery) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}

	logging.Info("E-mail sent", "to", msg.To, "attachments", len(msg.Attachments))
	return nil
}

func loadAttachment(path string) (Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Attachment{}, fmt.Errorf("%w: attachment %s", domain.ErrNotFound, path)
		}
		return Attachment{}, fmt.Errorf("%w: read attachment %s: %v", domain.ErrIO, path, err)
	}
	ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if ct == "" {
		ct = "application/octet-stream"
	}
	return Attachment{Filename: filepath.Base(path), ContentType: ct, Content: data}, nil
}

// Unavailable is a Transport that always fails with reason. It stands in when
// the service starts without mail credentials.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Send(context.Context, *Message) error {
	return fmt.Errorf("%w: %v", domain.ErrDelivery, u.Reason)
}
