// Package batch runs a roster through rendering and optional e-mail
// dispatch, one row at a time. A failing row never stops the batch; only
// malformed input does.
package batch

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/xid"

	"certdispatch/internal/config"
	"certdispatch/internal/domain"
	"certdispatch/internal/infra/logging"
	"certdispatch/internal/infra/metrics"
	"certdispatch/internal/placeholder"
)

// Renderer produces the PDF for one recipient.
type Renderer interface {
	Render(ctx context.Context, templatePath string, rec domain.Recipient, outputDir string, kind domain.Kind) (string, error)
}

// Sender delivers one e-mail.
type Sender interface {
	Send(ctx context.Context, to, subject, body string, attachments []string) error
}

// Request is one batch run.
type Request struct {
	Rows      []domain.Recipient
	Kind      domain.Kind
	SendEmail bool
}

// Options configures an Orchestrator.
type Options struct {
	OutputDir string
	Documents map[domain.Kind]config.DocumentConfig
	Metrics   *metrics.Metrics
}

// Orchestrator ties rendering and dispatch together.
type Orchestrator struct {
	renderer  Renderer
	sender    Sender
	outputDir string
	documents map[domain.Kind]config.DocumentConfig
	metrics   *metrics.Metrics
}

// New returns an Orchestrator.
func New(r Renderer, s Sender, opts Options) *Orchestrator {
	return &Orchestrator{
		renderer:  r,
		sender:    s,
		outputDir: opts.OutputDir,
		documents: opts.Documents,
		metrics:   opts.Metrics,
	}
}

// DocumentsFromConfig maps each kind to its configured document settings.
func DocumentsFromConfig(cfg config.Config) map[domain.Kind]config.DocumentConfig {
	return map[domain.Kind]config.DocumentConfig{
		domain.KindCertificate: cfg.Documents.Certificate,
		domain.KindOfferLetter: cfg.Documents.OfferLetter,
	}
}

// OutputDir is where artifacts are written.
func (o *Orchestrator) OutputDir() string { return o.outputDir }

func (o *Orchestrator) document(kind domain.Kind) (config.DocumentConfig, error) {
	doc, ok := o.documents[kind]
	if !ok {
		return config.DocumentConfig{}, fmt.Errorf("%w: no document configured for kind %q", domain.ErrNotFound, kind)
	}
	return doc, nil
}

// RenderOne renders the document of kind for rec.
func (o *Orchestrator) RenderOne(ctx context.Context, rec domain.Recipient, kind domain.Kind) (string, error) {
	doc, err := o.document(kind)
	if err != nil {
		return "", err
	}
	return o.renderer.Render(ctx, doc.Template, rec, o.outputDir, kind)
}

// SendOne e-mails attachments to rec on behalf of a single API request.
// Empty subject or body fall back to the kind's configured wording, with
// SingleBody taking precedence over Body. Both are filled with rec's values.
func (o *Orchestrator) SendOne(ctx context.Context, rec domain.Recipient, kind domain.Kind, subject, body string, attachments []string) error {
	return o.send(ctx, rec, kind, subject, body, attachments, true)
}

func (o *Orchestrator) send(ctx context.Context, rec domain.Recipient, kind domain.Kind, subject, body string, attachments []string, single bool) error {
	doc, err := o.document(kind)
	if err != nil {
		return err
	}
	if subject == "" {
		subject = doc.Subject
	}
	if body == "" && single {
		body = doc.SingleBody
	}
	if body == "" {
		body = doc.Body
	}
	rec = rec.Trimmed()
	m := placeholder.ForRecipient(rec.Name, rec.Role)
	return o.sender.Send(ctx, rec.Email, placeholder.Substitute(subject, m), placeholder.Substitute(body, m), attachments)
}

// Run processes every row in order and reports one Outcome per row.
func (o *Orchestrator) Run(ctx context.Context, req Request) domain.BatchResult {
	res := domain.BatchResult{
		ID:      xid.New().String(),
		Results: make([]domain.Outcome, 0, len(req.Rows)),
	}
	logging.Info("Batch started", "batch_id", res.ID, "kind", req.Kind, "rows", len(req.Rows), "send_email", req.SendEmail)

	for i, row := range req.Rows {
		out := o.runRow(ctx, row, req.Kind, req.SendEmail)
		if out.Status.IsFailed() {
			logging.Warn("Batch row failed", "batch_id", res.ID, "row", i+1, "name", out.Name, "status", string(out.Status))
		}
		o.metrics.ObserveRow(string(req.Kind), out.Status.IsFailed())
		res.Results = append(res.Results, out)
	}

	failed := res.Failures()
	result := "completed"
	if failed > 0 {
		result = "partial"
	}
	o.metrics.ObserveBatch(string(req.Kind), result)
	logging.Info("Batch finished", "batch_id", res.ID, "rows", len(res.Results), "failed", failed)
	return res
}

func (o *Orchestrator) runRow(ctx context.Context, row domain.Recipient, kind domain.Kind, send bool) domain.Outcome {
	row = row.Trimmed()
	out := domain.Outcome{Name: row.Name, Email: row.Email, Role: row.Role, Status: domain.StatusPending}

	pdf, err := o.RenderOne(ctx, row, kind)
	if err != nil {
		out.Status = domain.Failed(err.Error())
		return out
	}
	out.Output = pdf

	if send {
		if err := o.send(ctx, row, kind, "", "", []string{pdf}, false); err != nil {
			out.Status = domain.Failed(err.Error())
			return out
		}
	}
	out.Status = domain.StatusSuccess
	return out
}

// RunFile reads the roster at csvPath and runs it. tmpDir, the upload's
// temporary directory, is removed afterwards whatever the outcome; removal
// errors are ignored. Only a schema error is returned.
func (o *Orchestrator) RunFile(ctx context.Context, csvPath, tmpDir string, kind domain.Kind, send bool) (domain.BatchResult, error) {
	if tmpDir != "" {
		defer func() { _ = os.RemoveAll(tmpDir) }()
	}

	f, err := os.Open(csvPath)
	if err != nil {
		o.metrics.ObserveBatch(string(kind), "rejected")
		return domain.BatchResult{}, fmt.Errorf("%w: failed to open CSV file: %v", domain.ErrSchema, err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		o.metrics.ObserveBatch(string(kind), "rejected")
		logging.Warn("Batch rejected", "kind", kind, "error", err)
		return domain.BatchResult{}, err
	}
	return o.Run(ctx, Request{Rows: rows, Kind: kind, SendEmail: send}), nil
}
