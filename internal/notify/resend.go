package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/resend/resend-go/v3"

	"certdispatch/internal/domain"
)

// ResendConfig holds Resend API settings.
type ResendConfig struct {
	APIKey      string
	SenderEmail string
	SenderName  string
}

// Resend sends mail through the Resend HTTP API.
type Resend struct {
	client *resend.Client
	cfg    ResendConfig
}

// NewResend returns a Resend transport. The API key must be present.
func NewResend(cfg ResendConfig) (*Resend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("RESEND_API_KEY must be set")
	}
	if cfg.SenderEmail == "" {
		return nil, errors.New("sender address is empty")
	}
	return &Resend{client: resend.NewClient(cfg.APIKey), cfg: cfg}, nil
}

func (r *Resend) request(msg *Message) *resend.SendEmailRequest {
	from := r.cfg.SenderEmail
	if r.cfg.SenderName != "" {
		from = fmt.Sprintf("%s <%s>", r.cfg.SenderName, r.cfg.SenderEmail)
	}
	req := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
	}
	for _, a := range msg.Attachments {
		req.Attachments = append(req.Attachments, &resend.Attachment{
			Filename:    a.Filename,
			Content:     a.Content,
			ContentType: a.ContentType,
		})
	}
	return req
}

// Send implements Transport.
func (r *Resend) Send(ctx context.Context, msg *Message) error {
	if _, err := r.client.Emails.SendWithContext(ctx, r.request(msg)); err != nil {
		return fmt.Errorf("%w: resend: %v", domain.ErrDelivery, err)
	}
	return nil
}
