package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"certdispatch/internal/domain"
)

// SMTPConfig holds the login for an SMTP relay. Address doubles as the
// sender and the login user.
type SMTPConfig struct {
	Host     string
	Port     int
	Address  string
	Password string
	FromName string
	Timeout  time.Duration
}

// SMTP sends mail over implicit TLS with PLAIN authentication.
type SMTP struct {
	cfg SMTPConfig
}

// NewSMTP validates cfg. Credentials must be present.
func NewSMTP(cfg SMTPConfig) (*SMTP, error) {
	if cfg.Address == "" || cfg.Password == "" {
		return nil, errors.New("EMAIL_ADDRESS and EMAIL_PASSWORD must be set")
	}
	if cfg.Host == "" {
		return nil, errors.New("smtp host is empty")
	}
	if cfg.Port == 0 {
		cfg.Port = 465
	}
	return &SMTP{cfg: cfg}, nil
}

func (s *SMTP) buildMsg(msg *Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	var err error
	if s.cfg.FromName != "" {
		err = m.FromFormat(s.cfg.FromName, s.cfg.Address)
	} else {
		err = m.From(s.cfg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sender: %v", domain.ErrDelivery, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("%w: invalid recipient %q: %v", domain.ErrDelivery, msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	for _, a := range msg.Attachments {
		if err := m.AttachReader(a.Filename, bytes.NewReader(a.Content)); err != nil {
			return nil, fmt.Errorf("%w: attach %s: %v", domain.ErrDelivery, a.Filename, err)
		}
	}
	return m, nil
}

func (s *SMTP) client() (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(s.cfg.Address),
		mail.WithPassword(s.cfg.Password),
	}
	if s.cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(s.cfg.Timeout))
	}
	return mail.NewClient(s.cfg.Host, opts...)
}

// Send logs in and transmits msg in a fresh connection.
func (s *SMTP) Send(ctx context.Context, msg *Message) error {
	m, err := s.buildMsg(msg)
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return fmt.Errorf("%w: smtp client: %v", domain.ErrDelivery, err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("%w: smtp: %v", domain.ErrDelivery, err)
	}
	return nil
}
