package notify

import (
	"fmt"

	"certdispatch/internal/config"
	"certdispatch/internal/infra/logging"
)

// NewTransport picks a Transport for cfg.Mail.Provider. Missing credentials
// yield an Unavailable transport so render-only operations keep working.
func NewTransport(cfg config.Config) Transport {
	var (
		t   Transport
		err error
	)
	switch cfg.Mail.Provider {
	case "resend":
		t, err = NewResend(ResendConfig{
			APIKey:      cfg.Mail.ResendKey,
			SenderEmail: cfg.Mail.Address,
			SenderName:  cfg.Mail.FromName,
		})
	case "smtp", "":
		t, err = NewSMTP(SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Address:  cfg.Mail.Address,
			Password: cfg.Mail.Password,
			FromName: cfg.Mail.FromName,
			Timeout:  cfg.Mail.Timeout,
		})
	default:
		err = fmt.Errorf("unknown mail provider %q", cfg.Mail.Provider)
	}
	if err != nil {
		logging.Warn("E-mail delivery disabled", "provider", cfg.Mail.Provider, "reason", err.Error())
		return Unavailable{Reason: err}
	}
	logging.Info("E-mail transport ready", "provider", cfg.Mail.Provider)
	return t
}
