package config

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"gopkg.in/yaml.v3"
)

// PaperSize describes a paper format in inches.
type PaperSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// DocumentConfig describes one document kind: where its template lives, how
// outputs are named and what the accompanying e-mail says.
type DocumentConfig struct {
	Template string `yaml:"template"`
	Prefix   string `yaml:"prefix"`
	Subject  string `yaml:"subject"`
	Body     string `yaml:"body"`
	// SingleBody replaces Body for e-mails sent to one recipient through the
	// API. Empty means Body.
	SingleBody string `yaml:"single_body"`
}

// Config holds the full service configuration.
type Config struct {
	Server struct {
		Host    string `yaml:"host"`
		Port    string `yaml:"port"`
		Prefork bool   `yaml:"prefork"`
		// AllowOrigins is a comma-separated CORS origin list.
		AllowOrigins string `yaml:"allow_origins"`
	} `yaml:"server"`

	Limits struct {
		MaxUploadBytes int `yaml:"max_upload_bytes"`
	} `yaml:"limits"`

	Logger struct {
		File       string `yaml:"file"`
		Level      string `yaml:"level"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"logger"`

	Cache struct {
		RedisHost   string        `yaml:"redis_host"`
		RateLimitDB int           `yaml:"redis_rate_db"`
		LockDB      int           `yaml:"redis_lock_db"`
		LockEnabled bool          `yaml:"lock_enabled"`
		LockTTL     time.Duration `yaml:"lock_ttl"`
	} `yaml:"cache"`

	RateLimiter struct {
		Interval  time.Duration `yaml:"interval"`
		UserLimit int           `yaml:"user_limit"`
	} `yaml:"rate_limiter"`

	Documents struct {
		OutputDir   string         `yaml:"output_dir"`
		Certificate DocumentConfig `yaml:"certificate"`
		OfferLetter DocumentConfig `yaml:"offer_letter"`
	} `yaml:"documents"`

	Convert struct {
		SofficePath string `yaml:"soffice_path"`
		TimeoutSecs int    `yaml:"timeout_secs"`
		ValidatePDF bool   `yaml:"validate_pdf"`
	} `yaml:"convert"`

	PDF struct {
		DefaultPaper    string               `yaml:"default_paper"`
		PaperSizes      map[string]PaperSize `yaml:"paper_sizes"`
		Margin          float64              `yaml:"margin"`
		TimeoutSecs     int                  `yaml:"timeout_secs"`
		ChromePath      string               `yaml:"chrome_path"`
		ChromeNoSandbox bool                 `yaml:"chrome_no_sandbox"`
		ChromePoolSize  int                  `yaml:"chrome_pool_size"`
		UserDataDir     string               `yaml:"user_data_dir"`
	} `yaml:"pdf"`

	Mail struct {
		Provider    string        `yaml:"provider"`
		SMTPHost    string        `yaml:"smtp_host"`
		SMTPPort    int           `yaml:"smtp_port"`
		Address     string        `yaml:"address"`
		Password    string        `yaml:"-"`
		FromName    string        `yaml:"from_name"`
		ResendKey   string        `yaml:"-"`
		TimeoutSecs int           `yaml:"timeout_secs"`
		Timeout     time.Duration `yaml:"-"`
	} `yaml:"mail"`
}

const (
	defaultCertificateSubject = "🎉 Congrats, <NAME>! You’ve Successfully Completed Your Internship in <ROLE>!"
	defaultCertificateBody    = "Dear <NAME>, Congratulations on completing your internship in <ROLE>!"
	defaultCertificateSingle  = "Dear <NAME>,\nCongratulations on completing your internship in <ROLE>!\nWarm regards,\nYour Company\n"
	defaultOfferSubject       = "<DOMAIN> Internship Offer Letter - DNYX"
	defaultOfferBody          = `Dear <NAME>,

I am pleased to extend an offer for the <DOMAIN> Internship position at DNYX. We are excited to welcome you to our Web unit, DNYXWeb.

This 3-month remote internship will provide you with invaluable hands-on experience in <DOMAIN>. We are confident that your skills and enthusiasm will be a great addition to our team, and we look forward to supporting your growth throughout this journey.

Please find the attached offer letter for your review, which includes all the pertinent details about the internship. Should you have any questions or require further clarification, do not hesitate to reach out at contact@dnyx.in

We are delighted to have you join us and look forward to your contributions to DNYX.

With Regards,
Team DNYX
`
)

// Load reads the configuration from CONFIG_PATH, falling back to config.yaml.
func Load() Config {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFrom(path)
}

// LoadFrom reads, defaults and validates the configuration at path.
// It panics on an unreadable file or invalid values.
func LoadFrom(path string) Config {
	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("failed to read config %s: %v", path, err))
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		panic(fmt.Sprintf("failed to parse config %s: %v", path, err))
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		panic(err.Error())
	}
	return cfg
}

// applyEnv lets container env vars override binaries and carry secrets.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHROME_BIN"); v != "" && cfg.PDF.ChromePath == "" {
		cfg.PDF.ChromePath = v
	}
	if v := os.Getenv("SOFFICE_BIN"); v != "" && cfg.Convert.SofficePath == "" {
		cfg.Convert.SofficePath = v
	}
	if v := os.Getenv("EMAIL_ADDRESS"); v != "" {
		cfg.Mail.Address = v
	}
	cfg.Mail.Password = os.Getenv("EMAIL_PASSWORD")
	cfg.Mail.ResendKey = os.Getenv("RESEND_API_KEY")
	if v := os.Getenv("OUTPUT_DIR"); v != "" {
		cfg.Documents.OutputDir = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8000"
	}
	if cfg.Server.AllowOrigins == "" {
		cfg.Server.AllowOrigins = "*"
	}
	if cfg.Limits.MaxUploadBytes == 0 {
		cfg.Limits.MaxUploadBytes = 10 * 1024 * 1024
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
	if cfg.Cache.LockTTL == 0 {
		cfg.Cache.LockTTL = 2 * time.Minute
	}
	if cfg.RateLimiter.Interval == 0 {
		cfg.RateLimiter.Interval = time.Minute
	}

	docs := &cfg.Documents
	if docs.OutputDir == "" {
		docs.OutputDir = "output"
	}
	setDocDefaults(&docs.Certificate, "templates/TEMPLATE.docx", "DNYX-Completion", defaultCertificateSubject, defaultCertificateBody)
	if docs.Certificate.SingleBody == "" {
		docs.Certificate.SingleBody = defaultCertificateSingle
	}
	setDocDefaults(&docs.OfferLetter, "templates/offertemplate.docx", "DNYX-OfferLetter", defaultOfferSubject, defaultOfferBody)

	if cfg.Convert.SofficePath == "" {
		if p, err := exec.LookPath("soffice"); err == nil {
			cfg.Convert.SofficePath = p
		} else {
			cfg.Convert.SofficePath = "/usr/bin/soffice"
		}
	}
	if cfg.Convert.TimeoutSecs == 0 {
		cfg.Convert.TimeoutSecs = 120
	}

	if cfg.PDF.DefaultPaper == "" {
		cfg.PDF.DefaultPaper = "A4"
	}
	if len(cfg.PDF.PaperSizes) == 0 {
		cfg.PDF.PaperSizes = map[string]PaperSize{
			"A4":     {Width: 8.27, Height: 11.69},
			"LETTER": {Width: 8.5, Height: 11},
		}
	}
	if cfg.PDF.Margin == 0 {
		cfg.PDF.Margin = 0.4
	}
	if cfg.PDF.TimeoutSecs == 0 {
		cfg.PDF.TimeoutSecs = 30
	}

	if cfg.Mail.Provider == "" {
		cfg.Mail.Provider = "smtp"
	}
	if cfg.Mail.SMTPHost == "" {
		cfg.Mail.SMTPHost = "smtp.gmail.com"
	}
	if cfg.Mail.SMTPPort == 0 {
		cfg.Mail.SMTPPort = 465
	}
	if cfg.Mail.TimeoutSecs == 0 {
		cfg.Mail.TimeoutSecs = 30
	}
	cfg.Mail.Timeout = time.Duration(cfg.Mail.TimeoutSecs) * time.Second
}

func setDocDefaults(d *DocumentConfig, template, prefix, subject, body string) {
	if d.Template == "" {
		d.Template = template
	}
	if d.Prefix == "" {
		d.Prefix = prefix
	}
	if d.Subject == "" {
		d.Subject = subject
	}
	if d.Body == "" {
		d.Body = body
	}
}

// Validate reports the first invalid value in cfg.
func (cfg Config) Validate() error {
	if cfg.RateLimiter.UserLimit < 0 {
		return fmt.Errorf("rate_limiter.user_limit must not be negative")
	}
	if cfg.RateLimiter.Interval < 0 {
		return fmt.Errorf("rate_limiter.interval must be positive")
	}
	if cfg.Limits.MaxUploadBytes < 0 {
		return fmt.Errorf("limits.max_upload_bytes must not be negative")
	}
	if cfg.PDF.ChromePoolSize < 0 {
		return fmt.Errorf("pdf.chrome_pool_size must not be negative")
	}
	if _, ok := cfg.PDF.PaperSizes[cfg.PDF.DefaultPaper]; !ok {
		return fmt.Errorf("pdf.default_paper %q is not in pdf.paper_sizes", cfg.PDF.DefaultPaper)
	}
	if cfg.Convert.TimeoutSecs < 0 || cfg.PDF.TimeoutSecs < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	switch cfg.Mail.Provider {
	case "smtp", "resend":
	default:
		return fmt.Errorf("mail.provider must be 'smtp' or 'resend', got %q", cfg.Mail.Provider)
	}
	if cfg.Documents.Certificate.Prefix == cfg.Documents.OfferLetter.Prefix {
		return fmt.Errorf("documents prefixes must differ")
	}
	return nil
}
