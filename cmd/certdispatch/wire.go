package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"certdispatch/internal/batch"
	"certdispatch/internal/config"
	"certdispatch/internal/domain"
	"certdispatch/internal/infra/chrome"
	"certdispatch/internal/infra/convert"
	"certdispatch/internal/infra/lock"
	"certdispatch/internal/infra/logging"
	"certdispatch/internal/infra/metrics"
	"certdispatch/internal/notify"
	"certdispatch/internal/render"
)

// service holds the wired service graph.
type service struct {
	cfg          config.Config
	pool         *chrome.Pool
	redis        *redis.Client
	metrics      *metrics.Metrics
	orchestrator *batch.Orchestrator
}

func initLogging(cfg config.Config) {
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)
}

// build wires converters, renderer, dispatcher and orchestrator from cfg.
func build(cfg config.Config) (*service, error) {
	rt := &service{cfg: cfg, metrics: metrics.New()}

	if err := os.MkdirAll(cfg.Documents.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create output dir: %v", domain.ErrIO, err)
	}

	pool, err := chrome.NewPool(cfg)
	switch {
	case errors.Is(err, chrome.ErrPoolDisabled):
		logging.Info("Chrome pool disabled, HTML templates use one-shot browsers")
	case err != nil:
		return nil, fmt.Errorf("chrome pool: %w", err)
	default:
		rt.pool = pool
	}

	soffice := convert.NewSoffice(cfg.Convert.SofficePath, time.Duration(cfg.Convert.TimeoutSecs)*time.Second)
	registry := convert.NewRegistry().
		Register(soffice, ".docx", ".odt", ".txt").
		Register(convert.NewChrome(cfg, rt.pool), ".html", ".htm")

	var locker lock.Locker = lock.Noop{}
	if cfg.Cache.LockEnabled && cfg.Cache.RedisHost != "" {
		rt.redis = redis.NewClient(&redis.Options{
			Addr: cfg.Cache.RedisHost,
			DB:   cfg.Cache.LockDB,
		})
		locker = lock.NewRedis(rt.redis, cfg.Cache.LockTTL)
		logging.Info("Using Redis for output locks", "addr", cfg.Cache.RedisHost, "db", cfg.Cache.LockDB)
	}

	opts := render.Options{
		Prefixes: map[domain.Kind]string{
			domain.KindCertificate: cfg.Documents.Certificate.Prefix,
			domain.KindOfferLetter: cfg.Documents.OfferLetter.Prefix,
		},
		Locker:  locker,
		Metrics: rt.metrics,
	}
	if cfg.Convert.ValidatePDF {
		opts.Validate = convert.ValidatePDF
	}
	renderer := render.New(registry, opts)

	dispatcher := notify.NewDispatcher(notify.NewTransport(cfg), rt.metrics)

	rt.orchestrator = batch.New(renderer, dispatcher, batch.Options{
		OutputDir: cfg.Documents.OutputDir,
		Documents: batch.DocumentsFromConfig(cfg),
		Metrics:   rt.metrics,
	})
	return rt, nil
}

func (rt *service) Close() {
	if rt.pool != nil {
		rt.pool.Close()
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			logging.Warn("Failed to close Redis client", "error", err)
		}
	}
}
