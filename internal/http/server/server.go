package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/monitor"

	"certdispatch/internal/batch"
	"certdispatch/internal/config"
	"certdispatch/internal/domain"
	"certdispatch/internal/http/handlers"
	"certdispatch/internal/http/middleware"
	"certdispatch/internal/infra/chrome"
	"certdispatch/internal/infra/logging"
	"certdispatch/internal/infra/metrics"
)

// Deps are the collaborators the HTTP surface needs. Pool and Metrics may be nil.
type Deps struct {
	Config  config.Config
	Batch   *batch.Orchestrator
	Pool    *chrome.Pool
	Metrics *metrics.Metrics
}

// New creates and configures the Fiber app.
func New(d Deps) *fiber.App {
	cfg := d.Config
	app := fiber.New(fiber.Config{
		Prefork:               cfg.Server.Prefork,
		DisableStartupMessage: true,
		BodyLimit:             cfg.Limits.MaxUploadBytes,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			msg := "Internal Server Error"

			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
				msg = e.Message
			}

			logging.Warn("Request failed", "path", c.Path(), "status", code, "message", msg)

			return c.Status(code).JSON(fiber.Map{
				"error": fiber.Map{
					"code":    code,
					"message": msg,
				},
			})
		},
	})

	middleware.Register(app, cfg)
	registerRoutes(app, d)

	// Ensure all responses, including 404s, return JSON
	app.Use(func(c *fiber.Ctx) error {
		return fiber.NewError(fiber.StatusNotFound, "Not Found")
	})

	return app
}

func registerRoutes(app *fiber.App, d Deps) {
	v1 := app.Group("/v1")

	if d.Batch != nil {
		timeout := time.Duration(d.Config.Convert.TimeoutSecs+d.Config.Mail.TimeoutSecs) * time.Second
		svc := handlers.NewDocumentService(d.Batch, timeout)

		v1.Post("/certificates", svc.HandleGenerateCertificate)
		v1.Post("/certificates/email", svc.HandleSendCertificateEmail)
		v1.Post("/certificates/send", svc.HandleGenerateAndSendCertificate)
		v1.Post("/offer-letters/send", svc.HandleSendOfferLetter)
		v1.Post("/batches/certificates", svc.HandleBatch(domain.KindCertificate))
		v1.Post("/batches/offer-letters", svc.HandleBatch(domain.KindOfferLetter))
		v1.Get("/outputs", svc.HandleListOutputs)
	}

	v1.Get("/chrome/stats", handlers.HandleChromeStats(d.Config, d.Pool))
	v1.Get("/monitor", monitor.New())

	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}
}
