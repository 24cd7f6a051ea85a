package handlers

import (
	"github.com/gofiber/fiber/v2"

	"certdispatch/internal/config"
	"certdispatch/internal/infra/chrome"
)

// HandleChromeStats reports the Chrome tab pool used for HTML templates.
func HandleChromeStats(cfg config.Config, pool *chrome.Pool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if pool == nil {
			return c.JSON(chrome.Stats{
				PoolSizeConf: cfg.PDF.ChromePoolSize,
				TimeoutSecs:  cfg.PDF.TimeoutSecs,
			})
		}
		return c.JSON(pool.Stats(cfg.PDF.TimeoutSecs))
	}
}
