package convert

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"certdispatch/internal/config"
	"certdispatch/internal/domain"
	"certdispatch/internal/infra/chrome"
	"certdispatch/internal/infra/logging"
)

// Chrome prints HTML documents to PDF with headless Chrome. With a pool it
// renders in a leased tab, otherwise it starts a browser per conversion.
type Chrome struct {
	cfg   config.Config
	pool  *chrome.Pool
	paper config.PaperSize

	renderTab func(ctx context.Context, html string, paper config.PaperSize, margin float64) ([]byte, error)
}

// NewChrome returns an HTML converter. pool may be nil.
func NewChrome(cfg config.Config, pool *chrome.Pool) *Chrome {
	return &Chrome{
		cfg:       cfg,
		pool:      pool,
		paper:     cfg.PDF.PaperSizes[cfg.PDF.DefaultPaper],
		renderTab: renderInExistingTab,
	}
}

// Convert renders the HTML file at src into dst.
func (c *Chrome) Convert(ctx context.Context, src, dst string) error {
	html, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", domain.ErrIO, src, err)
	}

	pdfBuf, err := c.render(ctx, string(html))
	if err != nil {
		return fmt.Errorf("%w: chrome: %v", domain.ErrConversion, err)
	}

	if err := os.WriteFile(dst, pdfBuf, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrIO, dst, err)
	}
	return nil
}

func (c *Chrome) render(ctx context.Context, html string) ([]byte, error) {
	timeout := time.Duration(c.cfg.PDF.TimeoutSecs) * time.Second
	if c.pool == nil {
		return renderWithChrome(ctx, html, c.paper, c.cfg.PDF.Margin, timeout, c.cfg)
	}

	runOnce := func() ([]byte, error) {
		acquireCtx, acquireCancel := context.WithTimeout(ctx, 5*time.Second)
		defer acquireCancel()

		tab, err := c.pool.Acquire(acquireCtx)
		if err != nil {
			return nil, err
		}

		tabCtx, cancel := context.WithTimeout(tab.Ctx, timeout)
		pdfBuf, renderErr := c.renderTab(tabCtx, html, c.paper, c.cfg.PDF.Margin)
		cancel()

		c.pool.Release(tab, renderErr)
		return pdfBuf, renderErr
	}

	pdfBuf, err := runOnce()
	if err != nil && chrome.IsSessionInterrupted(err) && ctx.Err() == nil {
		logging.Warn("Chrome session interrupted; restarting pool and retrying once", "error", err)
		_ = c.pool.Restart()
		return runOnce()
	}
	return pdfBuf, err
}

// renderWithChrome starts a throwaway Chrome instance for a single document.
func renderWithChrome(ctx context.Context, html string, paper config.PaperSize, margin float64, timeout time.Duration, cfg config.Config) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "chromedata-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chrome.AllocatorOptions(cfg, tmpDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if timeout > 0 {
		chromeCtx, cancel = context.WithTimeout(chromeCtx, timeout)
		defer cancel()
	}

	return renderInExistingTab(chromeCtx, html, paper, margin)
}

// renderInExistingTab loads html into the tab behind ctx and prints it.
func renderInExistingTab(ctx context.Context, html string, paper config.PaperSize, margin float64) ([]byte, error) {
	var pdfBuf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frame, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frame.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(200*time.Millisecond),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paper.Width).
				WithPaperHeight(paper.Height).
				WithMarginTop(margin).
				WithMarginBottom(margin).
				WithMarginLeft(margin).
				WithMarginRight(margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}
