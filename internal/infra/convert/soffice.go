package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"certdispatch/internal/domain"
	"certdispatch/internal/infra/logging"
)

// Soffice converts office documents with LibreOffice in headless mode.
// LibreOffice serialises conversions per user profile, so callers should not
// run it in unbounded parallel.
type Soffice struct {
	Path    string
	Timeout time.Duration
}

// NewSoffice returns a LibreOffice converter using the binary at path.
func NewSoffice(path string, timeout time.Duration) *Soffice {
	return &Soffice{Path: path, Timeout: timeout}
}

// Convert runs soffice --convert-to pdf and moves the generated file to dst.
func (s *Soffice) Convert(ctx context.Context, src, dst string) error {
	if s.Path == "" {
		return fmt.Errorf("%w: LibreOffice path not configured", domain.ErrConversion)
	}
	if _, err := os.Stat(s.Path); err != nil {
		return fmt.Errorf("%w: LibreOffice not found at: %s", domain.ErrConversion, s.Path)
	}

	outDir := filepath.Dir(dst)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("%w: create output dir: %v", domain.ErrIO, err)
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.Path, "--headless", "--convert-to", "pdf", "--outdir", outDir, src)
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w: LibreOffice timed out after %s", domain.ErrConversion, s.Timeout)
		}
		return fmt.Errorf("%w: LibreOffice failed: %v: %s", domain.ErrConversion, err, strings.TrimSpace(stderr.String()))
	}

	// LibreOffice names the output after the input file.
	generated := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))+".pdf")
	if _, err := os.Stat(generated); err != nil {
		return fmt.Errorf("%w: PDF was not generated for %s", domain.ErrConversion, src)
	}
	if generated != dst {
		if err := os.Rename(generated, dst); err != nil {
			_ = os.Remove(generated)
			return fmt.Errorf("%w: move %s: %v", domain.ErrIO, generated, err)
		}
	}

	logging.Debug("LibreOffice conversion done", "src", src, "dst", dst, "duration_ms", time.Since(start).Milliseconds())
	return nil
}
