// Package render fills a template for one recipient and converts the result
// into the distributable PDF.
package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"certdispatch/internal/docfill"
	"certdispatch/internal/domain"
	"certdispatch/internal/infra/convert"
	"certdispatch/internal/infra/lock"
	"certdispatch/internal/infra/logging"
	"certdispatch/internal/infra/metrics"
	"certdispatch/internal/placeholder"
)

// Converters resolves the converter for a template extension.
type Converters interface {
	For(ext string) (convert.Converter, error)
}

// Options configures a Renderer.
type Options struct {
	// Prefixes maps each kind to its output file prefix.
	Prefixes map[domain.Kind]string
	// Locker guards each final artifact name. Defaults to lock.Noop.
	Locker lock.Locker
	// Validate, when set, checks every produced PDF.
	Validate func(path string) error
	Metrics  *metrics.Metrics
}

// Renderer produces one output artifact per call.
type Renderer struct {
	converters Converters
	prefixes   map[domain.Kind]string
	locker     lock.Locker
	validate   func(string) error
	metrics    *metrics.Metrics
}

// New returns a Renderer using converters for format conversion.
func New(converters Converters, opts Options) *Renderer {
	r := &Renderer{
		converters: converters,
		prefixes:   opts.Prefixes,
		locker:     opts.Locker,
		validate:   opts.Validate,
		metrics:    opts.Metrics,
	}
	if r.locker == nil {
		r.locker = lock.Noop{}
	}
	return r
}

// Prefix returns the output prefix for kind.
func (r *Renderer) Prefix(kind domain.Kind) string {
	if p, ok := r.prefixes[kind]; ok && p != "" {
		return p
	}
	return string(kind)
}

// OutputPath returns where Render writes the artifact for name and kind.
func (r *Renderer) OutputPath(outputDir, name string, kind domain.Kind) string {
	return filepath.Join(outputDir, r.Prefix(kind)+"-"+safeName(name)+".pdf")
}

// IntermediatePath returns the transient filled-document path.
func IntermediatePath(outputDir, name string, kind domain.Kind, templateExt string) string {
	return filepath.Join(outputDir, safeName(name)+"_"+kind.Label()+templateExt)
}

// safeName keeps recipient names from escaping the output directory.
func safeName(name string) string {
	return strings.NewReplacer("/", "_", "\\", "_", "\x00", "_").Replace(strings.TrimSpace(name))
}

// Render fills templatePath with the recipient's values, converts it to PDF
// under outputDir and returns the PDF path. An existing artifact with the
// same name is overwritten. The intermediate document never outlives the call.
func (r *Renderer) Render(ctx context.Context, templatePath string, rec domain.Recipient, outputDir string, kind domain.Kind) (path string, err error) {
	start := time.Now()
	defer func() { r.metrics.ObserveRender(string(kind), time.Since(start), err) }()

	rec = rec.Trimmed()
	if rec.Name == "" {
		return "", fmt.Errorf("%w: recipient name is empty", domain.ErrInvalidRecipient)
	}

	if _, err := os.Stat(templatePath); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: template %s", domain.ErrNotFound, templatePath)
		}
		return "", fmt.Errorf("%w: stat template: %v", domain.ErrIO, err)
	}
	ext := strings.ToLower(filepath.Ext(templatePath))
	conv, err := r.converters.For(ext)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create output dir %s: %v", domain.ErrIO, outputDir, err)
	}

	final := r.OutputPath(outputDir, rec.Name, kind)
	intermediate := IntermediatePath(outputDir, rec.Name, kind, ext)

	unlock, err := r.locker.Lock(ctx, final)
	if err != nil {
		return "", fmt.Errorf("%w: lock %s: %v", domain.ErrIO, final, err)
	}
	defer unlock()

	if err := docfill.FillFile(templatePath, intermediate, placeholder.ForRecipient(rec.Name, rec.Role)); err != nil {
		return "", err
	}
	defer func() {
		if rmErr := os.Remove(intermediate); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("Failed to remove intermediate document", "path", intermediate, "error", rmErr)
		}
	}()
	logging.Debug("Intermediate document created", "path", intermediate)

	if err := conv.Convert(ctx, intermediate, final); err != nil {
		return "", err
	}
	if r.validate != nil {
		if err := r.validate(final); err != nil {
			return "", err
		}
	}

	logging.Info("Document rendered", "kind", kind, "name", rec.Name, "path", final)
	return final, nil
}
