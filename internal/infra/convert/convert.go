// Package convert turns filled documents into PDFs through external engines:
// LibreOffice for office formats and headless Chrome for HTML.
package convert

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"certdispatch/internal/domain"
)

// Converter converts the document at src into a PDF written to dst.
type Converter interface {
	Convert(ctx context.Context, src, dst string) error
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, src, dst string) error

func (f ConverterFunc) Convert(ctx context.Context, src, dst string) error { return f(ctx, src, dst) }

// Registry picks a converter by source file extension.
type Registry struct {
	byExt map[string]Converter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExt: make(map[string]Converter)}
}

// Register binds c to each extension (".docx", ".html", ...).
func (r *Registry) Register(c Converter, exts ...string) *Registry {
	for _, ext := range exts {
		r.byExt[strings.ToLower(ext)] = c
	}
	return r
}

// For returns the converter for ext.
func (r *Registry) For(ext string) (Converter, error) {
	c, ok := r.byExt[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: no converter for %q documents", domain.ErrConversion, ext)
	}
	return c, nil
}

// ValidatePDF checks that path holds a structurally valid PDF.
func ValidatePDF(path string) error {
	conf := model.NewDefaultConfiguration()
	if err := api.ValidateFile(path, conf); err != nil {
		return fmt.Errorf("%w: invalid pdf %s: %v", domain.ErrConversion, path, err)
	}
	return nil
}
