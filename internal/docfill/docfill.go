// Package docfill produces a filled copy of a template document by
// substituting markers in its text content.
//
//   - .docx: every word/*.xml part, one <w:t> run at a time
//   - .odt:  content.xml and styles.xml, one text node at a time
//   - .html, .htm, .txt: the whole file
package docfill

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"certdispatch/internal/domain"
	"certdispatch/internal/placeholder"
)

// Supported reports whether templates with extension ext can be filled.
func Supported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".docx", ".odt", ".html", ".htm", ".txt":
		return true
	}
	return false
}

// FillFile reads the template at src, substitutes m throughout its text and
// writes the result to dst. dst is removed again if writing fails.
func FillFile(src, dst string, m placeholder.Mapping) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: template %s", domain.ErrNotFound, src)
		}
		return fmt.Errorf("%w: stat template: %v", domain.ErrIO, err)
	}

	var err error
	switch strings.ToLower(filepath.Ext(src)) {
	case ".docx":
		err = fillArchive(src, dst, isDocxTextPart, docxRun, m)
	case ".odt":
		err = fillArchive(src, dst, isODTTextPart, odtTextNode, m)
	case ".html", ".htm":
		err = fillPlain(src, dst, m, escapeHTML)
	case ".txt":
		err = fillPlain(src, dst, m, nil)
	default:
		return fmt.Errorf("%w: unsupported template format %q", domain.ErrConversion, filepath.Ext(src))
	}
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func fillPlain(src, dst string, m placeholder.Mapping, escape func(string) string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("%w: read template: %v", domain.ErrIO, err)
	}
	out := placeholder.SubstituteFunc(string(data), m, escape)
	if err := os.WriteFile(dst, []byte(out), 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", domain.ErrIO, dst, err)
	}
	return nil
}
