package docfill

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"os"
	"path"
	"regexp"
	"strings"

	"certdispatch/internal/domain"
	"certdispatch/internal/placeholder"
)

// maxPartBytes bounds a single decompressed XML part.
const maxPartBytes = 64 << 20

var (
	// docxRun captures the text of one WordprocessingML run: <w:t ...>text</w:t>.
	docxRun = regexp.MustCompile(`(<w:t(?:\s[^>]*)?>)([^<]*)(</w:t>)`)
	// odtTextNode captures character data between two tags.
	odtTextNode = regexp.MustCompile(`(>)([^<]+)(<)`)
)

func isDocxTextPart(name string) bool {
	return path.Dir(name) == "word" && strings.HasSuffix(name, ".xml")
}

func isODTTextPart(name string) bool {
	return name == "content.xml" || name == "styles.xml"
}

// fillArchive rewrites the zip at src into dst. Parts selected by isText have
// markers substituted inside each span matched by span; every other entry is
// copied raw, keeping order and compression method.
func fillArchive(src, dst string, isText func(string) bool, span *regexp.Regexp, m placeholder.Mapping) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("%w: open template archive: %v", domain.ErrConversion, err)
	}
	defer r.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrIO, dst, err)
	}

	w := zip.NewWriter(out)
	if err := writeEntries(w, r.File, isText, span, m); err != nil {
		_ = w.Close()
		_ = out.Close()
		return err
	}
	if err := w.Close(); err != nil {
		_ = out.Close()
		return fmt.Errorf("%w: finish %s: %v", domain.ErrIO, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", domain.ErrIO, dst, err)
	}
	return nil
}

func writeEntries(w *zip.Writer, files []*zip.File, isText func(string) bool, span *regexp.Regexp, m placeholder.Mapping) error {
	for _, f := range files {
		if !isText(f.Name) {
			if err := w.Copy(f); err != nil {
				return fmt.Errorf("%w: copy %s: %v", domain.ErrIO, f.Name, err)
			}
			continue
		}

		data, err := readPart(f)
		if err != nil {
			return err
		}
		data = substituteSpans(data, span, m)

		fw, err := w.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   f.Method,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("%w: write %s: %v", domain.ErrIO, f.Name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return fmt.Errorf("%w: write %s: %v", domain.ErrIO, f.Name, err)
		}
	}
	return nil
}

func readPart(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrConversion, f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, maxPartBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", domain.ErrConversion, f.Name, err)
	}
	if len(data) > maxPartBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrConversion, f.Name, maxPartBytes)
	}
	return data, nil
}

// substituteSpans applies m to the unescaped text of every span match. Spans
// without a marker-looking text are left byte-for-byte unchanged.
func substituteSpans(data []byte, span *regexp.Regexp, m placeholder.Mapping) []byte {
	if len(m) == 0 {
		return data
	}
	return span.ReplaceAllFunc(data, func(match []byte) []byte {
		sub := span.FindSubmatch(match)
		text := html.UnescapeString(string(sub[2]))
		if !placeholder.ContainsMarker(text) {
			return match
		}
		filled := placeholder.Substitute(text, m)
		if filled == text {
			return match
		}
		var buf bytes.Buffer
		buf.Write(sub[1])
		_ = xml.EscapeText(&buf, []byte(filled))
		buf.Write(sub[3])
		return buf.Bytes()
	})
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}
