package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"certdispatch/internal/domain"
)

// RequiredColumns must all be present in a roster header.
var RequiredColumns = []string{"Name", "Email", "Domain"}

// ReadRows parses a roster. The header is checked before any data row is
// read; a missing column yields domain.ErrSchema. Rows shorter than the
// header get empty values for the absent cells.
func ReadRows(r io.Reader) ([]domain.Recipient, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: CSV is empty, required columns: %s", domain.ErrSchema, strings.Join(RequiredColumns, ", "))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read CSV header: %v", domain.ErrSchema, err)
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := idx[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: CSV missing required columns: %s", domain.ErrSchema, strings.Join(missing, ", "))
	}

	cell := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []domain.Recipient
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read CSV: %v", domain.ErrSchema, err)
		}
		rows = append(rows, domain.Recipient{
			Name:  cell(rec, "Name"),
			Email: cell(rec, "Email"),
			Role:  cell(rec, "Domain"),
		}.Trimmed())
	}
	return rows, nil
}
