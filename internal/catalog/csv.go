package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go-catmat-matcher/internal/model"
)

var catalogHeaderNames = map[string]bool{
	"catalog id": true,
	"catalogid":  true,
	"id":         true,
	"codigo":     true,
	"catmat":     true,
	"code":       true,
}

// LoadCSV reads catalog_id,description rows. A header row is detected and skipped.
func LoadCSV(r io.Reader) ([]model.CatalogEntry, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entries []model.CatalogEntry
	line := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog csv: %w", err)
		}
		line++

		if len(row) < 2 {
			if len(row) == 1 && strings.TrimSpace(row[0]) == "" {
				continue
			}
			return nil, &model.ValidationError{Field: "catalog", Reason: fmt.Sprintf("line %d: expected catalog_id,description", line)}
		}
		if line == 1 && catalogHeaderNames[Normalize(row[0])] {
			continue
		}

		entries = append(entries, model.CatalogEntry{
			CatalogID:            strings.TrimSpace(row[0]),
			CanonicalDescription: strings.TrimSpace(row[1]),
		})
	}
	return entries, nil
}

// LoadFile opens path and reads it with LoadCSV
func LoadFile(path string) ([]model.CatalogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()
	return LoadCSV(f)
}
