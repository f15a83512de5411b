package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/xuri/excelize/v2"

	"go-catmat-matcher/internal/catalog"
	"go-catmat-matcher/internal/model"
)

// IngestLimits bound what an uploaded material list may contain
type IngestLimits struct {
	MaxBytes int64
	MaxRows  int
}

var DefaultIngestLimits = IngestLimits{MaxBytes: 10 << 20, MaxRows: 50000}

// SupportedExtensions lists the upload formats ParseMaterials reads
var SupportedExtensions = []string{".csv", ".txt", ".xlsx"}

var (
	descriptionHeaders = []string{"descricao", "descricao do material", "descricao material", "description", "material", "item", "produto", "especificacao"}
	quantityHeaders    = []string{"quantidade", "qtd", "qtde", "quant", "quantity", "qty"}
	unitHeaders        = []string{"unidade", "unidade de medida", "un", "und", "unid", "unit"}
)

// ParseMaterials reads a material list from a csv, txt or xlsx upload and
// assigns sequence indexes in row order. Rows without a description are
// skipped.
func ParseMaterials(filename string, r io.Reader, limits IngestLimits) ([]model.MaterialRecord, error) {
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultIngestLimits.MaxBytes
	}
	if limits.MaxRows <= 0 {
		limits.MaxRows = DefaultIngestLimits.MaxRows
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == ".xls" {
		return nil, &model.ValidationError{Field: "file", Reason: "legacy .xls workbooks are not supported, save as .xlsx"}
	}
	if !slices.Contains(SupportedExtensions, ext) {
		return nil, &model.ValidationError{Field: "file", Reason: fmt.Sprintf("unsupported file type %q", ext)}
	}

	data, err := io.ReadAll(io.LimitReader(r, limits.MaxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limits.MaxBytes {
		return nil, &model.ValidationError{Field: "file", Reason: fmt.Sprintf("file exceeds %d bytes", limits.MaxBytes)}
	}

	var rows [][]string
	switch ext {
	case ".xlsx":
		rows, err = readWorkbook(data)
	case ".txt":
		rows, err = readText(data)
	default:
		rows, err = readDelimited(data, sniffDelimiter(data, ','))
	}
	if err != nil {
		return nil, err
	}
	return rowsToRecords(rows, limits.MaxRows)
}

// readText treats a .txt upload as one description per line unless the
// first line is clearly ';' or tab separated.
func readText(data []byte) ([][]string, error) {
	if d := sniffDelimiter(data, 0); d != 0 {
		return readDelimited(data, d)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	var rows [][]string
	for line := range strings.Lines(string(data)) {
		rows = append(rows, []string{strings.TrimRight(line, "\r\n")})
	}
	return rows, nil
}

var utf8BOM = []byte("\xef\xbb\xbf")

func readDelimited(data []byte, comma rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = comma
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, &model.ValidationError{Field: "file", Reason: fmt.Sprintf("malformed delimited text: %v", err)}
		}
		rows = append(rows, row)
	}
}

// sniffDelimiter returns ';' or tab when the first line uses it more often
// than fallback, otherwise fallback.
func sniffDelimiter(data []byte, fallback rune) rune {
	line, _, _ := bytes.Cut(data, []byte("\n"))
	best, bestCount := fallback, 0
	if fallback != 0 {
		bestCount = bytes.Count(line, []byte(string(fallback)))
	}
	for _, d := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &model.ValidationError{Field: "file", Reason: fmt.Sprintf("unreadable workbook: %v", err)}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &model.ValidationError{Field: "file", Reason: "workbook has no sheets"}
	}
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if sheet == "" {
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

type columns struct {
	description int
	quantity    int
	unit        int
}

// detectHeader recognises a header row by its column names. When several
// columns could hold the description the most specific name wins.
func detectHeader(row []string) (columns, bool) {
	cols := columns{description: -1, quantity: -1, unit: -1}
	descRank := len(descriptionHeaders)
	for i, cell := range row {
		name := catalog.Normalize(cell)
		if rank := slices.Index(descriptionHeaders, name); rank >= 0 {
			if rank < descRank {
				cols.description, descRank = i, rank
			}
			continue
		}
		switch {
		case cols.quantity < 0 && slices.Contains(quantityHeaders, name):
			cols.quantity = i
		case cols.unit < 0 && slices.Contains(unitHeaders, name):
			cols.unit = i
		}
	}
	if cols.description < 0 && cols.quantity < 0 && cols.unit < 0 {
		return columns{description: 0, quantity: -1, unit: -1}, false
	}
	if cols.description < 0 {
		for i := range row {
			if i != cols.quantity && i != cols.unit {
				cols.description = i
				break
			}
		}
	}
	return cols, true
}

func rowsToRecords(rows [][]string, maxRows int) ([]model.MaterialRecord, error) {
	start := slices.IndexFunc(rows, func(row []string) bool {
		return slices.ContainsFunc(row, func(c string) bool { return strings.TrimSpace(c) != "" })
	})
	if start < 0 {
		return nil, &model.ValidationError{Field: "file", Reason: "no material rows found"}
	}
	cols, header := detectHeader(rows[start])
	if header {
		start++
	}
	if cols.description < 0 {
		return nil, &model.ValidationError{Field: "file", Reason: "no description column found"}
	}

	var records []model.MaterialRecord
	for _, row := range rows[start:] {
		desc := CleanDescription(cell(row, cols.description))
		if desc == "" {
			continue
		}
		if len(records) == maxRows {
			return nil, &model.ValidationError{Field: "file", Reason: fmt.Sprintf("more than %d material rows", maxRows)}
		}
		records = append(records, model.MaterialRecord{
			SequenceIndex:  len(records),
			RawDescription: desc,
			Quantity:       CleanDescription(cell(row, cols.quantity)),
			Unit:           CleanUnit(cell(row, cols.unit)),
		})
	}
	if len(records) == 0 {
		return nil, &model.ValidationError{Field: "file", Reason: "no material rows found"}
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
