package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/pkg/utils"
)

// Export formats accepted by ExportPartition
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatXLSX = "xlsx"
)

var exportHeader = []string{
	"classification", "sequence_index", "raw_description",
	"catalog_id", "catalog_description", "score", "error", "error_message",
}

// ExportPartition writes the review partition in the given format and
// returns the number of results written.
func ExportPartition(w io.Writer, p model.ReviewPartition, format string) (int, error) {
	switch format {
	case FormatCSV:
		return exportCSV(w, p)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p); err != nil {
			return 0, fmt.Errorf("encode partition: %w", err)
		}
		return p.Len(), nil
	case FormatXLSX:
		return exportXLSX(w, p)
	default:
		return 0, &model.ValidationError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", format)}
	}
}

func exportRow(res model.MatchResult) []string {
	row := []string{
		string(res.Classification),
		strconv.Itoa(res.SequenceIndex),
		res.RawDescription,
		"", "", "",
		strconv.FormatBool(res.Error),
		res.ErrorMessage,
	}
	if c := res.BestCandidate; c != nil {
		row[3] = c.CatalogID
		row[4] = c.Description
		row[5] = strconv.FormatFloat(c.Score, 'f', 4, 64)
	}
	return row
}

func exportCSV(w io.Writer, p model.ReviewPartition) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	count := 0
	for _, group := range [][]model.MatchResult{p.Matched, p.Pending, p.NotFound} {
		for _, res := range group {
			if err := writer.Write(exportRow(res)); err != nil {
				return count, fmt.Errorf("failed to write row: %w", err)
			}
			count++
		}
	}
	writer.Flush()
	return count, writer.Error()
}

// exportXLSX writes one sheet per classification
func exportXLSX(w io.Writer, p model.ReviewPartition) (int, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheets := []struct {
		name    string
		results []model.MatchResult
	}{
		{"Matched", p.Matched},
		{"Pending", p.Pending},
		{"Not Found", p.NotFound},
	}

	count := 0
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				return 0, fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			return 0, fmt.Errorf("create sheet %s: %w", s.name, err)
		}

		header := make([]interface{}, len(exportHeader))
		for j, h := range exportHeader {
			header[j] = h
		}
		if err := f.SetSheetRow(s.name, "A1", &header); err != nil {
			return 0, err
		}
		for j, res := range s.results {
			row := make([]interface{}, 0, len(exportHeader))
			for _, v := range exportRow(res) {
				row = append(row, v)
			}
			// numeric cells so the score column sorts in spreadsheets
			row[1] = res.SequenceIndex
			if res.BestCandidate != nil {
				row[5] = res.BestCandidate.Score
			}
			cellRef, err := excelize.CoordinatesToCellName(1, j+2)
			if err != nil {
				return count, err
			}
			if err := f.SetSheetRow(s.name, cellRef, &row); err != nil {
				return count, fmt.Errorf("write row: %w", err)
			}
			count++
		}
	}
	f.SetActiveSheet(0)

	if err := f.Write(w); err != nil {
		return count, fmt.Errorf("write workbook: %w", err)
	}
	return count, nil
}

// ExportToFile writes the partition into the job's output directory
func ExportToFile(om *utils.OutputManager, p model.ReviewPartition, format string) (model.ExportResult, error) {
	fileName := "review." + format
	path, err := om.GetOutputFilePath(p.JobID, fileName)
	if err != nil {
		return model.ExportResult{}, err
	}
	file, err := os.Create(path)
	if err != nil {
		return model.ExportResult{}, fmt.Errorf("failed to create file: %w", err)
	}
	count, err := ExportPartition(file, p, format)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return model.ExportResult{}, err
	}
	size, err := om.GetFileSize(path)
	if err != nil {
		return model.ExportResult{}, err
	}
	return model.ExportResult{
		Format:      format,
		Path:        path,
		DownloadURL: om.GetDownloadURL(p.JobID, fileName),
		RecordCount: count,
		SizeBytes:   size,
		Timestamp:   time.Now().UTC(),
	}, nil
}
