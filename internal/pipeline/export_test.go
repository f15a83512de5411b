package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/pkg/utils"
)

func samplePartition() model.ReviewPartition {
	return Partition("job-1", model.StateCompleted, map[int]model.MatchResult{
		0: {SequenceIndex: 0, RawDescription: "caneta azul", Classification: model.ClassMatched,
			BestCandidate: &model.MatchCandidate{CatalogID: "CAT-001", Score: 0.9, Description: "CANETA ESFEROGRAFICA AZUL"}},
		1: {SequenceIndex: 1, RawDescription: "papel", Classification: model.ClassPending,
			BestCandidate: &model.MatchCandidate{CatalogID: "CAT-002", Score: 0.7}},
		2: {SequenceIndex: 2, RawDescription: "parafuso", Classification: model.ClassNotFound, Error: true, ErrorMessage: "timeout"},
	})
}

func TestExportCSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := ExportPartition(&buf, samplePartition(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, exportHeader, rows[0])
	assert.Equal(t, []string{"matched", "0", "caneta azul", "CAT-001", "CANETA ESFEROGRAFICA AZUL", "0.9000", "false", ""}, rows[1])
	assert.Equal(t, []string{"not_found", "2", "parafuso", "", "", "", "true", "timeout"}, rows[3])
}

func TestExportJSON(t *testing.T) {
	var buf bytes.Buffer
	_, err := ExportPartition(&buf, samplePartition(), FormatJSON)
	require.NoError(t, err)

	var got model.ReviewPartition
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, samplePartition(), got)
}

func TestExportXLSXHasSheetPerClassification(t *testing.T) {
	var buf bytes.Buffer
	_, err := ExportPartition(&buf, samplePartition(), FormatXLSX)
	require.NoError(t, err)

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Matched", "Pending", "Not Found"}, f.GetSheetList())

	rows, err := f.GetRows("Matched")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "CAT-001", rows[1][3])

	rows, err = f.GetRows("Not Found")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "parafuso", rows[1][2])
}

func TestExportUnknownFormat(t *testing.T) {
	_, err := ExportPartition(&bytes.Buffer{}, samplePartition(), "pdf")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestExportToFile(t *testing.T) {
	om := utils.NewOutputManager(t.TempDir())

	res, err := ExportToFile(om, samplePartition(), FormatCSV)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RecordCount)
	assert.Equal(t, "/api/v1/download/job-1/review.csv", res.DownloadURL)

	info, err := os.Stat(res.Path)
	require.NoError(t, err)
	assert.Equal(t, info.Size(), res.SizeBytes)

	_, err = ExportToFile(om, samplePartition(), "pdf")
	assert.Error(t, err)
	_, err = os.Stat(om.BaseOutputDir + "/job-1/review.pdf")
	assert.True(t, os.IsNotExist(err))
}
