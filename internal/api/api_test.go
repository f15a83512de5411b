package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-catmat-matcher/internal/api/handler"
	"go-catmat-matcher/internal/catalog"
	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/pkg/router"
	"go-catmat-matcher/pkg/utils"
)

type testServer struct {
	controller *pipeline.Controller
	router     *router.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cat, err := catalog.NewMemory(16)
	require.NoError(t, err)
	require.NoError(t, cat.Publish("v1", []model.CatalogEntry{
		{CatalogID: "CAT-001", CanonicalDescription: "Caneta esferográfica azul"},
		{CatalogID: "CAT-002", CanonicalDescription: "Papel A4 75g/m²"},
		{CatalogID: "CAT-003", CanonicalDescription: "Grampeador de mesa"},
	}))

	reg := prometheus.NewRegistry()
	defaults := pipeline.DefaultSettings
	defaults.Retry.InitialDelay = time.Millisecond
	controller := pipeline.NewController(cat,
		pipeline.WithDefaults(defaults),
		pipeline.WithMetrics(pipeline.MustNewMetrics(reg)))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = controller.Close(ctx)
	})

	h := handler.New(handler.Config{
		Controller: controller,
		Catalog:    cat,
		Outputs:    utils.NewOutputManager(t.TempDir()),
		Limits:     pipeline.DefaultIngestLimits,
	})
	r := router.New(nil)
	RegisterRoutes(r, h, reg)
	return &testServer{controller: controller, router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createJob(t *testing.T, autoStart bool) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/v1/jobs", handler.CreateJobRequest{
		Name:      "almoxarifado",
		AutoStart: autoStart,
		Records: []handler.RecordInput{
			{Description: "Caneta esferográfica azul", Quantity: "10", Unit: "un"},
			{Description: "zzzz qqqq wwww"},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[handler.CreateJobResponse](t, rec)
	assert.Equal(t, 2, resp.Total)
	assert.True(t, resp.Accepted)
	return resp.JobID
}

func (s *testServer) waitDone(t *testing.T, jobID string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	state, err := s.controller.Wait(ctx, jobID)
	require.NoError(t, err)
	require.Equal(t, model.StateCompleted, state)
}

func TestCreateJobAndReview(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, true)
	s.waitDone(t, jobID)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[model.JobSummary](t, rec)
	assert.Equal(t, "almoxarifado", summary.Name)
	assert.Equal(t, "v1", summary.CatalogVersion)
	assert.Equal(t, 2, summary.ProcessedCount)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/progress", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	progress := decode[model.Progress](t, rec)
	assert.Equal(t, 2, progress.EventCount)
	assert.InDelta(t, 100.0, progress.Percent, 1e-9)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	partition := decode[model.ReviewPartition](t, rec)
	require.Len(t, partition.Matched, 1)
	assert.Equal(t, "CAT-001", partition.Matched[0].BestCandidate.CatalogID)
	require.Len(t, partition.NotFound, 1)
	assert.Equal(t, 1, partition.NotFound[0].SequenceIndex)
	assert.Empty(t, partition.Pending)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.JobSummary](t, rec), 1)
}

func TestCreateJobValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]any{
		"bad json":     "{",
		"no records":   handler.CreateJobRequest{Records: []handler.RecordInput{}},
		"blank record": handler.CreateJobRequest{Records: []handler.RecordInput{{Description: ""}}},
		"threshold":    map[string]any{"high_threshold": 1.5, "records": []any{map[string]string{"description": "caneta"}}},
		"inverted":     map[string]any{"high_threshold": 0.3, "low_threshold": 0.6, "records": []any{map[string]string{"description": "caneta"}}},
		"concurrency":  map[string]any{"concurrency": 1000, "records": []any{map[string]string{"description": "caneta"}}},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/v1/jobs", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[handler.ErrorResponse](t, rec).Error)
		})
	}
	assert.Empty(t, s.controller.ListJobs())
}

func TestUnknownJob(t *testing.T) {
	s := newTestServer(t)
	for _, path := range []string{"/api/v1/jobs/nope", "/api/v1/jobs/nope/progress", "/api/v1/jobs/nope/review", "/api/v1/jobs/nope/events"} {
		assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, path, nil).Code, path)
	}
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/api/v1/jobs/nope/start", nil).Code)
}

func TestLifecycleConflicts(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, false)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/review", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/pause", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode[handler.ErrorResponse](t, rec).Error, "created")

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StateCancelled, decode[model.Progress](t, rec).State)

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[model.ReviewPartition](t, rec).Len())

	assert.Equal(t, http.StatusMethodNotAllowed, s.do(t, http.MethodDelete, "/api/v1/jobs", nil).Code)
}

func TestClosedControllerRejectsNewJobs(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.controller.Close(ctx))

	rec := s.do(t, http.MethodPost, "/api/v1/jobs", handler.CreateJobRequest{
		Records: []handler.RecordInput{{Description: "Caneta esferográfica azul"}},
	})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, rec.Body.String())
	assert.Contains(t, decode[handler.ErrorResponse](t, rec).Error, "closed")

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/start", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestUploadJob(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "pedido.csv")
	require.NoError(t, err)
	io.WriteString(fw, "Descrição;Quantidade;Unidade\nPapel A4 75g/m²;5;cx\nGrampeador de mesa;1;un\n")
	require.NoError(t, mw.WriteField("high_threshold", "0,9"))
	require.NoError(t, mw.WriteField("auto_start", "true"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	resp := decode[handler.CreateJobResponse](t, rec)
	assert.Equal(t, 2, resp.Total)
	s.waitDone(t, resp.JobID)

	summary, err := s.controller.GetJob(resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "pedido.csv", summary.Name)
	assert.InDelta(t, 0.9, summary.Thresholds.High, 1e-9)
	assert.InDelta(t, model.DefaultThresholds.Low, summary.Thresholds.Low, 1e-9)
}

func TestUploadRejectsLegacyExcel(t *testing.T) {
	s := newTestServer(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "pedido.xls")
	require.NoError(t, err)
	fw.Write([]byte{0xd0, 0xcf, 0x11, 0xe0})
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestStreamEvents(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, true)
	s.waitDone(t, jobID)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	out := rec.Body.String()
	assert.Equal(t, 2, strings.Count(out, "event: processing"))
	assert.Contains(t, out, "id: 0\n")
	assert.Contains(t, out, "id: 1\n")
	assert.True(t, strings.HasSuffix(out, "\n\n"))

	_, end, found := strings.Cut(out, "event: end\ndata: ")
	require.True(t, found, out)
	var final model.Progress
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(end)), &final))
	assert.Equal(t, model.StateCompleted, final.State)
	assert.Equal(t, 2, final.ProcessedCount)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/"+jobID+"/events", nil)
	req.Header.Set("Last-Event-ID", "0")
	resumed := httptest.NewRecorder()
	s.router.ServeHTTP(resumed, req)
	assert.Equal(t, 1, strings.Count(resumed.Body.String(), "event: processing"))
	assert.NotContains(t, resumed.Body.String(), "id: 0\n")

	rec = s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/events?from=x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportAndDownload(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, true)
	s.waitDone(t, jobID)

	rec := s.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/export?format=csv", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	result := decode[model.ExportResult](t, rec)
	assert.Equal(t, 2, result.RecordCount)
	assert.Equal(t, "/api/v1/download/"+jobID+"/review.csv", result.DownloadURL)

	rec = s.do(t, http.MethodGet, result.DownloadURL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "CAT-001")

	rec = s.do(t, http.MethodPost, "/api/v1/jobs/"+jobID+"/export?format=pdf", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/download/"+jobID+"/missing.csv", nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/v1/download/../review.csv", nil).Code)
}

func TestErrorsWithoutStore(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, false)

	rec := s.do(t, http.MethodGet, "/api/v1/jobs/"+jobID+"/errors", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.EqualValues(t, 0, body["count"])
	assert.Equal(t, jobID, body["job_id"])
}

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t)
	jobID := s.createJob(t, true)
	s.waitDone(t, jobID)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "v1", body["current_version"])
	assert.EqualValues(t, 3, body["entries"].(map[string]any)["v1"])

	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "catmat_jobs_records_processed_total")

	rec = s.do(t, http.MethodGet, "/swagger/doc.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "CATMAT Matcher API")
}
