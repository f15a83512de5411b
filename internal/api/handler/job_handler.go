package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/pkg/router"
	"go-catmat-matcher/pkg/utils"
)

// RecordInput is one material line of a JSON job request
type RecordInput struct {
	Description string `json:"description" validate:"required,max=2000"`
	Quantity    string `json:"quantity,omitempty" validate:"max=64"`
	Unit        string `json:"unit,omitempty" validate:"max=32"`
}

// CreateJobRequest creates a job from inline records
type CreateJobRequest struct {
	Name           string        `json:"name,omitempty" validate:"max=200"`
	CatalogVersion string        `json:"catalog_version,omitempty" validate:"max=64"`
	HighThreshold  *float64      `json:"high_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	LowThreshold   *float64      `json:"low_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	Concurrency    int           `json:"concurrency,omitempty" validate:"gte=0,lte=64"`
	AutoStart      bool          `json:"auto_start,omitempty"`
	Records        []RecordInput `json:"records" validate:"required,min=1,dive"`
}

// CreateJobResponse is returned by both job creation endpoints
type CreateJobResponse struct {
	JobID    string         `json:"job_id"`
	State    model.JobState `json:"state"`
	Total    int            `json:"total_items"`
	Accepted bool           `json:"accepted"`
}

// jobSpec merges per-request overrides into the controller defaults
func (h *Handler) jobSpec(name, version string, high, low *float64, concurrency int) model.JobSpec {
	spec := model.JobSpec{Name: name, CatalogVersion: version, Concurrency: concurrency}
	if high != nil || low != nil {
		t := h.controller.Defaults().Thresholds
		if high != nil {
			t.High = *high
		}
		if low != nil {
			t.Low = *low
		}
		spec.Thresholds = &t
	}
	return spec
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, records []model.MaterialRecord, spec model.JobSpec, autoStart bool) {
	jobID, err := h.controller.CreateJob(r.Context(), records, spec)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if autoStart {
		if err := h.controller.Start(jobID); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	summary, err := h.controller.GetJob(jobID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateJobResponse{
		JobID:    jobID,
		State:    summary.State,
		Total:    summary.TotalItems,
		Accepted: true,
	})
}

// CreateJob creates a matching job from inline records
// @Summary Create a job
// @Description Create a matching job from a JSON list of material descriptions
// @Tags jobs
// @Accept json
// @Produce json
// @Param job body CreateJobRequest true "Job input"
// @Success 201 {object} CreateJobResponse
// @Failure 400 {object} ErrorResponse
// @Router /jobs [post]
func (h *Handler) CreateJob(w http.ResponseWriter, r *http.Request) {
	var req CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON payload"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, r, err)
		return
	}

	records := make([]model.MaterialRecord, len(req.Records))
	for i, in := range req.Records {
		records[i] = model.MaterialRecord{
			SequenceIndex:  i,
			RawDescription: pipeline.CleanDescription(in.Description),
			Quantity:       strings.TrimSpace(in.Quantity),
			Unit:           pipeline.CleanUnit(in.Unit),
		}
	}
	spec := h.jobSpec(req.Name, req.CatalogVersion, req.HighThreshold, req.LowThreshold, req.Concurrency)
	h.create(w, r, records, spec, req.AutoStart)
}

// UploadJob creates a job from an uploaded material list
// @Summary Upload a material list
// @Description Create a job from a .csv, .txt or .xlsx file
// @Tags jobs
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Material list"
// @Param name formData string false "Job name"
// @Param catalog_version formData string false "Catalog version"
// @Param high_threshold formData number false "High threshold"
// @Param low_threshold formData number false "Low threshold"
// @Param concurrency formData int false "Workers"
// @Param auto_start formData bool false "Start immediately"
// @Success 201 {object} CreateJobResponse
// @Failure 400 {object} ErrorResponse
// @Router /jobs/upload [post]
func (h *Handler) UploadJob(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.limits.MaxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid multipart form: " + err.Error()})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "file is required"})
		return
	}
	defer file.Close()

	records, err := pipeline.ParseMaterials(header.Filename, file, h.limits)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var high, low *float64
	for key, dst := range map[string]**float64{"high_threshold": &high, "low_threshold": &low} {
		if v := r.FormValue(key); v != "" {
			f, err := utils.ParseDecimal(v)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: fmt.Sprintf("invalid %s", key)})
				return
			}
			*dst = &f
		}
	}
	concurrency, err := utils.ParseOptionalInt(r.FormValue("concurrency"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid concurrency"})
		return
	}
	autoStart, err := utils.ParseOptionalBool(r.FormValue("auto_start"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid auto_start"})
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = header.Filename
	}
	spec := h.jobSpec(name, r.FormValue("catalog_version"), high, low, concurrency)
	h.create(w, r, records, spec, autoStart)
}

// ListJobs lists every job
// @Summary List jobs
// @Tags jobs
// @Produce json
// @Success 200 {array} model.JobSummary
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.ListJobs())
}

// GetJob returns one job
// @Summary Get job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.JobSummary
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := router.Param(r, 0)
	summary, err := h.controller.GetJob(jobID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Lifecycle returns the handler for one of start, pause, resume or cancel
// @Summary Change job state
// @Description start, pause, resume or cancel a job
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Param action path string true "start | pause | resume | cancel"
// @Success 200 {object} model.Progress
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /jobs/{id}/{action} [post]
func (h *Handler) Lifecycle(action string) func(http.ResponseWriter, *http.Request) {
	ops := map[string]func(string) error{
		"start":  h.controller.Start,
		"pause":  h.controller.Pause,
		"resume": h.controller.Resume,
		"cancel": h.controller.Cancel,
	}
	op, ok := ops[action]
	if !ok {
		panic("unknown lifecycle action " + action)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := router.Param(r, 0)
		if err := op(jobID); err != nil {
			h.writeError(w, r, err)
			return
		}
		progress, err := h.controller.GetProgress(jobID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, progress)
	}
}

// GetProgress returns the progress snapshot of a job
// @Summary Get job progress
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.Progress
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/progress [get]
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.controller.GetProgress(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// GetReview returns the review partition of a finished job
// @Summary Get review partition
// @Tags review
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.ReviewPartition
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "job not terminal"
// @Router /jobs/{id}/review [get]
func (h *Handler) GetReview(w http.ResponseWriter, r *http.Request) {
	partition, err := h.controller.GetReviewPartition(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, partition)
}

// GetErrors lists the persisted lookup errors of a job
// @Summary Get job errors
// @Tags jobs
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/errors [get]
func (h *Handler) GetErrors(w http.ResponseWriter, r *http.Request) {
	jobID := router.Param(r, 0)
	if _, err := h.controller.GetJob(jobID); err != nil {
		h.writeError(w, r, err)
		return
	}
	var list any = []any{}
	count := 0
	if h.errors != nil {
		errs, err := h.errors.GetJobErrors(r.Context(), jobID)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("load job errors: %w", err))
			return
		}
		if errs != nil {
			list, count = errs, len(errs)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id": jobID,
		"errors": list,
		"count":  count,
	})
}

// GetCatalog describes the published catalog versions
// @Summary Catalog versions
// @Tags catalog
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /catalog [get]
func (h *Handler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	current := h.catalog.CurrentVersion()
	versions := h.catalog.Versions()
	sizes := make(map[string]int, len(versions))
	for _, v := range versions {
		sizes[v] = h.catalog.Len(v)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"current_version": current,
		"versions":        versions,
		"entries":         sizes,
	})
}

// parseFrom reads the resume position of an event stream
func parseFrom(r *http.Request) (int, error) {
	if id := r.Header.Get("Last-Event-ID"); id != "" {
		n, err := strconv.Atoi(id)
		if err != nil {
			return 0, errors.New("invalid Last-Event-ID")
		}
		return n + 1, nil
	}
	if v := r.URL.Query().Get("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, errors.New("invalid from")
		}
		return n, nil
	}
	return 0, nil
}
