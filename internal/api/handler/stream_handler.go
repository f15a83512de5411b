package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/pkg/router"
	"go-catmat-matcher/pkg/utils"
)

// StreamEvents streams a job's processing events as server-sent events
// @Summary Stream job events
// @Description Replays the event log from the given position and follows it until the job ends
// @Tags jobs
// @Produce text/event-stream
// @Param id path string true "Job ID"
// @Param from query int false "First event sequence number"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{id}/events [get]
func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "streaming unsupported"})
		return
	}
	from, err := parseFrom(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	jobID := router.Param(r, 0)
	events, err := h.controller.Subscribe(r.Context(), jobID, from)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error("encode event", "job_id", jobID, "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: processing\ndata: %s\n\n", ev.Seq, data); err != nil {
			return
		}
		flusher.Flush()
	}
	if r.Context().Err() != nil {
		return
	}

	// the iterator only ends on its own once the job is terminal
	if progress, err := h.controller.GetProgress(jobID); err == nil {
		data, err := json.Marshal(progress)
		if err != nil {
			h.logger.Error("encode progress", "job_id", jobID, "error", err)
			return
		}
		fmt.Fprintf(w, "event: end\ndata: %s\n\n", data)
		flusher.Flush()
	}
}

// ExportReview writes the review partition to a downloadable file
// @Summary Export review partition
// @Tags review
// @Produce json
// @Param id path string true "Job ID"
// @Param format query string false "csv | json | xlsx" default(csv)
// @Success 201 {object} model.ExportResult
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse "job not terminal"
// @Router /jobs/{id}/export [post]
func (h *Handler) ExportReview(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = pipeline.FormatCSV
	}
	partition, err := h.controller.GetReviewPartition(router.Param(r, 0))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := pipeline.ExportToFile(h.outputs, partition, format)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.logger.Info("review exported",
		"job_id", partition.JobID,
		"format", format,
		"records", result.RecordCount,
		"bytes", result.SizeBytes)
	writeJSON(w, http.StatusCreated, result)
}

// Download serves a previously exported file
// @Summary Download export
// @Tags review
// @Produce octet-stream
// @Param id path string true "Job ID"
// @Param file path string true "File name"
// @Success 200 {file} file
// @Failure 404 {object} ErrorResponse
// @Router /download/{id}/{file} [get]
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	jobID, fileName := router.Param(r, 0), router.Param(r, 1)
	f, err := h.outputs.OpenOutputFile(jobID, fileName)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || errors.Is(err, utils.ErrInvalidOutputName) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "file not found"})
			return
		}
		h.writeError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", h.outputs.ContentType(fileName))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fileName))
	if info, err := f.Stat(); err == nil {
		http.ServeContent(w, r, fileName, info.ModTime(), f)
		return
	}
	io.Copy(w, f)
}
