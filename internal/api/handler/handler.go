package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"go-catmat-matcher/internal/model"
	"go-catmat-matcher/internal/pipeline"
	"go-catmat-matcher/internal/store"
	"go-catmat-matcher/pkg/utils"
)

// CatalogInfo describes the published catalog versions
type CatalogInfo interface {
	CurrentVersion() string
	Versions() []string
	Len(version string) int
}

// ErrorLister reads persisted lookup errors
type ErrorLister interface {
	GetJobErrors(ctx context.Context, jobID string) ([]store.JobError, error)
}

// Handler serves the job API on top of a controller
type Handler struct {
	controller *pipeline.Controller
	catalog    CatalogInfo
	outputs    *utils.OutputManager
	errors     ErrorLister
	limits     pipeline.IngestLimits
	validate   *validator.Validate
	logger     *slog.Logger
}

type Config struct {
	Controller *pipeline.Controller
	Catalog    CatalogInfo
	Outputs    *utils.OutputManager
	Errors     ErrorLister // optional
	Limits     pipeline.IngestLimits
	Logger     *slog.Logger
}

func New(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Handler{
		controller: cfg.Controller,
		catalog:    cfg.Catalog,
		outputs:    cfg.Outputs,
		errors:     cfg.Errors,
		limits:     cfg.Limits,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger,
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, model.ErrValidation), errors.As(err, &verrs):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidStateTransition), errors.Is(err, model.ErrJobNotTerminal),
		errors.Is(err, model.ErrCatalogVersionNotFound):
		return http.StatusConflict
	case errors.Is(err, model.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		msg = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// Health reports liveness
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
