package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "go-catmat-matcher/docs"
	"go-catmat-matcher/internal/api/handler"
	"go-catmat-matcher/pkg/router"
)

// RegisterRoutes mounts the job API on r. gatherer may be nil to skip /metrics.
func RegisterRoutes(r *router.Router, h *handler.Handler, gatherer prometheus.Gatherer) {
	r.POST("/api/v1/jobs", h.CreateJob)
	r.POST("/api/v1/jobs/upload", h.UploadJob)
	r.GET("/api/v1/jobs", h.ListJobs)
	r.GET("/api/v1/catalog", h.GetCatalog)

	// More specific routes first
	for _, action := range []string{"start", "pause", "resume", "cancel"} {
		r.POST("/api/v1/jobs/*/"+action, h.Lifecycle(action))
	}
	r.POST("/api/v1/jobs/*/export", h.ExportReview)
	r.GET("/api/v1/jobs/*/progress", h.GetProgress)
	r.GET("/api/v1/jobs/*/events", h.StreamEvents)
	r.GET("/api/v1/jobs/*/review", h.GetReview)
	r.GET("/api/v1/jobs/*/errors", h.GetErrors)
	r.GET("/api/v1/download/*/*", h.Download)
	// Generic job route last
	r.GET("/api/v1/jobs/*", h.GetJob)

	r.GET("/healthz", handler.Health)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	r.Handle("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}
