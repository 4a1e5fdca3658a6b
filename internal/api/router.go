package api

import (
	httpSwagger "github.com/swaggo/http-swagger"

	"go-ingest-pipeline/internal/api/handler"
	"go-ingest-pipeline/pkg/router"

	_ "go-ingest-pipeline/docs" // swagger docs registration
)

// RegisterRoutes wires the HTTP surface over the ingestion core.
func RegisterRoutes(r *router.Router, h *handler.Handler) {
	r.GET("/healthz", h.Health)
	r.POST("/ingest", h.Ingest)
	r.GET("/jobs", h.ListJobs)
	r.GET("/jobs/*", h.GetJob)
	r.GET("/data", h.GetData)
	r.GET("/swagger/*", router.HandlerFunc(httpSwagger.WrapHandler))
}
