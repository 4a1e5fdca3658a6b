package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go-ingest-pipeline/internal/model"
	"go-ingest-pipeline/internal/pipeline"
)

// Handler exposes the ingestion core over HTTP. It only reads job
// state; the dispatcher's workers are the sole writers.
type Handler struct {
	manager *pipeline.Manager
}

func New(manager *pipeline.Manager) *Handler {
	return &Handler{manager: manager}
}

// IngestRequest is the POST /ingest body.
type IngestRequest struct {
	Sources []model.SourceSpec         `json:"sources"`
	Rules   []model.TransformationRule `json:"transformation_rules"`
}

// Ingest submits a new ingestion job
// @Summary Submit an ingestion job
// @Description Validate the submission, create a pending job and enqueue it for asynchronous processing
// @Tags ingestion
// @Accept json
// @Produce json
// @Param request body handler.IngestRequest true "Sources and transformation rules"
// @Success 202 {object} map[string]interface{} "Job accepted"
// @Failure 400 {object} map[string]interface{} "Invalid submission"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /ingest [post]
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}

	jobID, err := h.manager.Submit(req.Sources, req.Rules)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": jobID,
		"status": model.StatusPending,
	})
}

// GetJob returns one job snapshot
// @Summary Get job status
// @Description Retrieve the current snapshot of an ingestion job, including its terminal error if failed
// @Tags ingestion
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} model.IngestionJob "Job snapshot"
// @Failure 404 {object} map[string]interface{} "Job not found"
// @Router /jobs/{id} [get]
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if jobID == "" {
		writeError(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, err := h.manager.GetStatus(jobID)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}

	writeJSON(w, http.StatusOK, job)
}

// ListJobs returns all jobs
// @Summary List jobs
// @Description List all ingestion jobs, newest first
// @Tags ingestion
// @Produce json
// @Success 200 {array} model.IngestionJob "Jobs"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /jobs [get]
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := h.manager.ListJobs()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	if jobs == nil {
		jobs = []*model.IngestionJob{}
	}
	writeJSON(w, http.StatusOK, jobs)
}

// GetData queries processed records
// @Summary Query processed records
// @Description Retrieve processed records newest first, optionally filtered by category
// @Tags data
// @Produce json
// @Param category query string false "Category filter"
// @Param limit query int false "Page size (server-capped)"
// @Param offset query int false "Page offset"
// @Success 200 {object} map[string]interface{} "Records page"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /data [get]
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))

	records, err := h.manager.QueryResults(q.Get("category"), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query records")
		return
	}
	if records == nil {
		records = []*model.ProcessedRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"records": records,
		"count":   len(records),
		"offset":  offset,
	})
}

// Health reports liveness
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{} "Service is up"
// @Router /healthz [get]
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{"error": msg})
}
