// Package statusapi serves job status and report links over HTTP:
//
//	GET /api/jobs/{jobId}         job record
//	GET /api/jobs/{jobId}/report  presigned report URL (completed jobs only)
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/forest-video-analyzer/internal/jobs"
	"github.com/fpang/forest-video-analyzer/internal/s3util"
	"github.com/fpang/forest-video-analyzer/internal/store"
)

// Prefix is the route prefix served by Handler.
const Prefix = "/api/jobs/"

// ReportURLExpiry is the lifetime of a presigned report link.
const ReportURLExpiry = 15 * time.Minute

// Handler serves read-only job status endpoints.
type Handler struct {
	jobs         store.JobStore
	presigner    s3util.Presigner
	outputBucket string
}

// NewHandler creates a status handler. outputBucket holds the rendered
// reports.
func NewHandler(jobStore store.JobStore, presigner s3util.Presigner, outputBucket string) *Handler {
	return &Handler{
		jobs:         jobStore,
		presigner:    presigner,
		outputBucket: outputBucket,
	}
}

// ReportLink is the body of a report request.
type ReportLink struct {
	JobID     string `json:"jobId"`
	ReportURL string `json:"reportUrl"`
	ExpiresIn int    `json:"expiresIn"`
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jobID, action, ok := jobs.ParseRoute(r.URL.Path, Prefix)
	if !ok {
		httpError(w, http.StatusNotFound, "not found")
		return
	}

	switch action {
	case "":
		h.handleStatus(w, r, jobID)
	case "report":
		h.handleReport(w, r, jobID)
	default:
		httpError(w, http.StatusNotFound, "not found")
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.lookup(w, r, jobID)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, job)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, jobID string) {
	job, ok := h.lookup(w, r, jobID)
	if !ok {
		return
	}
	if job.Status != store.StatusCompleted || job.ReportKey == "" {
		httpError(w, http.StatusConflict, "report not available: job is "+string(job.Status))
		return
	}
	if h.outputBucket == "" {
		httpError(w, http.StatusServiceUnavailable, "report storage not configured")
		return
	}

	url, err := s3util.GeneratePresignedURL(r.Context(), h.presigner, h.outputBucket, job.ReportKey, ReportURLExpiry)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to create report link", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ReportLink{
		JobID:     jobID,
		ReportURL: url,
		ExpiresIn: int(ReportURLExpiry.Seconds()),
	})
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request, jobID string) (*store.Job, bool) {
	job, err := h.jobs.GetJob(r.Context(), jobID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to read job", err.Error())
		return nil, false
	}
	if job == nil {
		httpError(w, http.StatusNotFound, "job not found")
		return nil, false
	}
	return job, true
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// httpError sends a JSON error response. internalDetails are logged but
// never sent to the client.
func httpError(w http.ResponseWriter, status int, clientMsg string, internalDetails ...string) {
	if len(internalDetails) > 0 {
		log.Error().
			Int("status", status).
			Str("clientMsg", clientMsg).
			Strs("internalDetails", internalDetails).
			Msg("HTTP error with internal details")
	}
	respondJSON(w, status, map[string]string{"error": clientMsg})
}
