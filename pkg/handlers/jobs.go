package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/jobs"
)

// EnqueueJobRequest is the body of POST /v1/jobs.
type EnqueueJobRequest struct {
	Kind    string          `json:"kind"`
	Target  string          `json:"target"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// JobsHandler serves job submission and status lookup.
type JobsHandler struct {
	orchestrator *jobs.Orchestrator
	logger       *zap.Logger
}

// NewJobsHandler creates a new JobsHandler.
func NewJobsHandler(orchestrator *jobs.Orchestrator, logger *zap.Logger) *JobsHandler {
	return &JobsHandler{orchestrator: orchestrator, logger: logger}
}

// RegisterRoutes registers the job routes on the given mux.
func (h *JobsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/jobs", h.Enqueue)
	mux.HandleFunc("GET /v1/jobs/{id}", h.Get)
}

// Enqueue handles POST /v1/jobs. Submitting a (kind, target) pair that
// already has a live job returns that job with 200 instead of creating a
// duplicate; a newly created job answers 202.
func (h *JobsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	var req EnqueueJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Kind == "" || req.Target == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "kind and target are required")
		return
	}

	job, created, err := h.orchestrator.Enqueue(r.Context(), req.Kind, req.Target, req.Payload)
	if err != nil {
		_ = WriteClassifiedError(w, err)
		return
	}

	status := http.StatusAccepted
	if !created {
		status = http.StatusOK
	}
	if err := WriteJSON(w, status, job); err != nil {
		h.logger.Error("Failed to encode job response", zap.Error(err))
	}
}

// Get handles GET /v1/jobs/{id}.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid job id")
		return
	}

	job, err := h.orchestrator.Get(r.Context(), id)
	if err != nil {
		_ = WriteClassifiedError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, job); err != nil {
		h.logger.Error("Failed to encode job response", zap.Error(err))
	}
}
