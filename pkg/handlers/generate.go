package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/logging"
	"github.com/querylens-ai/querylens-engine/pkg/services"
)

// GenerateRequest is the body of POST /v1/generate.
type GenerateRequest struct {
	Question string `json:"question"`
	Role     string `json:"role"`
}

// ValidateRequest is the body of POST /v1/validate.
type ValidateRequest struct {
	Statement string `json:"statement"`
	Role      string `json:"role"`
}

// GenerateHandler serves SQL generation and standalone validation.
type GenerateHandler struct {
	svc    services.GenerationService
	logger *zap.Logger
}

// NewGenerateHandler creates a new GenerateHandler.
func NewGenerateHandler(svc services.GenerationService, logger *zap.Logger) *GenerateHandler {
	return &GenerateHandler{svc: svc, logger: logger}
}

// RegisterRoutes registers the generation routes on the given mux.
func (h *GenerateHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/generate", h.Generate)
	mux.HandleFunc("POST /v1/validate", h.Validate)
}

// Generate handles POST /v1/generate: question in, policy-filtered SQL out.
func (h *GenerateHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Question == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "question is required")
		return
	}
	if req.Role == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "role is required")
		return
	}

	stmt, err := h.svc.Generate(r.Context(), req.Question, req.Role, r.RemoteAddr)
	if err != nil {
		h.logger.Info("generation refused",
			zap.String("role", req.Role),
			zap.String("error", logging.SanitizeError(err)))
		_ = WriteClassifiedError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, stmt); err != nil {
		h.logger.Error("Failed to encode generation response", zap.Error(err))
	}
}

// Validate handles POST /v1/validate: run a caller-supplied statement
// through both safety stages without touching a provider.
func (h *GenerateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Statement == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "statement is required")
		return
	}
	if req.Role == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "role is required")
		return
	}

	stmt, err := h.svc.Validate(r.Context(), req.Statement, req.Role, r.RemoteAddr)
	if err != nil {
		_ = WriteClassifiedError(w, err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, stmt); err != nil {
		h.logger.Error("Failed to encode validation response", zap.Error(err))
	}
}
