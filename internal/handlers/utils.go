package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/lostfound/apiserver/internal/services"
	"github.com/lostfound/apiserver/internal/store"
)

// Error kinds carried in every error body.
const (
	kindValidation = "validation"
	kindAsset      = "asset"
	kindNotFound   = "not_found"
	kindBackend    = "backend"
)

// ErrorResponse is the error payload. Kind is machine-readable; Errors
// lists individual field problems.
type ErrorResponse struct {
	Kind    string   `json:"kind"`
	Error   string   `json:"error"`
	Errors  []string `json:"errors,omitempty"`
	Details string   `json:"details,omitempty"`
}

// SuccessResponse acknowledges a mutation that returns no record.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Error: message})
}

// writeServiceError maps a service error to its status and body. fallback
// is the message used for backend failures.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	var (
		validationErr *services.ValidationError
		assetErr      *services.AssetError
	)
	switch {
	case errors.As(err, &validationErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:   kindValidation,
			Error:  "validation failed",
			Errors: validationErr.Problems,
		})
	case errors.As(err, &assetErr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Kind:   kindAsset,
			Error:  assetErr.Reason,
			Errors: []string{assetErr.Reason},
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "Item not found")
	default:
		logger.Error(fallback, zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Kind:    kindBackend,
			Error:   fallback,
			Details: err.Error(),
		})
	}
}

// NotFound answers requests for unknown routes.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, kindNotFound, "Endpoint not found")
}

// MethodNotAllowed answers known routes called with the wrong method.
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, kindValidation, "Method not allowed")
}
