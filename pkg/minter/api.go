package minter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/speedrun-hq/speedrun-minter/pkg/journal"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/models"
)

// maxRequestBody bounds the size of a mint request
const maxRequestBody = 1 << 20

// MintService is the part of Service used by the HTTP API
type MintService interface {
	Mint(ctx context.Context, req models.MintRequest) (*models.MintResult, error)
	Result(ctx context.Context, id string) (*models.MintResult, error)
}

type errorResponse struct {
	Error     string             `json:"error"`
	ErrorType string             `json:"error_type,omitempty"`
	Result    *models.MintResult `json:"result,omitempty"`
}

// NewHandler returns the mint API:
//
//	POST /api/mint       submits a mint request
//	GET  /api/mint/{id}  returns the recorded result of a request
func NewHandler(svc MintService, log logger.Logger) http.Handler {
	if log == nil {
		log = &logger.EmptyLogger{}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/mint", func(w http.ResponseWriter, r *http.Request) {
		var req models.MintRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}

		result, err := svc.Mint(r.Context(), req)
		status := statusCode(result, err)
		if err != nil {
			log.Error("Mint request %s failed: %v", req.ID, err)
			writeJSON(w, status, errorResponse{
				Error:     err.Error(),
				ErrorType: errorType(result),
				Result:    result,
			})
			return
		}
		writeJSON(w, status, result)
	})

	mux.HandleFunc("GET /api/mint/{id}", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.Result(r.Context(), r.PathValue("id"))
		switch {
		case errors.Is(err, journal.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "mint request not found"})
		case err != nil:
			log.Error("Failed to read result %s: %v", r.PathValue("id"), err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusOK, result)
		}
	})

	return mux
}

// statusCode maps a mint result to an HTTP status. Results take precedence over errors
// since a failed submission returns both.
func statusCode(result *models.MintResult, err error) int {
	if result != nil {
		switch result.Status {
		case models.StatusConfirmed:
			return http.StatusCreated
		case models.StatusSubmitted:
			return http.StatusAccepted
		case models.StatusReverted:
			return http.StatusUnprocessableEntity
		}

		switch result.ErrorType {
		case "ambiguous_outcome":
			return http.StatusGatewayTimeout
		case "retry_budget_exhausted", "fee_cap_exceeded":
			return http.StatusServiceUnavailable
		}
		return http.StatusBadGateway
	}

	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.Is(err, ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrTokenExists):
		return http.StatusConflict
	case errors.Is(err, ErrCircuitOpen), errors.Is(err, ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func errorType(result *models.MintResult) string {
	if result == nil {
		return ""
	}
	return result.ErrorType
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
