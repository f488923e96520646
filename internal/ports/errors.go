package ports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/Amund211/batchroom/internal/domain"
	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/reporting"
)

type responseEnvelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Cause   string `json:"cause,omitempty"`
}

// statusForError maps an error to the status code and cause we respond with
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, cache.ErrInvalidKey):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, domain.ErrTemporarilyUnavailable):
		return http.StatusServiceUnavailable, "temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "cancelled"
	case errors.Is(err, cache.ErrFetchFailed), errors.Is(err, cache.ErrDecodeFailed):
		return http.StatusBadGateway, "coaching API request failed"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, response responseEnvelope) {
	data, err := json.Marshal(response)
	if err != nil {
		err := fmt.Errorf("failed to marshal response: %w", err)
		logging.FromContext(ctx).ErrorContext(ctx, err.Error())
		reporting.Report(ctx, err)

		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		logging.FromContext(ctx).InfoContext(ctx, "Failed to write response", "error", err.Error())
	}
}

func writeErrorResponse(ctx context.Context, w http.ResponseWriter, err error) {
	statusCode, cause := statusForError(err)

	logger := logging.FromContext(ctx)
	if statusCode >= 500 {
		logger.ErrorContext(ctx, "Returning error", "statusCode", statusCode, "error", err.Error())
	} else {
		logger.InfoContext(ctx, "Returning error", "statusCode", statusCode, "error", err.Error())
	}

	writeJSON(ctx, w, statusCode, responseEnvelope{Success: false, Cause: cause})
}

// respond writes the result of a mutation
func respond(ctx context.Context, w http.ResponseWriter, statusCode int, data any, err error) {
	if err != nil {
		// NOTE: The app and adapters report unexpected errors themselves
		writeErrorResponse(ctx, w, err)
		return
	}
	writeJSON(ctx, w, statusCode, responseEnvelope{Success: true, Data: data})
}
