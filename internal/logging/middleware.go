package logging

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
)

func orMissing(value string) string {
	if value == "" {
		return "<missing>"
	}
	return value
}

// NewRequestLoggerMiddleware stores a request scoped logger in the request context
//
// NOTE: Must wrap a handler registered on a pattern with {coachingID}/{batchID} wildcards
// for those attributes to be filled.
func NewRequestLoggerMiddleware(logger *slog.Logger) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			requestLogger := logger.With(
				slog.String("correlationID", uuid.New().String()),
				slog.String("methodPath", fmt.Sprintf("%s %s", r.Method, r.URL.Path)),
				slog.String("userAgent", orMissing(r.UserAgent())),
				slog.String("userId", orMissing(r.Header.Get("X-User-Id"))),
				slog.String("coachingId", orMissing(r.PathValue("coachingID"))),
				slog.String("batchId", orMissing(r.PathValue("batchID"))),
			)

			next(w, r.WithContext(AddToContext(r.Context(), requestLogger)))
		}
	}
}
