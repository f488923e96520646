package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/batchroom/internal/domain"
	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/ratelimiting"
	"github.com/Amund211/batchroom/internal/reporting"
)

// NewRateLimitMiddleware consults the limiters in order and stops at the first one that is exhausted.
// Limiters after the exhausted one are not consumed from.
func NewRateLimitMiddleware(onLimitExceeded func(w http.ResponseWriter, r *http.Request, limiter ratelimiting.RequestRateLimiter), limiters ...ratelimiting.RequestRateLimiter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			for _, limiter := range limiters {
				if !limiter.Consume(r) {
					onLimitExceeded(w, r, limiter)
					return
				}
			}

			next(w, r)
		}
	}
}

func writeRateLimitExceeded(w http.ResponseWriter, r *http.Request, limiter ratelimiting.RequestRateLimiter) {
	ctx := r.Context()

	statusCode := http.StatusTooManyRequests

	logging.FromContext(ctx).InfoContext(ctx, "Rate limit exceeded", "statusCode", statusCode, "reason", "ratelimit exceeded", "key", limiter.KeyFor(r))

	writeJSON(ctx, w, statusCode, responseEnvelope{Success: false, Cause: "rate limit exceeded"})
}

// idempotencyKeyMiddleware forwards the client's Idempotency-Key to the mutations made by the request.
// Requests without the header get a fresh key per upstream call.
func idempotencyKeyMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		if key == "" {
			next(w, r)
			return
		}

		ctx := r.Context()
		if err := domain.ValidateIdempotencyKey(key); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		ctx = domain.WithIdempotencyKey(ctx, key)
		ctx = logging.AddMetaToContext(ctx, slog.String("idempotencyKey", key))
		ctx = reporting.SetIdempotencyKeyInContext(ctx, key)

		next(w, r.WithContext(ctx))
	}
}

// ComposeMiddlewares applies the middlewares so that the first one is outermost
func ComposeMiddlewares(middlewares ...func(http.HandlerFunc) http.HandlerFunc) func(http.HandlerFunc) http.HandlerFunc {
	return func(h http.HandlerFunc) http.HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			h = middlewares[i](h)
		}
		return h
	}
}
