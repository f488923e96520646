package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"net/http"

	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/reporting"
)

const ndjsonContentType = "application/x-ndjson"

var errEmptyStream = errors.New("stream ended without a value")

// writeStream writes every value of the sequence as one json line, flushing after each.
//
// An error before the first value becomes a regular json error response. Once a value has
// been written the status is committed, so a later error is written as a final error line.
func writeStream[T any, R any](w http.ResponseWriter, r *http.Request, seq iter.Seq2[T, error], convert func(T) R) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	controller := http.NewResponseController(w)

	emitted := 0
	for value, err := range seq {
		if err != nil {
			if emitted == 0 {
				writeErrorResponse(ctx, w, err)
				return
			}

			statusCode, cause := statusForError(err)
			logger.WarnContext(ctx, "Stream failed after emitting", "statusCode", statusCode, "error", err.Error(), "emitted", emitted)
			line, marshalErr := json.Marshal(responseEnvelope{Success: false, Cause: cause})
			if marshalErr == nil {
				_, _ = w.Write(append(line, '\n'))
			}
			return
		}

		line, err := json.Marshal(responseEnvelope{Success: true, Data: convert(value)})
		if err != nil {
			err := fmt.Errorf("failed to marshal stream value: %w", err)
			logger.ErrorContext(ctx, err.Error())
			reporting.Report(ctx, err)
			if emitted == 0 {
				writeErrorResponse(ctx, w, err)
			}
			return
		}

		if emitted == 0 {
			w.Header().Set("Content-Type", ndjsonContentType)
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.WriteHeader(http.StatusOK)
		}

		if _, err := w.Write(append(line, '\n')); err != nil {
			logger.InfoContext(ctx, "Failed to write to stream", "error", err.Error(), "emitted", emitted)
			return
		}
		if err := controller.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			logger.InfoContext(ctx, "Failed to flush stream", "error", err.Error(), "emitted", emitted)
			return
		}

		emitted++
		metrics.streamEmissions.Add(ctx, 1)
	}

	if emitted == 0 {
		err := fmt.Errorf("%s: %w", r.URL.Path, errEmptyStream)
		reporting.Report(ctx, err)
		writeErrorResponse(ctx, w, err)
	}
}
