package ports

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"github.com/Amund211/batchroom/internal/domain"
	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/ratelimiting"
	"github.com/Amund211/batchroom/internal/reporting"
)

type batchService interface {
	WatchBatches(ctx context.Context, coachingID string, status domain.BatchStatus) iter.Seq2[[]domain.Batch, error]
	WatchBatch(ctx context.Context, coachingID, batchID string) iter.Seq2[domain.Batch, error]
	CreateBatch(ctx context.Context, coachingID string, in domain.BatchInput) (domain.Batch, error)
	UpdateBatch(ctx context.Context, coachingID, batchID string, in domain.BatchInput) (domain.Batch, error)
	DeleteBatch(ctx context.Context, coachingID, batchID string) error

	WatchMembers(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Member, error]
	AddMembers(ctx context.Context, coachingID, batchID string, userIDs []string) ([]domain.Member, error)
	RemoveMember(ctx context.Context, coachingID, batchID, userID string) error

	WatchNotes(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Note, error]
	WatchRecentNotes(ctx context.Context, coachingID string) iter.Seq2[[]domain.Note, error]
	CreateNote(ctx context.Context, coachingID, batchID string, in domain.NoteInput) (domain.Note, error)
	DeleteNote(ctx context.Context, coachingID, batchID, noteID string) error

	WatchNotices(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Notice, error]
	CreateNotice(ctx context.Context, coachingID, batchID string, in domain.NoticeInput) (domain.Notice, error)
	DeleteNotice(ctx context.Context, coachingID, batchID, noticeID string) error
}

// RegisterBatchRoutes registers the batch API on the mux.
// The returned function stops the rate limiters.
func RegisterBatchRoutes(
	mux *http.ServeMux,
	service batchService,
	allowedOrigins *DomainSuffixes,
	trustedProxyHops int,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) func() {
	ipLimiter, stopIPLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(10),
		ratelimiting.BurstSize(300),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.NewForwardedIPKeyFunc(trustedProxyHops),
	)

	userIDLimiter, stopUserIDLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(5),
		ratelimiting.BurstSize(150),
	)
	userIDRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		// NOTE: Rate limiting based on user controlled value
		userIDLimiter,
		ratelimiting.UserIDKeyFunc,
	)

	coachingLimiter, stopCoachingLimiter := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(20),
		ratelimiting.BurstSize(600),
	)
	coachingRateLimiter := ratelimiting.NewRequestBasedRateLimiter(coachingLimiter, ratelimiting.CoachingKeyFunc)

	route := func(pattern string, portName string, handler http.HandlerFunc) {
		middleware := ComposeMiddlewares(
			buildMetricsMiddleware(portName),
			logging.NewRequestLoggerMiddleware(rootLogger),
			sentryMiddleware,
			reporting.NewAddMetaMiddleware(portName),
			BuildCORSMiddleware(allowedOrigins),
			NewRateLimitMiddleware(writeRateLimitExceeded, ipRateLimiter, userIDRateLimiter, coachingRateLimiter),
			idempotencyKeyMiddleware,
		)
		mux.HandleFunc(pattern, middleware(handler))
	}

	const prefix = "/v1/coachings/{coachingID}"

	route("GET "+prefix+"/batches", "list-batches", watchBatchesHandler(service))
	route("POST "+prefix+"/batches", "create-batch", createBatchHandler(service))
	route("GET "+prefix+"/batches/{batchID}", "get-batch", watchBatchHandler(service))
	route("PUT "+prefix+"/batches/{batchID}", "update-batch", updateBatchHandler(service))
	route("DELETE "+prefix+"/batches/{batchID}", "delete-batch", deleteBatchHandler(service))

	route("GET "+prefix+"/batches/{batchID}/members", "list-members", watchMembersHandler(service))
	route("POST "+prefix+"/batches/{batchID}/members", "add-members", addMembersHandler(service))
	route("DELETE "+prefix+"/batches/{batchID}/members/{userID}", "remove-member", removeMemberHandler(service))

	route("GET "+prefix+"/batches/{batchID}/notes", "list-notes", watchNotesHandler(service))
	route("POST "+prefix+"/batches/{batchID}/notes", "create-note", createNoteHandler(service))
	route("DELETE "+prefix+"/batches/{batchID}/notes/{noteID}", "delete-note", deleteNoteHandler(service))
	route("GET "+prefix+"/recent-notes", "recent-notes", watchRecentNotesHandler(service))

	route("GET "+prefix+"/batches/{batchID}/notices", "list-notices", watchNoticesHandler(service))
	route("POST "+prefix+"/batches/{batchID}/notices", "create-notice", createNoticeHandler(service))
	route("DELETE "+prefix+"/batches/{batchID}/notices/{noticeID}", "delete-notice", deleteNoticeHandler(service))

	mux.HandleFunc("OPTIONS /v1/", BuildCORSHandler(allowedOrigins))

	return func() {
		stopIPLimiter()
		stopUserIDLimiter()
		stopCoachingLimiter()
	}
}

func batchesToResponse(batches []domain.Batch) []batchResponse {
	return listToResponse(batches, batchToResponse)
}

func membersToResponse(members []domain.Member) []memberResponse {
	return listToResponse(members, memberToResponse)
}

func notesToResponse(notes []domain.Note) []noteResponse {
	return listToResponse(notes, noteToResponse)
}

func noticesToResponse(notices []domain.Notice) []noticeResponse {
	return listToResponse(notices, noticeToResponse)
}

func watchBatchesHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		status, err := domain.ParseBatchStatus(r.URL.Query().Get("status"))
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		writeStream(w, r, service.WatchBatches(ctx, r.PathValue("coachingID"), status), batchesToResponse)
	}
}

func watchBatchHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, r, service.WatchBatch(r.Context(), r.PathValue("coachingID"), r.PathValue("batchID")), batchToResponse)
	}
}

func createBatchHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request batchRequest
		if err := decodeRequestBody(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}
		in, err := request.toInput()
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		batch, err := service.CreateBatch(ctx, r.PathValue("coachingID"), in)
		respond(ctx, w, http.StatusCreated, batchToResponse(batch), err)
	}
}

func updateBatchHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request batchRequest
		if err := decodeRequestBody(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}
		in, err := request.toInput()
		if err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		batch, err := service.UpdateBatch(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), in)
		respond(ctx, w, http.StatusOK, batchToResponse(batch), err)
	}
}

func deleteBatchHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		err := service.DeleteBatch(ctx, r.PathValue("coachingID"), r.PathValue("batchID"))
		respond(ctx, w, http.StatusOK, nil, err)
	}
}

func watchMembersHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, r, service.WatchMembers(r.Context(), r.PathValue("coachingID"), r.PathValue("batchID")), membersToResponse)
	}
}

func addMembersHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request addMembersRequest
		if err := decodeRequestBody(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		members, err := service.AddMembers(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), request.UserIDs)
		respond(ctx, w, http.StatusOK, membersToResponse(members), err)
	}
}

func removeMemberHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.PathValue("userID")
		ctx := logging.AddMetaToContext(r.Context(), slog.String("memberId", userID))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"memberId": userID})

		err := service.RemoveMember(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), userID)
		respond(ctx, w, http.StatusOK, nil, err)
	}
}

func watchNotesHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, r, service.WatchNotes(r.Context(), r.PathValue("coachingID"), r.PathValue("batchID")), notesToResponse)
	}
}

func watchRecentNotesHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, r, service.WatchRecentNotes(r.Context(), r.PathValue("coachingID")), notesToResponse)
	}
}

func createNoteHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request noteRequest
		if err := decodeRequestBody(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		note, err := service.CreateNote(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), request.toInput())
		respond(ctx, w, http.StatusCreated, noteToResponse(note), err)
	}
}

func deleteNoteHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noteID := r.PathValue("noteID")
		ctx := logging.AddMetaToContext(r.Context(), slog.String("noteId", noteID))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"noteId": noteID})

		err := service.DeleteNote(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), noteID)
		respond(ctx, w, http.StatusOK, nil, err)
	}
}

func watchNoticesHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStream(w, r, service.WatchNotices(r.Context(), r.PathValue("coachingID"), r.PathValue("batchID")), noticesToResponse)
	}
}

func createNoticeHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var request noticeRequest
		if err := decodeRequestBody(w, r, &request); err != nil {
			writeErrorResponse(ctx, w, err)
			return
		}

		notice, err := service.CreateNotice(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), request.toInput())
		respond(ctx, w, http.StatusCreated, noticeToResponse(notice), err)
	}
}

func deleteNoticeHandler(service batchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		noticeID := r.PathValue("noticeID")
		ctx := logging.AddMetaToContext(r.Context(), slog.String("noticeId", noticeID))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{"noticeId": noticeID})

		err := service.DeleteNotice(ctx, r.PathValue("coachingID"), r.PathValue("batchID"), noticeID)
		respond(ctx, w, http.StatusOK, nil, err)
	}
}
