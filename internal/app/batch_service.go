package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/Amund211/batchroom/internal/domain"
	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/reporting"
)

const fetchTimeout = 10 * time.Second

type coachingAPI interface {
	ListBatches(ctx context.Context, coachingID string, status domain.BatchStatus) (json.RawMessage, error)
	GetBatch(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	CreateBatch(ctx context.Context, coachingID string, in domain.BatchInput) (json.RawMessage, error)
	UpdateBatch(ctx context.Context, coachingID, batchID string, in domain.BatchInput) (json.RawMessage, error)
	DeleteBatch(ctx context.Context, coachingID, batchID string) error

	ListMembers(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	AddMembers(ctx context.Context, coachingID, batchID string, userIDs []string) (json.RawMessage, error)
	RemoveMember(ctx context.Context, coachingID, batchID, userID string) error

	ListNotes(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	ListRecentNotes(ctx context.Context, coachingID string) (json.RawMessage, error)
	CreateNote(ctx context.Context, coachingID, batchID string, in domain.NoteInput) (json.RawMessage, error)
	DeleteNote(ctx context.Context, coachingID, batchID, noteID string) error

	ListNotices(ctx context.Context, coachingID, batchID string) (json.RawMessage, error)
	CreateNotice(ctx context.Context, coachingID, batchID string, in domain.NoticeInput) (json.RawMessage, error)
	DeleteNotice(ctx context.Context, coachingID, batchID, noticeID string) error
}

// BatchService reads batch data through the SWR cache and writes it to the coaching API,
// invalidating the affected cache keys after every successful write.
type BatchService struct {
	cache *cache.SWRCache
	api   coachingAPI
}

func NewBatchService(swrCache *cache.SWRCache, api coachingAPI) *BatchService {
	return &BatchService{
		cache: swrCache,
		api:   api,
	}
}

func failed[T any](err error) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var empty T
		yield(empty, err)
	}
}

func withFetchTimeout(fetch func(ctx context.Context) (json.RawMessage, error)) cache.Fetcher {
	return func(ctx context.Context) (json.RawMessage, error) {
		ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
		defer cancel()

		raw, err := fetch(ctx)
		if err != nil {
			// NOTE: coachingAPI implementations handle their own error reporting
			return nil, fmt.Errorf("could not fetch from coaching API: %w", err)
		}
		return raw, nil
	}
}

// watch streams the value for the key, or the error from building it
func watch[T any](ctx context.Context, s *BatchService, key string, keyErr error, fetch func(ctx context.Context) (json.RawMessage, error), decode cache.Decoder[T]) iter.Seq2[T, error] {
	if keyErr != nil {
		return failed[T](keyErr)
	}
	return cache.SWR(ctx, s.cache, key, withFetchTimeout(fetch), decode)
}

// invalidate removes the cached keys of the family and of every family derived from it.
// Failures are logged and reported, but never fail the write that caused them.
func (s *BatchService) invalidate(ctx context.Context, family keyFamily, coachingID, batchID string) {
	logger := logging.FromContext(ctx)

	for _, f := range invalidatedFamilies(family) {
		target, err := f.target(coachingID, batchID)
		if err != nil {
			err := fmt.Errorf("failed to build invalidation target for %s: %w", f, err)
			logger.ErrorContext(ctx, err.Error())
			reporting.Report(ctx, err, map[string]string{
				"family":     string(f),
				"coachingID": coachingID,
				"batchID":    batchID,
			})
			continue
		}

		if target.prefix {
			err = s.cache.InvalidatePrefix(ctx, target.key)
		} else {
			err = s.cache.Invalidate(ctx, target.key)
		}
		if err != nil {
			logger.ErrorContext(ctx, "Failed to invalidate cache", "cacheKey", target.key, "prefix", target.prefix, "error", err.Error())
			if errors.Is(err, cache.ErrInvalidKey) {
				reporting.Report(ctx, err)
			}
			// NOTE: SWRCache reports its own key store failures
			continue
		}

		logger.InfoContext(ctx, "Invalidated cache", "cacheKey", target.key, "prefix", target.prefix)
	}
}

// seed stores the value returned by a write so the next read has something to show
func (s *BatchService) seed(ctx context.Context, key string, raw json.RawMessage) {
	if err := s.cache.Put(ctx, key, raw); err != nil {
		// NOTE: SWRCache reports its own key store failures
		logging.FromContext(ctx).WarnContext(ctx, "Failed to seed cache", "cacheKey", key, "error", err.Error())
	}
}
