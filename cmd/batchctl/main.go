package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/Amund211/batchroom/internal/adapters/coachingapi"
	"github.com/Amund211/batchroom/internal/adapters/keystore"
	"github.com/Amund211/batchroom/internal/app"
	"github.com/Amund211/batchroom/internal/config"
	"github.com/Amund211/batchroom/internal/domain"
	"github.com/Amund211/batchroom/internal/strutils"
	_ "golang.org/x/crypto/x509roots/fallback"
)

var errUnknownResource = errors.New("unknown resource")

// Watches a single read and prints every emission as a line of JSON.
// With REDIS_ADDR set the server's redis key store is shared, so the first line may be the stale cached value.
func main() {
	resource := flag.String("resource", "batches", "one of batches, batch, members, notes, recent-notes, notices")
	coachingID := flag.String("coaching", "", "coaching id")
	batchID := flag.String("batch", "", "batch id")
	rawStatus := flag.String("status", "", "batch status filter for batches")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	conf, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}

	status, err := domain.ParseBatchStatus(*rawStatus)
	if err != nil {
		fail("Invalid status", "error", err.Error())
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var store cache.KeyStore = cache.NewMemoryKeyStore(time.Now)
	if conf.RedisAddr() != "" {
		redisStore, err := keystore.NewRedis(ctx, keystore.RedisConfig{
			Addr:      conf.RedisAddr(),
			Password:  conf.RedisPassword(),
			DB:        0,
			Namespace: fmt.Sprintf("batchroom:%s", conf.Environment()),
		}, time.Now)
		if err != nil {
			fail("Failed to connect to redis", "error", err.Error())
		}
		defer redisStore.Close()
		store = redisStore
	}

	swrCache, err := cache.NewSWRCache(store)
	if err != nil {
		fail("Failed to initialize SWR cache", "error", err.Error())
	}

	coachingAPI, err := coachingapi.NewCoachingAPIOrMock(conf, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		fail("Failed to initialize coaching API", "error", err.Error())
	}

	service := app.NewBatchService(swrCache, coachingAPI)

	seq, err := watchResource(ctx, service, *resource, *coachingID, *batchID, status)
	if err != nil {
		fail("Failed to start watch", "error", err.Error())
	}

	if err := printEmissions(os.Stdout, seq); err != nil {
		fail("Watch failed", "error", err.Error())
	}
}

type watcher interface {
	WatchBatches(ctx context.Context, coachingID string, status domain.BatchStatus) iter.Seq2[[]domain.Batch, error]
	WatchBatch(ctx context.Context, coachingID, batchID string) iter.Seq2[domain.Batch, error]
	WatchMembers(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Member, error]
	WatchNotes(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Note, error]
	WatchRecentNotes(ctx context.Context, coachingID string) iter.Seq2[[]domain.Note, error]
	WatchNotices(ctx context.Context, coachingID, batchID string) iter.Seq2[[]domain.Notice, error]
}

func erase[T any](seq iter.Seq2[T, error]) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for value, err := range seq {
			if !yield(value, err) {
				return
			}
		}
	}
}

func watchResource(ctx context.Context, w watcher, resource, coachingID, batchID string, status domain.BatchStatus) (iter.Seq2[any, error], error) {
	switch resource {
	case "batches":
		return erase(w.WatchBatches(ctx, coachingID, status)), nil
	case "batch":
		return erase(w.WatchBatch(ctx, coachingID, batchID)), nil
	case "members":
		return erase(w.WatchMembers(ctx, coachingID, batchID)), nil
	case "notes":
		return erase(w.WatchNotes(ctx, coachingID, batchID)), nil
	case "recent-notes":
		return erase(w.WatchRecentNotes(ctx, coachingID)), nil
	case "notices":
		return erase(w.WatchNotices(ctx, coachingID, batchID)), nil
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownResource, resource)
	}
}

type emission struct {
	Index     int             `json:"index"`
	Unchanged bool            `json:"unchanged"`
	Value     json.RawMessage `json:"value"`
}

// printEmissions writes one line per emission.
// Unchanged is set when an emission is equal to the one before it.
func printEmissions(out io.Writer, seq iter.Seq2[any, error]) error {
	encoder := json.NewEncoder(out)

	var previous json.RawMessage
	index := 0
	for value, err := range seq {
		if err != nil {
			return err
		}

		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("failed to marshal emission: %w", err)
		}

		unchanged := false
		if previous != nil {
			unchanged, err = strutils.JSONStringsEqual(previous, data)
			if err != nil {
				return fmt.Errorf("failed to compare emissions: %w", err)
			}
		}

		if err := encoder.Encode(emission{Index: index, Unchanged: unchanged, Value: data}); err != nil {
			return fmt.Errorf("failed to write emission: %w", err)
		}

		previous = data
		index++
	}

	return nil
}
