package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/Amund211/batchroom/internal/logging"
	"github.com/Amund211/batchroom/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

var ErrFetchFailed = errors.New("fetch failed")
var ErrDecodeFailed = errors.New("decode failed")

// Fetcher retrieves the current raw value for a key from the source of truth
type Fetcher func(ctx context.Context) (json.RawMessage, error)

// Decoder turns a raw value into the type the reader wants
type Decoder[T any] func(json.RawMessage) (T, error)

// DecodeJSON is a Decoder that unmarshals the raw value into T
func DecodeJSON[T any](raw json.RawMessage) (T, error) {
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		var empty T
		return empty, err
	}
	return value, nil
}

type swrMetricsCollection struct {
	lookupCount         metric.Int64Counter
	decodeFailureCount  metric.Int64Counter
	fetchCount          metric.Int64Counter
	fetchFailureCount   metric.Int64Counter
	sharedFetchCount    metric.Int64Counter
	staleServeCount     metric.Int64Counter
	storeFailureCount   metric.Int64Counter
	discardedWriteCount metric.Int64Counter
}

func setupSWRMetrics(meter metric.Meter) (swrMetricsCollection, error) {
	var err error
	counter := func(name, description string) metric.Int64Counter {
		if err != nil {
			return nil
		}
		var c metric.Int64Counter
		c, err = meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			err = fmt.Errorf("failed to create %s metric: %w", name, err)
		}
		return c
	}

	metrics := swrMetricsCollection{
		lookupCount:         counter("cache/swr/lookup_count", "Cache lookups, labeled by hit or miss"),
		decodeFailureCount:  counter("cache/swr/decode_failure_count", "Values that could not be decoded"),
		fetchCount:          counter("cache/swr/fetch_count", "Fetches started against the source of truth"),
		fetchFailureCount:   counter("cache/swr/fetch_failure_count", "Fetches that failed"),
		sharedFetchCount:    counter("cache/swr/shared_fetch_count", "Reads that received the result of a shared fetch"),
		staleServeCount:     counter("cache/swr/stale_serve_count", "Reads that ended on a cached value because the fresh one was unusable"),
		storeFailureCount:   counter("cache/swr/store_failure_count", "Key store operations that failed"),
		discardedWriteCount: counter("cache/swr/discarded_write_count", "Fetch results not stored, labeled by reason"),
	}
	if err != nil {
		return swrMetricsCollection{}, err
	}

	return metrics, nil
}

// SWRCache serves cached values while revalidating them against the source of truth
type SWRCache struct {
	store KeyStore

	group singleflight.Group

	inFlightLock sync.Mutex
	inFlight     map[string]map[*flight]struct{}

	// Held for reading while storing fetch results and for writing while invalidating
	writeLock sync.RWMutex

	metrics swrMetricsCollection
	tracer  trace.Tracer
}

func NewSWRCache(store KeyStore) (*SWRCache, error) {
	const name = "batchroom/cache/swr"

	meter := otel.Meter(name)
	tracer := otel.Tracer(name)

	metrics, err := setupSWRMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	return &SWRCache{
		store:    store,
		inFlight: make(map[string]map[*flight]struct{}),
		metrics:  metrics,
		tracer:   tracer,
	}, nil
}

// SWR returns a sequence of at most two values for the key: the cached value, if any,
// followed by the freshly fetched one.
//
// The fetch is started before the cached value is yielded, and only one fetch per key
// is in flight at a time. Concurrent readers of the same key share its result.
// The fetch runs detached from ctx: cancelling ctx or stopping the iteration ends the
// sequence, but the fetch completes and stores its result.
//
// When the fetch fails after a cached value was yielded the sequence ends without an
// error, and the stored value is left untouched. When nothing was yielded the sequence
// ends with a single error wrapping ErrFetchFailed (or ErrDecodeFailed).
func SWR[T any](ctx context.Context, c *SWRCache, key string, fetch Fetcher, decode Decoder[T]) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var empty T

		if err := ValidateKey(key); err != nil {
			yield(empty, err)
			return
		}

		logger := logging.FromContext(ctx).With("cacheKey", key)

		cached, hit := lookup(ctx, c, key, decode)

		results := c.refresh(ctx, key, fetch, func(raw json.RawMessage) error {
			_, err := decode(raw)
			return err
		})

		if hit {
			if !yield(cached, nil) {
				return
			}
		}

		var result singleflight.Result
		select {
		case result = <-results:
		case <-ctx.Done():
			if !hit {
				yield(empty, fmt.Errorf("cancelled while waiting for '%s': %w", key, ctx.Err()))
			}
			return
		}

		if result.Shared {
			c.metrics.sharedFetchCount.Add(ctx, 1)
		}

		if result.Err != nil {
			if hit {
				logger.InfoContext(ctx, "Fetch failed, keeping cached value", "error", result.Err.Error())
				c.metrics.staleServeCount.Add(ctx, 1)
				return
			}
			yield(empty, fmt.Errorf("%w: '%s': %w", ErrFetchFailed, key, result.Err))
			return
		}

		raw, ok := result.Val.(json.RawMessage)
		if !ok {
			// Only refresh puts values in the group
			panic(fmt.Sprintf("unexpected fetch result type %T", result.Val))
		}

		fresh, err := decode(raw)
		if err != nil {
			c.metrics.decodeFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "fetch")))
			logger.ErrorContext(ctx, "Failed to decode fetched value", "error", err.Error())
			if hit {
				c.metrics.staleServeCount.Add(ctx, 1)
				return
			}
			yield(empty, fmt.Errorf("%w: fetched value for '%s': %w", ErrDecodeFailed, key, err))
			return
		}

		yield(fresh, nil)
	}
}

func lookup[T any](ctx context.Context, c *SWRCache, key string, decode Decoder[T]) (T, bool) {
	var empty T

	raw, ok := c.Get(ctx, key)
	if !ok {
		c.metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
		return empty, false
	}

	value, err := decode(raw)
	if err != nil {
		c.metrics.decodeFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("source", "store")))
		c.metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "miss")))
		logging.FromContext(ctx).WarnContext(ctx, "Failed to decode cached value, treating as miss", "cacheKey", key, "error", err.Error())
		return empty, false
	}

	c.metrics.lookupCount.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "hit")))
	return value, true
}

// refresh starts or joins the fetch for the key. Only values accepted by validate are stored.
func (c *SWRCache) refresh(ctx context.Context, key string, fetch Fetcher, validate func(json.RawMessage) error) <-chan singleflight.Result {
	// The fetch outlives the reader that started it
	detachedCtx := context.WithoutCancel(ctx)

	return c.group.DoChan(key, func() (any, error) {
		f := c.startFlight(key)
		defer c.endFlight(key, f)

		ctx, span := c.tracer.Start(detachedCtx, "SWRCache.fetch")
		defer span.End()

		c.metrics.fetchCount.Add(ctx, 1)

		raw, err := fetch(ctx)
		if err != nil {
			c.metrics.fetchFailureCount.Add(ctx, 1)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		// NOTE: An undecodable value must not replace the last good one
		if err := validate(raw); err != nil {
			c.metrics.discardedWriteCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "undecodable")))
			logging.FromContext(ctx).WarnContext(ctx, "Not storing undecodable fetched value", "cacheKey", key, "error", err.Error())
			return raw, nil
		}

		// NOTE: Stored before being handed to readers so a reader arriving after the
		// fetch settles always finds it in the store
		c.storeFetched(ctx, key, raw, f)

		return raw, nil
	})
}

func (c *SWRCache) storeFetched(ctx context.Context, key string, raw json.RawMessage, f *flight) {
	c.writeLock.RLock()
	defer c.writeLock.RUnlock()

	if f.invalidated.Load() {
		c.metrics.discardedWriteCount.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", "invalidated")))
		logging.FromContext(ctx).InfoContext(ctx, "Not storing fetched value due to invalidation during fetch", "cacheKey", key)
		return
	}

	// NOTE: Put reports its own errors
	_ = c.Put(ctx, key, raw)
}

// flight is a single running fetch
type flight struct {
	// Set when the key was invalidated while the fetch was running
	invalidated atomic.Bool
}

func (c *SWRCache) startFlight(key string) *flight {
	c.inFlightLock.Lock()
	defer c.inFlightLock.Unlock()

	f := &flight{}
	if c.inFlight[key] == nil {
		c.inFlight[key] = make(map[*flight]struct{})
	}
	c.inFlight[key][f] = struct{}{}
	return f
}

func (c *SWRCache) endFlight(key string, f *flight) {
	c.inFlightLock.Lock()
	defer c.inFlightLock.Unlock()

	delete(c.inFlight[key], f)
	if len(c.inFlight[key]) == 0 {
		delete(c.inFlight, key)
	}
}

// forget marks the running fetches for matching keys so their results are not stored,
// and makes subsequent readers start a new fetch instead of attaching to them.
// Must be called with writeLock held.
func (c *SWRCache) forget(matches func(key string) bool) {
	c.inFlightLock.Lock()
	defer c.inFlightLock.Unlock()

	for key, flights := range c.inFlight {
		if !matches(key) {
			continue
		}
		for f := range flights {
			f.invalidated.Store(true)
		}
		c.group.Forget(key)
	}
}

// Get returns the stored value for the key. Store failures are reported and treated as absent.
func (c *SWRCache) Get(ctx context.Context, key string) (json.RawMessage, bool) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.metrics.storeFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "get")))
		err := fmt.Errorf("failed to get '%s' from key store: %w", key, err)
		logging.FromContext(ctx).ErrorContext(ctx, err.Error())
		reporting.Report(ctx, err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return entry.Value, true
}

func (c *SWRCache) Put(ctx context.Context, key string, value json.RawMessage) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	err := c.store.Put(ctx, key, value)
	if err != nil {
		c.metrics.storeFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "put")))
		err := fmt.Errorf("failed to put '%s' in key store: %w", key, err)
		logging.FromContext(ctx).ErrorContext(ctx, err.Error())
		reporting.Report(ctx, err)
		return err
	}
	return nil
}

// Invalidate removes exactly the given key
func (c *SWRCache) Invalidate(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	c.forget(func(inFlightKey string) bool {
		return inFlightKey == key
	})

	err := c.store.Invalidate(ctx, key)
	if err != nil {
		c.metrics.storeFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "invalidate")))
		err := fmt.Errorf("failed to invalidate '%s': %w", key, err)
		logging.FromContext(ctx).ErrorContext(ctx, err.Error())
		reporting.Report(ctx, err)
		return err
	}
	return nil
}

// InvalidatePrefix removes the key itself and every key below it.
//
// Matching respects segment boundaries: "batch:c1" removes "batch:c1" and "batch:c1:42",
// but not "batch:c10". A prefix ending in ":" only removes the keys below it.
func (c *SWRCache) InvalidatePrefix(ctx context.Context, prefix string) error {
	exact := strings.TrimSuffix(prefix, KeySeparator)
	if err := ValidateKey(exact); err != nil {
		return err
	}
	includeExact := exact == prefix
	below := segmentPrefix(exact)

	c.writeLock.Lock()
	defer c.writeLock.Unlock()

	c.forget(func(inFlightKey string) bool {
		return (includeExact && inFlightKey == exact) || strings.HasPrefix(inFlightKey, below)
	})

	var err error
	if includeExact {
		err = c.store.Invalidate(ctx, exact)
	}
	if err == nil {
		err = c.store.InvalidatePrefix(ctx, below)
	}
	if err != nil {
		c.metrics.storeFailureCount.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", "invalidate_prefix")))
		err := fmt.Errorf("failed to invalidate prefix '%s': %w", prefix, err)
		logging.FromContext(ctx).ErrorContext(ctx, err.Error())
		reporting.Report(ctx, err)
		return err
	}
	return nil
}
