package keystore

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/Amund211/batchroom/internal/adapters/database"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// runKeyStoreTests checks the behaviour every KeyStore implementation shares
func runKeyStoreTests(t *testing.T, newStore func(t *testing.T, nowFunc func() time.Time) cache.KeyStore) {
	t.Helper()

	now := time.Date(2026, time.February, 10, 12, 30, 0, 0, time.UTC)
	nowFunc := func() time.Time {
		return now
	}

	requireValue := func(t *testing.T, store cache.KeyStore, key string, expected string) {
		t.Helper()
		entry, ok, err := store.Get(t.Context(), key)
		require.NoError(t, err)
		require.True(t, ok, "expected '%s' to be stored", key)
		require.Equal(t, key, entry.Key)
		require.JSONEq(t, expected, string(entry.Value))
	}

	requireMissing := func(t *testing.T, store cache.KeyStore, key string) {
		t.Helper()
		_, ok, err := store.Get(t.Context(), key)
		require.NoError(t, err)
		require.False(t, ok, "expected '%s' to be absent", key)
	}

	t.Run("get missing", func(t *testing.T) {
		store := newStore(t, nowFunc)
		requireMissing(t, store, "batch:c1")
	})

	t.Run("put and get", func(t *testing.T) {
		store := newStore(t, nowFunc)

		require.NoError(t, store.Put(t.Context(), "batch:c1:b1", json.RawMessage(`{"id":"b1","name":"Math-10"}`)))
		requireValue(t, store, "batch:c1:b1", `{"id":"b1","name":"Math-10"}`)

		entry, ok, err := store.Get(t.Context(), "batch:c1:b1")
		require.NoError(t, err)
		require.True(t, ok)
		require.WithinDuration(t, now, entry.StoredAt, time.Millisecond)
	})

	t.Run("put overwrites", func(t *testing.T) {
		store := newStore(t, nowFunc)

		require.NoError(t, store.Put(t.Context(), "batch:c1:b1:members", json.RawMessage(`[]`)))
		require.NoError(t, store.Put(t.Context(), "batch:c1:b1:members", json.RawMessage(`[{"userId":"u1"}]`)))
		requireValue(t, store, "batch:c1:b1:members", `[{"userId":"u1"}]`)
	})

	t.Run("invalidate is exact", func(t *testing.T) {
		store := newStore(t, nowFunc)

		require.NoError(t, store.Put(t.Context(), "batch:c1", json.RawMessage(`"A"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c10", json.RawMessage(`"B"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c1:b1", json.RawMessage(`"C"`)))

		require.NoError(t, store.Invalidate(t.Context(), "batch:c1"))
		require.NoError(t, store.Invalidate(t.Context(), "batch:missing"))

		requireMissing(t, store, "batch:c1")
		requireValue(t, store, "batch:c10", `"B"`)
		requireValue(t, store, "batch:c1:b1", `"C"`)
	})

	t.Run("invalidate prefix", func(t *testing.T) {
		store := newStore(t, nowFunc)

		require.NoError(t, store.Put(t.Context(), "batch:c1:list", json.RawMessage(`"A"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c1:42", json.RawMessage(`"B"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c2:list", json.RawMessage(`"C"`)))

		require.NoError(t, store.InvalidatePrefix(t.Context(), "batch:c1:"))

		requireMissing(t, store, "batch:c1:list")
		requireMissing(t, store, "batch:c1:42")
		requireValue(t, store, "batch:c2:list", `"C"`)
	})

	t.Run("invalidate prefix is byte-wise", func(t *testing.T) {
		store := newStore(t, nowFunc)

		require.NoError(t, store.Put(t.Context(), "batch:c1", json.RawMessage(`"A"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c10", json.RawMessage(`"B"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c2", json.RawMessage(`"C"`)))

		require.NoError(t, store.InvalidatePrefix(t.Context(), "batch:c1"))

		requireMissing(t, store, "batch:c1")
		requireMissing(t, store, "batch:c10")
		requireValue(t, store, "batch:c2", `"C"`)
	})

	t.Run("pattern characters in the prefix are literal", func(t *testing.T) {
		store := newStore(t, nowFunc)

		require.NoError(t, store.Put(t.Context(), "batch:c_1:b1", json.RawMessage(`"A"`)))
		require.NoError(t, store.Put(t.Context(), "batch:cX1:b1", json.RawMessage(`"B"`)))
		require.NoError(t, store.Put(t.Context(), "batch:c*:b1", json.RawMessage(`"C"`)))
		require.NoError(t, store.Put(t.Context(), "batch:cY:b1", json.RawMessage(`"D"`)))

		require.NoError(t, store.InvalidatePrefix(t.Context(), "batch:c_1:"))
		require.NoError(t, store.InvalidatePrefix(t.Context(), "batch:c*:"))

		requireMissing(t, store, "batch:c_1:b1")
		requireMissing(t, store, "batch:c*:b1")
		requireValue(t, store, "batch:cX1:b1", `"B"`)
		requireValue(t, store, "batch:cY:b1", `"D"`)
	})

	t.Run("invalidate many keys by prefix", func(t *testing.T) {
		store := newStore(t, nowFunc)

		for i := range 1234 {
			require.NoError(t, store.Put(t.Context(), fmt.Sprintf("batch:c1:b%d", i), json.RawMessage(`1`)))
		}
		require.NoError(t, store.Put(t.Context(), "batch:c2:b1", json.RawMessage(`2`)))

		require.NoError(t, store.InvalidatePrefix(t.Context(), "batch:c1:"))

		for i := range 1234 {
			requireMissing(t, store, fmt.Sprintf("batch:c1:b%d", i))
		}
		requireValue(t, store, "batch:c2:b1", `2`)
	})
}

func TestMemoryKeyStoreContract(t *testing.T) {
	t.Parallel()

	runKeyStoreTests(t, func(t *testing.T, nowFunc func() time.Time) cache.KeyStore {
		return cache.NewMemoryKeyStore(nowFunc)
	})
}

func TestPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping db tests in short mode.")
	}

	db, err := database.NewPostgresDatabase(t.Context(), database.LOCAL_CONNECTION_STRING)
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	schemaCount := 0
	runKeyStoreTests(t, func(t *testing.T, nowFunc func() time.Time) cache.KeyStore {
		schemaCount++
		return newPostgres(t, db, logger, fmt.Sprintf("%d", schemaCount), nowFunc)
	})
}

func newPostgres(t *testing.T, db *sqlx.DB, logger *slog.Logger, schemaSuffix string, nowFunc func() time.Time) *Postgres {
	t.Helper()
	require.NotEmpty(t, schemaSuffix, "schemaSuffix must not be empty")
	schema := fmt.Sprintf("keystore_test_%s", schemaSuffix)

	db.MustExec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schema)))

	migrator := database.NewDatabaseMigrator(db, logger)
	require.NoError(t, migrator.Migrate(t.Context(), schema))

	return NewPostgres(db, schema, nowFunc)
}

func TestRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis tests in short mode.")
	}

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(t.Context()).Err())

	namespaceCount := 0
	runKeyStoreTests(t, func(t *testing.T, nowFunc func() time.Time) cache.KeyStore {
		namespaceCount++
		namespace := fmt.Sprintf("batchroom_test_%d_%d", time.Now().UnixNano(), namespaceCount)
		return NewRedisWithClient(client, namespace, nowFunc)
	})

	t.Run("corrupt envelope is an error", func(t *testing.T) {
		store := NewRedisWithClient(client, fmt.Sprintf("batchroom_test_corrupt_%d", time.Now().UnixNano()), time.Now)

		require.NoError(t, client.Set(t.Context(), store.key("batch:c1"), "not json", 0).Err())
		_, _, err := store.Get(t.Context(), "batch:c1")
		require.Error(t, err)

		require.NoError(t, client.Set(t.Context(), store.key("batch:c2"), `{"storedAt":"2026-01-01T00:00:00Z"}`, 0).Err())
		_, _, err = store.Get(t.Context(), "batch:c2")
		require.Error(t, err)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		suffix := time.Now().UnixNano()
		first := NewRedisWithClient(client, fmt.Sprintf("batchroom_test_a_%d", suffix), time.Now)
		second := NewRedisWithClient(client, fmt.Sprintf("batchroom_test_b_%d", suffix), time.Now)

		require.NoError(t, first.Put(t.Context(), "batch:c1", json.RawMessage(`1`)))
		require.NoError(t, second.InvalidatePrefix(t.Context(), "batch:"))

		_, ok, err := first.Get(t.Context(), "batch:c1")
		require.NoError(t, err)
		require.True(t, ok)
	})

	t.Run("NewRedis fails when unreachable", func(t *testing.T) {
		_, err := NewRedis(t.Context(), RedisConfig{Addr: "localhost:1"}, time.Now)
		require.Error(t, err)
	})
}

func TestEscapeGlob(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"batroom:batch:c1": "batroom:batch:c1",
		"batch:c*":         `batch:c\*`,
		"batch:c?":         `batch:c\?`,
		"batch:[c1]":       `batch:\[c1\]`,
		`batch:c\1`:        `batch:c\\1`,
	}
	for input, expected := range cases {
		require.Equal(t, expected, escapeGlob(input), input)
	}
}

func TestLikePrefixPattern(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"batch:c1:": "batch:c1:%",
		"batch:c_1": `batch:c\_1%`,
		"batch:50%": `batch:50\%%`,
		`batch:c\1`: `batch:c\\1%`,
	}
	for input, expected := range cases {
		require.Equal(t, expected, likePrefixPattern(input), input)
	}
}
