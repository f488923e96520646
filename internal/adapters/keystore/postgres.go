package keystore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Amund211/batchroom/internal/adapters/cache"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db      *sqlx.DB
	schema  string
	tracer  trace.Tracer
	nowFunc func() time.Time
}

func NewPostgres(db *sqlx.DB, schema string, nowFunc func() time.Time) *Postgres {
	tracer := otel.Tracer("batchroom/keystore/postgres")
	return &Postgres{
		db:      db,
		schema:  schema,
		tracer:  tracer,
		nowFunc: nowFunc,
	}
}

type dbCacheEntry struct {
	Key      string    `db:"key"`
	Value    []byte    `db:"value"`
	StoredAt time.Time `db:"stored_at"`
}

func (p *Postgres) table() string {
	return fmt.Sprintf("%s.cache_entries", pq.QuoteIdentifier(p.schema))
}

func (p *Postgres) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.Get")
	defer span.End()

	var entry dbCacheEntry
	err := p.db.QueryRowxContext(
		ctx,
		fmt.Sprintf("SELECT key, value, stored_at FROM %s WHERE key = $1", p.table()),
		key,
	).StructScan(&entry)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false, nil
	}
	if err != nil {
		return cache.Entry{}, false, fmt.Errorf("failed to select cache entry: %w", err)
	}

	if !json.Valid(entry.Value) {
		return cache.Entry{}, false, fmt.Errorf("stored value for '%s' is not valid json", key)
	}

	return cache.Entry{
		Key:      entry.Key,
		Value:    json.RawMessage(entry.Value),
		StoredAt: entry.StoredAt,
	}, true, nil
}

func (p *Postgres) Put(ctx context.Context, key string, value json.RawMessage) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Put")
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s
		(key, value, stored_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key)
		DO UPDATE SET
			value = EXCLUDED.value,
			stored_at = EXCLUDED.stored_at`,
			p.table()),
		key,
		[]byte(value),
		p.nowFunc(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry: %w", err)
	}

	return nil
}

func (p *Postgres) Invalidate(ctx context.Context, key string) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Invalidate")
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf("DELETE FROM %s WHERE key = $1", p.table()),
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry: %w", err)
	}

	return nil
}

func (p *Postgres) InvalidatePrefix(ctx context.Context, prefix string) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.InvalidatePrefix")
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key LIKE $1 ESCAPE '\'`, p.table()),
		likePrefixPattern(prefix),
	)
	if err != nil {
		return fmt.Errorf("failed to delete cache entries by prefix: %w", err)
	}

	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefixPattern returns a LIKE pattern matching strings starting with prefix
func likePrefixPattern(prefix string) string {
	return likeEscaper.Replace(prefix) + "%"
}
