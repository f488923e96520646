package reporting

import (
	"context"
	"maps"
	"time"
)

type reportingMetaContextKey struct{}

// ReportingMeta is attached to every error reported while handling a request
type ReportingMeta struct {
	tags   map[string]string
	extras map[string]string
	userID string

	coachingID     string
	batchID        string
	idempotencyKey string

	startedAt time.Time
}

func MetaFromContext(ctx context.Context) ReportingMeta {
	meta, ok := ctx.Value(reportingMetaContextKey{}).(ReportingMeta)
	if !ok {
		return ReportingMeta{
			tags:   make(map[string]string),
			extras: make(map[string]string),
		}
	}
	meta.tags = maps.Clone(meta.tags)
	meta.extras = maps.Clone(meta.extras)
	return meta
}

func updateMeta(ctx context.Context, update func(meta *ReportingMeta)) context.Context {
	meta := MetaFromContext(ctx)
	update(&meta)
	return context.WithValue(ctx, reportingMetaContextKey{}, meta)
}

func setStartedAtInContext(ctx context.Context, startedAt time.Time) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		meta.startedAt = startedAt
	})
}

func AddExtrasToContext(ctx context.Context, extras map[string]string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		maps.Copy(meta.extras, extras)
	})
}

func AddTagsToContext(ctx context.Context, tags map[string]string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		maps.Copy(meta.tags, tags)
	})
}

func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		meta.userID = userID
	})
}

// SetBatchInContext records which coaching and batch the request operates on.
// Empty ids keep the previously recorded value.
func SetBatchInContext(ctx context.Context, coachingID, batchID string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		if coachingID != "" {
			meta.coachingID = coachingID
		}
		if batchID != "" {
			meta.batchID = batchID
		}
	})
}

func SetIdempotencyKeyInContext(ctx context.Context, key string) context.Context {
	return updateMeta(ctx, func(meta *ReportingMeta) {
		meta.idempotencyKey = key
	})
}

// scopeTags are the tags reported to Sentry, including the batch the request operates on
func (m ReportingMeta) scopeTags() map[string]string {
	tags := maps.Clone(m.tags)
	if m.coachingID != "" {
		tags["coachingId"] = m.coachingID
	}
	if m.batchID != "" {
		tags["batchId"] = m.batchID
	}
	return tags
}

// scopeExtras are the extras reported to Sentry
func (m ReportingMeta) scopeExtras(now time.Time) map[string]any {
	extras := make(map[string]any, len(m.extras)+2)
	for key, value := range m.extras {
		extras[key] = value
	}
	if m.idempotencyKey != "" {
		extras["idempotencyKey"] = m.idempotencyKey
	}
	if !m.startedAt.IsZero() {
		extras["secondsSinceStart"] = now.Sub(m.startedAt).Seconds()
	}
	return extras
}
