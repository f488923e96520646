package domain

import (
	"context"
	"fmt"
)

const maxIdempotencyKeyLength = 255

type idempotencyKeyContextKey struct{}

// ValidateIdempotencyKey accepts 1 to 255 visible ASCII characters
func ValidateIdempotencyKey(key string) error {
	if key == "" || len(key) > maxIdempotencyKeyLength {
		return fmt.Errorf("%w: idempotency key must be between 1 and %d characters", ErrInvalidInput, maxIdempotencyKeyLength)
	}
	for i := 0; i < len(key); i++ {
		if key[i] < '!' || key[i] > '~' {
			return fmt.Errorf("%w: idempotency key must be visible ascii", ErrInvalidInput)
		}
	}
	return nil
}

// WithIdempotencyKey marks the mutation made with ctx so that a retry with the same key
// is applied at most once upstream
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyContextKey{}, key)
}

func IdempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyContextKey{}).(string)
	return key, ok && key != ""
}
