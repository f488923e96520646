package cache

import (
	"errors"
	"fmt"
	"strings"
)

const KeySeparator = ":"

var ErrInvalidKey = errors.New("invalid cache key")

// JoinKey builds a key from its segments, e.g. JoinKey("batch", "c1", "b7") -> "batch:c1:b7"
func JoinKey(segments ...string) (string, error) {
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: no segments", ErrInvalidKey)
	}
	for i, segment := range segments {
		if err := validateSegment(segment); err != nil {
			return "", fmt.Errorf("%w (segment %d)", err, i)
		}
	}
	return strings.Join(segments, KeySeparator), nil
}

func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	for segment := range strings.SplitSeq(key, KeySeparator) {
		if segment == "" {
			return fmt.Errorf("%w: empty segment in '%s'", ErrInvalidKey, key)
		}
	}
	return nil
}

func validateSegment(segment string) error {
	if segment == "" {
		return fmt.Errorf("%w: empty segment", ErrInvalidKey)
	}
	if strings.Contains(segment, KeySeparator) {
		return fmt.Errorf("%w: segment '%s' contains '%s'", ErrInvalidKey, segment, KeySeparator)
	}
	return nil
}

// segmentPrefix returns the prefix matching every key strictly below the given one
func segmentPrefix(prefix string) string {
	if strings.HasSuffix(prefix, KeySeparator) {
		return prefix
	}
	return prefix + KeySeparator
}
