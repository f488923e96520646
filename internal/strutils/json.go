package strutils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

func decodeJSON(data []byte) (any, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	// NOTE: Keep numbers as written so large ids and timestamps compare exactly
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("trailing data after json value")
	}
	return value, nil
}

// JSONStringsEqual reports whether a and b encode the same JSON value, ignoring whitespace and key order
func JSONStringsEqual(a, b []byte) (bool, error) {
	valueA, err := decodeJSON(a)
	if err != nil {
		return false, fmt.Errorf("invalid json in first argument: %w", err)
	}

	valueB, err := decodeJSON(b)
	if err != nil {
		return false, fmt.Errorf("invalid json in second argument: %w", err)
	}

	return reflect.DeepEqual(valueA, valueB), nil
}
