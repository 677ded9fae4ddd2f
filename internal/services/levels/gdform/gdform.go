// Package gdform encodes and decodes the game client's delimited
// key-value wire format. Records are flat token streams where keys and
// values alternate, joined by a multi-character separator, and keys are
// positive integers (the format is 1-indexed).
package gdform

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SongSeparator joins song record fields on the wire.
const SongSeparator = "~|~"

// Decode splits body on sep and pairs alternating tokens into a key-value
// map. It fails on an odd token count or a non-integer key.
func Decode(body, sep string) (map[int]string, error) {
	if sep == "" {
		return nil, fmt.Errorf("separator is required")
	}
	tokens := strings.Split(body, sep)
	if len(tokens)%2 != 0 {
		return nil, fmt.Errorf("uneven token count %d", len(tokens))
	}
	values := make(map[int]string, len(tokens)/2)
	for i := 0; i < len(tokens); i += 2 {
		key, err := strconv.Atoi(tokens[i])
		if err != nil {
			return nil, fmt.Errorf("parse key %q: %w", tokens[i], err)
		}
		values[key] = tokens[i+1]
	}
	return values, nil
}

// Encode emits values in ascending key order joined by sep. It is the
// exact mirror of Decode, so Decode(Encode(v, sep), sep) reproduces v.
func Encode(values map[int]string, sep string) string {
	keys := make([]int, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Ints(keys)

	parts := make([]string, 0, len(values)*2)
	for _, key := range keys {
		parts = append(parts, strconv.Itoa(key), values[key])
	}
	return strings.Join(parts, sep)
}
