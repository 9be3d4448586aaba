// Package kv provides a small key-value store abstraction with hierarchical
// path-based keys, used as the at-rest layer for session and event records.
//
// Keys are string slices (e.g. ["sess", "2f1c..."]) joined with ':' for
// storage. The package ships a BadgerDB-backed implementation for durable
// deployments and an in-memory implementation for tests.
package kv

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"strings"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Separator joins key segments in the encoded form. Segments must not
// contain it.
const Separator = ':'

// Key is a hierarchical path represented as a slice of string segments.
type Key []string

// String returns the encoded form of the key.
func (k Key) String() string {
	return strings.Join(k, string(Separator))
}

// Entry is a key-value pair yielded by List.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a byte-oriented key-value store.
//
// Implementations must be safe for concurrent use. List yields entries in
// lexicographic order of the encoded key.
type Store interface {
	// Get retrieves the value for a key. Returns ErrNotFound if absent.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set stores a key-value pair, overwriting any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key Key) error

	// List iterates over all entries whose key starts with the given
	// prefix, in lexicographic order of the encoded key.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// Close releases any resources held by the store.
	Close() error
}

// encode joins key segments with the separator.
func encode(key Key) []byte {
	return []byte(strings.Join(key, string(Separator)))
}

// decode splits an encoded key back into segments.
func decode(b []byte) Key {
	return Key(strings.Split(string(b), string(Separator)))
}

// prefixBytes returns the byte prefix that matches whole segments only, so
// prefix ["a","b"] matches "a:b:c" but not "a:bc".
func prefixBytes(prefix Key) []byte {
	p := encode(prefix)
	if len(p) == 0 {
		return nil
	}
	return append(p, Separator)
}

// hasPrefix reports whether the encoded key k falls under the prefix p
// produced by prefixBytes. An empty prefix matches everything.
func hasPrefix(k, p []byte) bool {
	return len(p) == 0 || bytes.HasPrefix(k, p)
}
