// Package kv implements the associative structure the channel uses for both
// the request and response header blocks (and, via cookie.Jar, for parsed
// cookies): an insertion-order preserving, case-insensitively looked-up
// multimap.
package kv

import (
	"iter"

	"github.com/duskhttp/dusk/internal/strutil"
)

// Pair is a single key-value entry.
type Pair struct {
	Key, Value string
}

// Storage is an associative structure for storing (string, string) pairs. It
// acts like a map but uses linear search instead, which turns out to be more
// efficient for the small entry counts a header block or a cookie jar has.
type Storage struct {
	pairs      []Pair
	uniqueBuff []string
	valuesBuff []string
}

// New returns an empty Storage.
func New() *Storage {
	return new(Storage)
}

// NewPrealloc returns a Storage with pre-allocated room for n pairs.
func NewPrealloc(n int) *Storage {
	return &Storage{
		pairs: make([]Pair, 0, n),
	}
}

// Add appends a new (key, value) pair. Existing pairs under the same key are
// left untouched — this is how a header block accumulates multiple values
// for, say, Set-Cookie.
func (s *Storage) Add(key, value string) *Storage {
	s.pairs = append(s.pairs, Pair{Key: key, Value: value})
	return s
}

// Set replaces every existing value under key with a single new one,
// appending it if the key wasn't present. Used by the channel's completion
// phase to force Connection: close in place rather than accumulating
// duplicates.
func (s *Storage) Set(key, value string) *Storage {
	for i, pair := range s.pairs {
		if strutil.CmpFold(pair.Key, key) {
			s.pairs[i].Value = value
			s.deleteFrom(i + 1, key)
			return s
		}
	}

	return s.Add(key, value)
}

func (s *Storage) deleteFrom(from int, key string) {
	kept := s.pairs[:from]
	for _, pair := range s.pairs[from:] {
		if !strutil.CmpFold(pair.Key, key) {
			kept = append(kept, pair)
		}
	}
	s.pairs = kept
}

// Delete removes every pair under key.
func (s *Storage) Delete(key string) *Storage {
	kept := s.pairs[:0]
	for _, pair := range s.pairs {
		if !strutil.CmpFold(pair.Key, key) {
			kept = append(kept, pair)
		}
	}
	s.pairs = kept
	return s
}

// Value returns the first value under key, or "" if absent.
func (s *Storage) Value(key string) string {
	return s.ValueOr(key, "")
}

// ValueOr returns the first value under key, or the given default.
func (s *Storage) ValueOr(key, or string) string {
	if value, found := s.Get(key); found {
		return value
	}

	return or
}

// Get returns the first value under key and whether it was found.
func (s *Storage) Get(key string) (value string, found bool) {
	for _, pair := range s.pairs {
		if strutil.CmpFold(key, pair.Key) {
			return pair.Value, true
		}
	}

	return "", false
}

// Values returns every value under key.
//
// WARNING: the returned slice is reused across calls; copy it if you need to
// hold on to it past the next call to Values.
func (s *Storage) Values(key string) []string {
	s.valuesBuff = s.valuesBuff[:0]

	for _, pair := range s.pairs {
		if strutil.CmpFold(pair.Key, key) {
			s.valuesBuff = append(s.valuesBuff, pair.Value)
		}
	}

	if len(s.valuesBuff) == 0 {
		return nil
	}

	return s.valuesBuff
}

// Keys returns every unique key, in first-seen order.
//
// WARNING: the returned slice is reused across calls.
func (s *Storage) Keys() []string {
	s.uniqueBuff = s.uniqueBuff[:0]

	for _, pair := range s.pairs {
		if contains(s.uniqueBuff, pair.Key) {
			continue
		}

		s.uniqueBuff = append(s.uniqueBuff, pair.Key)
	}

	return s.uniqueBuff
}

// Has reports whether key has at least one value.
func (s *Storage) Has(key string) bool {
	_, found := s.Get(key)
	return found
}

// Iter returns an iterator over every pair, in insertion order.
func (s *Storage) Iter() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, pair := range s.pairs {
			if !yield(pair.Key, pair.Value) {
				return
			}
		}
	}
}

// Len returns the number of stored pairs.
func (s *Storage) Len() int {
	return len(s.pairs)
}

// Empty reports whether the storage holds no pairs.
func (s *Storage) Empty() bool {
	return len(s.pairs) == 0
}

// Expose exposes the underlying pairs slice, read-only by convention.
func (s *Storage) Expose() []Pair {
	return s.pairs
}

// Clear empties the storage without releasing the underlying array, so it
// can be reused across requests the way Channel.reset requires.
func (s *Storage) Clear() *Storage {
	s.pairs = s.pairs[:0]
	return s
}

// Clone returns a deep copy.
func (s *Storage) Clone() *Storage {
	return &Storage{pairs: clone(s.pairs)}
}

func contains(collection []string, key string) bool {
	for _, element := range collection {
		if strutil.CmpFold(element, key) {
			return true
		}
	}

	return false
}

func clone[T any](source []T) []T {
	if len(source) == 0 {
		return nil
	}

	dst := make([]T, len(source))
	copy(dst, source)

	return dst
}
