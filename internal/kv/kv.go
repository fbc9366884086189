// Package kv is the byte-level storage used by the profile store and the
// outcome ledger. Keys are hierarchical paths joined with a separator.
//
// Badger is the durable implementation. Memory is a sorted map for tests and
// for running the CLI without a data directory.
package kv

import (
	"context"
	"errors"
	"iter"
	"strings"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("kv: not found")

// Key is a hierarchical path such as {"profile", "c-42"}. Segments must not
// contain the separator.
type Key []string

// String joins the segments with ':' for display.
func (k Key) String() string {
	return strings.Join(k, ":")
}

// Entry is a key-value pair returned by List and used by BatchSet.
type Entry struct {
	Key   Key
	Value []byte
}

// Store is a key-value store with path-based keys.
type Store interface {
	// Get returns ErrNotFound if the key is not present.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Set overwrites any existing value.
	Set(ctx context.Context, key Key, value []byte) error

	// Delete does not fail on absent keys.
	Delete(ctx context.Context, key Key) error

	// List iterates lexicographically over entries under prefix.
	List(ctx context.Context, prefix Key) iter.Seq2[Entry, error]

	// BatchSet atomically stores multiple pairs.
	BatchSet(ctx context.Context, entries []Entry) error

	// BatchDelete atomically removes multiple keys.
	BatchDelete(ctx context.Context, keys []Key) error

	Close() error
}

// DefaultSeparator joins key segments in storage.
const DefaultSeparator byte = ':'

// Options configures store behaviour.
type Options struct {
	// Separator defaults to ':' when zero.
	Separator byte
}

func (o *Options) sep() byte {
	if o != nil && o.Separator != 0 {
		return o.Separator
	}
	return DefaultSeparator
}

// encode validates and joins the key.
func (o *Options) encode(k Key) ([]byte, error) {
	s := o.sep()
	n := 0
	for i, seg := range k {
		if strings.IndexByte(seg, s) >= 0 {
			return nil, matcherr.New(matcherr.CodeMatchInvalidInput, "key segment contains separator",
				matcherr.Field("segment", seg),
				matcherr.Field("position", i),
			)
		}
		if i > 0 {
			n++
		}
		n += len(seg)
	}

	buf := make([]byte, 0, n)
	for i, seg := range k {
		if i > 0 {
			buf = append(buf, s)
		}
		buf = append(buf, seg...)
	}
	return buf, nil
}

func (o *Options) decode(b []byte) Key {
	return strings.Split(string(b), string(o.sep()))
}

// listPrefix appends the separator so {"a","b"} does not match "a:bc". An
// empty prefix scans everything.
func (o *Options) listPrefix(prefix Key) ([]byte, error) {
	p, err := o.encode(prefix)
	if err != nil || len(p) == 0 {
		return nil, err
	}
	return append(p, o.sep()), nil
}

// unavailable tags a backend failure. Not-found and already coded errors pass
// through untouched.
func unavailable(err error, op string, key Key) error {
	if err == nil || errors.Is(err, ErrNotFound) || matcherr.CodeOf(err) != "" {
		return err
	}
	return matcherr.Wrap(err, matcherr.CodeStorageUnavailable, "kv "+op+" failed",
		matcherr.Field("key", key.String()),
	)
}
