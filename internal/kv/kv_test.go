package kv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/kv"
)

func stores(t *testing.T) map[string]kv.Store {
	t.Helper()

	b, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	return map[string]kv.Store{
		"memory": kv.NewMemory(nil),
		"badger": b,
	}
}

func TestStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := kv.Key{"profile", "c-1"}

			_, err := s.Get(ctx, key)
			assert.ErrorIs(t, err, kv.ErrNotFound)

			require.NoError(t, s.Set(ctx, key, []byte("one")))
			got, err := s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "one", string(got))

			require.NoError(t, s.Set(ctx, key, []byte("two")))
			got, err = s.Get(ctx, key)
			require.NoError(t, err)
			assert.Equal(t, "two", string(got))

			require.NoError(t, s.Delete(ctx, key))
			_, err = s.Get(ctx, key)
			assert.ErrorIs(t, err, kv.ErrNotFound)

			assert.NoError(t, s.Delete(ctx, kv.Key{"no", "such"}))
		})
	}
}

func TestStoreListPrefixBoundary(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.BatchSet(ctx, []kv.Entry{
				{Key: kv.Key{"a", "b", "2"}, Value: []byte("2")},
				{Key: kv.Key{"a", "b", "1"}, Value: []byte("1")},
				{Key: kv.Key{"a", "bc", "1"}, Value: []byte("x")},
			}))

			var keys []string
			for e, err := range s.List(ctx, kv.Key{"a", "b"}) {
				require.NoError(t, err)
				keys = append(keys, e.Key.String())
			}
			assert.Equal(t, []string{"a:b:1", "a:b:2"}, keys)

			count := 0
			for range s.List(ctx, nil) {
				count++
			}
			assert.Equal(t, 3, count)

			require.NoError(t, s.BatchDelete(ctx, []kv.Key{{"a", "b", "1"}, {"a", "b", "2"}}))
			for e, err := range s.List(ctx, kv.Key{"a", "b"}) {
				require.Failf(t, "unexpected entry", "%v (err %v)", e.Key, err)
			}
		})
	}
}

func TestStoreListStopsEarly(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for _, id := range []string{"1", "2", "3"} {
				require.NoError(t, s.Set(ctx, kv.Key{"n", id}, []byte(id)))
			}
			seen := 0
			for range s.List(ctx, kv.Key{"n"}) {
				seen++
				break
			}
			assert.Equal(t, 1, seen)
		})
	}
}

func TestStoreRejectsSeparatorInSegment(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Set(ctx, kv.Key{"profile", "bad:id"}, []byte("x"))
			assert.True(t, matcherr.IsInvalidInput(err), "got %v", err)
		})
	}
}

func TestCustomSeparator(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory(&kv.Options{Separator: '/'})

	require.NoError(t, s.Set(ctx, kv.Key{"profile", "a:b"}, []byte("ok")))
	for e, err := range s.List(ctx, kv.Key{"profile"}) {
		require.NoError(t, err)
		assert.Equal(t, kv.Key{"profile", "a:b"}, e.Key)
	}
}

func TestBadgerRequiresDir(t *testing.T) {
	_, err := kv.NewBadger(kv.BadgerOptions{})
	assert.True(t, matcherr.IsInvalidConfiguration(err), "got %v", err)
}

func TestBadgerCancelledContext(t *testing.T) {
	s := stores(t)["badger"]
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Set(ctx, kv.Key{"k"}, []byte("v"))
	assert.True(t, matcherr.IsStorageUnavailable(err), "got %v", err)
}
