package kv

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
	opts *Options
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store. Pass nil for default options.
func NewMemory(opts *Options) *Memory {
	return &Memory{
		data: make(map[string][]byte),
		opts: opts,
	}
}

func (m *Memory) Get(_ context.Context, key Key) ([]byte, error) {
	k, err := m.opts.encode(key)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	v, ok := m.data[string(k)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(v), nil
}

func (m *Memory) Set(_ context.Context, key Key, value []byte) error {
	k, err := m.opts.encode(key)
	if err != nil {
		return err
	}
	cp := slices.Clone(value)
	m.mu.Lock()
	m.data[string(k)] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, key Key) error {
	k, err := m.opts.encode(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.data, string(k))
	m.mu.Unlock()
	return nil
}

// List snapshots matching entries under the read lock and yields them in key
// order after releasing it.
func (m *Memory) List(_ context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		p, err := m.opts.listPrefix(prefix)
		if err != nil {
			yield(Entry{}, err)
			return
		}

		type pair struct {
			key string
			val []byte
		}

		m.mu.RLock()
		var matches []pair
		for k, v := range m.data {
			if strings.HasPrefix(k, string(p)) {
				matches = append(matches, pair{k, slices.Clone(v)})
			}
		}
		m.mu.RUnlock()

		slices.SortFunc(matches, func(a, b pair) int { return strings.Compare(a.key, b.key) })

		for _, kv := range matches {
			if !yield(Entry{Key: m.opts.decode([]byte(kv.key)), Value: kv.val}, nil) {
				return
			}
		}
	}
}

func (m *Memory) BatchSet(_ context.Context, entries []Entry) error {
	encoded := make([]string, len(entries))
	for i, e := range entries {
		k, err := m.opts.encode(e.Key)
		if err != nil {
			return err
		}
		encoded[i] = string(k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range entries {
		m.data[encoded[i]] = slices.Clone(e.Value)
	}
	return nil
}

func (m *Memory) BatchDelete(_ context.Context, keys []Key) error {
	encoded := make([]string, len(keys))
	for i, key := range keys {
		k, err := m.opts.encode(key)
		if err != nil {
			return err
		}
		encoded[i] = string(k)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range encoded {
		delete(m.data, k)
	}
	return nil
}

func (m *Memory) Close() error {
	return nil
}
