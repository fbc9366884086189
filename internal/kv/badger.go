package kv

import (
	"context"
	"errors"
	"fmt"
	"iter"

	badger "github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
)

// Badger is a Store backed by BadgerDB v4.
type Badger struct {
	db   *badger.DB
	opts *Options
}

var _ Store = (*Badger)(nil)

// BadgerOptions configures the BadgerDB store.
type BadgerOptions struct {
	Options *Options

	// Dir holds the data files. Required unless InMemory is set.
	Dir string

	// InMemory keeps everything in memory with no disk persistence.
	InMemory bool

	// Logger receives badger's warnings and errors. Nil discards them.
	Logger *zap.Logger
}

// NewBadger opens a BadgerDB-backed Store.
func NewBadger(bopts BadgerOptions) (*Badger, error) {
	if !bopts.InMemory && bopts.Dir == "" {
		return nil, matcherr.New(matcherr.CodeConfigInvalid, "badger data directory is required for on-disk mode")
	}

	dbOpts := badger.DefaultOptions(bopts.Dir)
	if bopts.InMemory {
		dbOpts = badger.DefaultOptions("").WithInMemory(true)
	}
	dbOpts = dbOpts.WithLogger(zapLogger{bopts.Logger})

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, matcherr.Wrap(err, matcherr.CodeStorageUnavailable, "open badger",
			matcherr.Field("dir", bopts.Dir),
		)
	}
	return &Badger{db: db, opts: bopts.Options}, nil
}

func (b *Badger) Get(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable(err, "get", key)
	}
	k, err := b.opts.encode(key)
	if err != nil {
		return nil, err
	}

	var val []byte
	err = b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	return val, unavailable(err, "get", key)
}

func (b *Badger) Set(ctx context.Context, key Key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "set", key)
	}
	k, err := b.opts.encode(key)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(k, value)
	})
	return unavailable(err, "set", key)
}

func (b *Badger) Delete(ctx context.Context, key Key) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "delete", key)
	}
	k, err := b.opts.encode(key)
	if err != nil {
		return err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(k)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	return unavailable(err, "delete", key)
}

func (b *Badger) List(ctx context.Context, prefix Key) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		p, err := b.opts.listPrefix(prefix)
		if err != nil {
			yield(Entry{}, err)
			return
		}

		stopped := false
		err = b.db.View(func(txn *badger.Txn) error {
			iterOpts := badger.DefaultIteratorOptions
			iterOpts.Prefix = p
			it := txn.NewIterator(iterOpts)
			defer it.Close()

			for it.Seek(p); it.ValidForPrefix(p); it.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}

				item := it.Item()
				val, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}

				if !yield(Entry{Key: b.opts.decode(item.KeyCopy(nil)), Value: val}, nil) {
					stopped = true
					return nil
				}
			}
			return nil
		})
		if err != nil && !stopped {
			yield(Entry{}, unavailable(err, "list", prefix))
		}
	}
}

func (b *Badger) BatchSet(ctx context.Context, entries []Entry) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "batch set", nil)
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, e := range entries {
		k, err := b.opts.encode(e.Key)
		if err != nil {
			return err
		}
		if err := wb.Set(k, e.Value); err != nil {
			return unavailable(err, "batch set", e.Key)
		}
	}
	return unavailable(wb.Flush(), "batch set", nil)
}

func (b *Badger) BatchDelete(ctx context.Context, keys []Key) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err, "batch delete", nil)
	}
	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		k, err := b.opts.encode(key)
		if err != nil {
			return err
		}
		if err := wb.Delete(k); err != nil {
			return unavailable(err, "batch delete", key)
		}
	}
	return unavailable(wb.Flush(), "batch delete", nil)
}

func (b *Badger) Close() error {
	return b.db.Close()
}

// zapLogger forwards badger warnings and errors to zap and drops the rest.
type zapLogger struct {
	l *zap.Logger
}

func (z zapLogger) Errorf(f string, v ...any) {
	if z.l != nil {
		z.l.Error(fmt.Sprintf(f, v...), zap.String("component", "badger"))
	}
}

func (z zapLogger) Warningf(f string, v ...any) {
	if z.l != nil {
		z.l.Warn(fmt.Sprintf(f, v...), zap.String("component", "badger"))
	}
}

func (zapLogger) Infof(string, ...any)  {}
func (zapLogger) Debugf(string, ...any) {}
