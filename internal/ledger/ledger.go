// Package ledger is the append-only record of decisions taken on matches.
// The ranking engine never reads it; it exists for auditing scoring quality
// and for offline weight tuning.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/kv"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

// Ledger records outcomes. Reads yield records in insertion order.
type Ledger interface {
	// Append stores o, assigning an id and timestamp when they are empty.
	Append(ctx context.Context, o marketplace.Outcome) (marketplace.Outcome, error)

	ByCandidate(ctx context.Context, candidateID string) iter.Seq2[marketplace.Outcome, error]
	ByJob(ctx context.Context, jobID string) iter.Seq2[marketplace.Outcome, error]
}

const (
	recordPrefix      = "outcome"
	byCandidatePrefix = "outcome-by-candidate"
	byJobPrefix       = "outcome-by-job"
	metaPrefix        = "outcome-meta"
)

var seqKey = kv.Key{metaPrefix, "seq"}

// KV is a Ledger stored in a kv.Store. Each append writes the record, two
// secondary index markers and the sequence counter in one batch.
type KV struct {
	store kv.Store
	now   func() time.Time
	newID func() string

	mu  sync.Mutex
	seq uint64
}

var _ Ledger = (*KV)(nil)

// Option customizes a KV ledger.
type Option func(*KV)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *KV) { l.now = now }
}

// WithIDs overrides outcome id generation.
func WithIDs(newID func() string) Option {
	return func(l *KV) { l.newID = newID }
}

// OpenKV restores the sequence counter from store and returns the ledger.
func OpenKV(ctx context.Context, store kv.Store, opts ...Option) (*KV, error) {
	l := &KV{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}

	raw, err := store.Get(ctx, seqKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
	case err != nil:
		return nil, storageErr(err, "read ledger sequence")
	default:
		seq, perr := strconv.ParseUint(string(raw), 10, 64)
		if perr != nil {
			return nil, matcherr.Wrap(perr, matcherr.CodeStorageUnavailable, "corrupt ledger sequence")
		}
		l.seq = seq
	}
	return l, nil
}

func seqSegment(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

func (l *KV) Append(ctx context.Context, o marketplace.Outcome) (marketplace.Outcome, error) {
	if o.JobID == "" || o.CandidateID == "" {
		return marketplace.Outcome{}, matcherr.New(matcherr.CodeMatchInvalidInput, "outcome requires job and candidate ids",
			matcherr.FieldJobID(o.JobID),
			matcherr.FieldCandidateID(o.CandidateID),
		)
	}
	if !o.Decision.Valid() {
		return marketplace.Outcome{}, matcherr.New(matcherr.CodeMatchInvalidInput, "unknown decision",
			matcherr.Field("decision", string(o.Decision)),
		)
	}
	if o.ID == "" {
		o.ID = l.newID()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = l.now()
	}

	data, err := msgpack.Marshal(&o)
	if err != nil {
		return marketplace.Outcome{}, matcherr.Wrap(err, matcherr.CodeInternalFailure, "encode outcome")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seq := l.seq + 1
	s := seqSegment(seq)
	err = l.store.BatchSet(ctx, []kv.Entry{
		{Key: kv.Key{recordPrefix, s}, Value: data},
		{Key: kv.Key{byCandidatePrefix, url.QueryEscape(o.CandidateID), s}, Value: []byte(s)},
		{Key: kv.Key{byJobPrefix, url.QueryEscape(o.JobID), s}, Value: []byte(s)},
		{Key: seqKey, Value: []byte(strconv.FormatUint(seq, 10))},
	})
	if err != nil {
		return marketplace.Outcome{}, storageErr(err, "append outcome")
	}
	l.seq = seq
	return o, nil
}

func (l *KV) ByCandidate(ctx context.Context, candidateID string) iter.Seq2[marketplace.Outcome, error] {
	return l.byIndex(ctx, kv.Key{byCandidatePrefix, url.QueryEscape(candidateID)})
}

func (l *KV) ByJob(ctx context.Context, jobID string) iter.Seq2[marketplace.Outcome, error] {
	return l.byIndex(ctx, kv.Key{byJobPrefix, url.QueryEscape(jobID)})
}

// All yields every outcome in insertion order.
func (l *KV) All(ctx context.Context) iter.Seq2[marketplace.Outcome, error] {
	return func(yield func(marketplace.Outcome, error) bool) {
		for entry, err := range l.store.List(ctx, kv.Key{recordPrefix}) {
			if err != nil {
				yield(marketplace.Outcome{}, storageErr(err, "list outcomes"))
				return
			}
			o, err := decode(entry.Value)
			if !yield(o, err) || err != nil {
				return
			}
		}
	}
}

// byIndex walks the markers lazily. The zero-padded sequence keeps key order
// equal to insertion order.
func (l *KV) byIndex(ctx context.Context, prefix kv.Key) iter.Seq2[marketplace.Outcome, error] {
	return func(yield func(marketplace.Outcome, error) bool) {
		for entry, err := range l.store.List(ctx, prefix) {
			if err != nil {
				yield(marketplace.Outcome{}, storageErr(err, "list outcome index"))
				return
			}

			data, err := l.store.Get(ctx, kv.Key{recordPrefix, string(entry.Value)})
			if err != nil {
				yield(marketplace.Outcome{}, storageErr(err, "load outcome"))
				return
			}
			o, err := decode(data)
			if !yield(o, err) || err != nil {
				return
			}
		}
	}
}

func decode(data []byte) (marketplace.Outcome, error) {
	var o marketplace.Outcome
	if err := msgpack.Unmarshal(data, &o); err != nil {
		return marketplace.Outcome{}, matcherr.Wrap(err, matcherr.CodeStorageUnavailable, "decode outcome")
	}
	return o, nil
}

// storageErr makes sure every backend failure carries the storage code.
func storageErr(err error, msg string) error {
	if matcherr.IsStorageUnavailable(err) {
		return err
	}
	return matcherr.Wrap(err, matcherr.CodeStorageUnavailable, msg)
}
