package profiles

import (
	"context"
	"errors"
	"iter"
	"net/url"

	"github.com/vmihailenco/msgpack/v5"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/kv"
	"github.com/spigell/gig-matcher/internal/marketplace"
)

const (
	recordPrefix = "profile"
	skillPrefix  = "profile-skill"
)

// KVStore persists candidates as msgpack records in a kv.Store, together with
// one marker key per (skill, candidate) pair backing ListBySkills.
//
// Put and Delete for the same id must not run concurrently; the ranking
// engine serializes them per id.
type KVStore struct {
	kv kv.Store
}

var (
	_ Store      = (*KVStore)(nil)
	_ SkillIndex = (*KVStore)(nil)
)

func NewKVStore(store kv.Store) *KVStore {
	return &KVStore{kv: store}
}

// segment escapes user-supplied text so it never collides with the key
// separator.
func segment(s string) string {
	return url.QueryEscape(s)
}

func recordKey(id string) kv.Key {
	return kv.Key{recordPrefix, segment(id)}
}

func skillKey(skill, id string) kv.Key {
	return kv.Key{skillPrefix, segment(skill), segment(id)}
}

func (s *KVStore) Get(ctx context.Context, id string) (*marketplace.Candidate, error) {
	data, err := s.kv.Get(ctx, recordKey(id))
	if errors.Is(err, kv.ErrNotFound) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return decode(data, id)
}

func (s *KVStore) Put(ctx context.Context, c *marketplace.Candidate) error {
	if err := validateID(c.ID); err != nil {
		return err
	}
	rec := c.Clone()
	rec.Attributes = rec.Attributes.Normalize()

	old, err := s.Get(ctx, rec.ID)
	if err != nil && !matcherr.IsNotFound(err) {
		return err
	}
	if old != nil {
		var stale []kv.Key
		for _, skill := range old.Attributes.Skills {
			if !rec.HasSkill(skill) {
				stale = append(stale, skillKey(skill, rec.ID))
			}
		}
		if len(stale) > 0 {
			if err := s.kv.BatchDelete(ctx, stale); err != nil {
				return err
			}
		}
	}

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return matcherr.Wrap(err, matcherr.CodeInternalFailure, "encode candidate",
			matcherr.FieldCandidateID(rec.ID),
		)
	}

	entries := make([]kv.Entry, 0, len(rec.Attributes.Skills)+1)
	entries = append(entries, kv.Entry{Key: recordKey(rec.ID), Value: data})
	for _, skill := range rec.Attributes.Skills {
		entries = append(entries, kv.Entry{Key: skillKey(skill, rec.ID), Value: []byte(rec.ID)})
	}
	return s.kv.BatchSet(ctx, entries)
}

func (s *KVStore) Delete(ctx context.Context, id string) error {
	old, err := s.Get(ctx, id)
	if matcherr.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	keys := []kv.Key{recordKey(id)}
	for _, skill := range old.Attributes.Skills {
		keys = append(keys, skillKey(skill, id))
	}
	return s.kv.BatchDelete(ctx, keys)
}

// List decodes every record in key order. Keys are escaped ids, so the
// order matches id order for ids made of unreserved characters.
func (s *KVStore) List(ctx context.Context, pred Predicate) iter.Seq2[*marketplace.Candidate, error] {
	return func(yield func(*marketplace.Candidate, error) bool) {
		for entry, err := range s.kv.List(ctx, kv.Key{recordPrefix}) {
			if err != nil {
				yield(nil, err)
				return
			}
			c, err := decode(entry.Value, entry.Key.String())
			if err != nil {
				yield(nil, err)
				return
			}
			if pred != nil && !pred(c) {
				continue
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}

// ListBySkills walks the skill markers and loads each candidate once.
func (s *KVStore) ListBySkills(ctx context.Context, skills []string) iter.Seq2[*marketplace.Candidate, error] {
	if len(skills) == 0 {
		return s.List(ctx, nil)
	}

	return func(yield func(*marketplace.Candidate, error) bool) {
		seen := make(map[string]struct{})
		for _, skill := range skills {
			prefix := kv.Key{skillPrefix, segment(marketplace.NormalizeSkill(skill))}
			for entry, err := range s.kv.List(ctx, prefix) {
				if err != nil {
					yield(nil, err)
					return
				}
				id := string(entry.Value)
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}

				c, err := s.Get(ctx, id)
				if matcherr.IsNotFound(err) {
					// Removed between the marker scan and the load.
					continue
				}
				if !yield(c, err) || err != nil {
					return
				}
			}
		}
	}
}

func decode(data []byte, ref string) (*marketplace.Candidate, error) {
	var c marketplace.Candidate
	if err := msgpack.Unmarshal(data, &c); err != nil {
		return nil, matcherr.Wrap(err, matcherr.CodeStorageUnavailable, "decode candidate record",
			matcherr.Field("key", ref),
		)
	}
	return &c, nil
}
