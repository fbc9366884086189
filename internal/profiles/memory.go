package profiles

import (
	"context"
	"iter"
	"slices"
	"sync"

	"github.com/spigell/gig-matcher/internal/marketplace"
)

// Memory keeps candidates in a map with an inverted skill index. Stored
// records are never mutated in place, so a snapshot taken under the read
// lock can be filtered after the lock is released.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*marketplace.Candidate
	bySkill map[string]map[string]struct{}
}

var (
	_ Store      = (*Memory)(nil)
	_ SkillIndex = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]*marketplace.Candidate),
		bySkill: make(map[string]map[string]struct{}),
	}
}

func (m *Memory) Get(_ context.Context, id string) (*marketplace.Candidate, error) {
	m.mu.RLock()
	c, ok := m.records[id]
	m.mu.RUnlock()
	if !ok {
		return nil, notFound(id)
	}
	return c.Clone(), nil
}

func (m *Memory) Put(_ context.Context, c *marketplace.Candidate) error {
	if err := validateID(c.ID); err != nil {
		return err
	}
	rec := c.Clone()
	rec.Attributes = rec.Attributes.Normalize()

	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.records[rec.ID]; ok {
		m.unindexLocked(old)
	}
	m.records[rec.ID] = rec
	for _, skill := range rec.Attributes.Skills {
		ids, ok := m.bySkill[skill]
		if !ok {
			ids = make(map[string]struct{})
			m.bySkill[skill] = ids
		}
		ids[rec.ID] = struct{}{}
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.records[id]; ok {
		m.unindexLocked(old)
		delete(m.records, id)
	}
	return nil
}

func (m *Memory) unindexLocked(c *marketplace.Candidate) {
	for _, skill := range c.Attributes.Skills {
		ids := m.bySkill[skill]
		delete(ids, c.ID)
		if len(ids) == 0 {
			delete(m.bySkill, skill)
		}
	}
}

func (m *Memory) List(ctx context.Context, pred Predicate) iter.Seq2[*marketplace.Candidate, error] {
	return func(yield func(*marketplace.Candidate, error) bool) {
		m.mu.RLock()
		snapshot := make([]*marketplace.Candidate, 0, len(m.records))
		for _, c := range m.records {
			snapshot = append(snapshot, c)
		}
		m.mu.RUnlock()

		emit(ctx, snapshot, pred, yield)
	}
}

// ListBySkills yields candidates holding any of skills. An empty skill list
// yields everyone.
func (m *Memory) ListBySkills(ctx context.Context, skills []string) iter.Seq2[*marketplace.Candidate, error] {
	if len(skills) == 0 {
		return m.List(ctx, nil)
	}

	return func(yield func(*marketplace.Candidate, error) bool) {
		m.mu.RLock()
		seen := make(map[string]struct{})
		var snapshot []*marketplace.Candidate
		for _, skill := range skills {
			for id := range m.bySkill[marketplace.NormalizeSkill(skill)] {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				snapshot = append(snapshot, m.records[id])
			}
		}
		m.mu.RUnlock()

		emit(ctx, snapshot, nil, yield)
	}
}

// Len returns the number of stored candidates.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func emit(ctx context.Context, snapshot []*marketplace.Candidate, pred Predicate, yield func(*marketplace.Candidate, error) bool) {
	slices.SortFunc(snapshot, func(a, b *marketplace.Candidate) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	for _, c := range snapshot {
		if err := ctx.Err(); err != nil {
			yield(nil, err)
			return
		}
		if pred != nil && !pred(c) {
			continue
		}
		if !yield(c.Clone(), nil) {
			return
		}
	}
}
