// Package ranking is the hybrid matching pipeline: attribute filtering,
// semantic retrieval among the survivors, weighted scoring, ordering and an
// optional rerank of the head of the list.
package ranking

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"

	matcherr "github.com/spigell/gig-matcher/internal/errors"
	"github.com/spigell/gig-matcher/internal/filtering"
	"github.com/spigell/gig-matcher/internal/logger"
	"github.com/spigell/gig-matcher/internal/marketplace"
	"github.com/spigell/gig-matcher/internal/profiles"
	"github.com/spigell/gig-matcher/internal/scoring"
	"github.com/spigell/gig-matcher/internal/vectorindex"
)

const (
	phaseFilter    = "filter"
	phaseRetrieval = "retrieval"
	phaseScoring   = "scoring"
	phaseRerank    = "rerank"
)

// Engine ranks candidates for jobs and keeps the vector index and attribute
// store in step. It is safe for concurrent use.
type Engine struct {
	cfg    Config
	scorer *scoring.Scorer
	filter *filtering.AttributeFilter
	index  vectorindex.Index
	store  profiles.Store
	hook   RerankHook
	logger *zap.Logger
	locks  keyLock
}

// Option customizes an Engine.
type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRerankHook installs a hook applied to the head of every ranking.
func WithRerankHook(h RerankHook) Option {
	return func(e *Engine) { e.hook = h }
}

// New validates cfg and wires the engine.
func New(cfg Config, index vectorindex.Index, store profiles.Store, opts ...Option) (*Engine, error) {
	cfg, err := Configure(cfg.Weights, cfg.Fanout, cfg.TopNDefault)
	if err != nil {
		return nil, err
	}
	scorer, err := scoring.New(cfg.Weights)
	if err != nil {
		return nil, err
	}
	if index == nil || store == nil {
		return nil, matcherr.New(matcherr.CodeConfigInvalid, "vector index and attribute store are required")
	}

	e := &Engine{
		cfg:    cfg,
		scorer: scorer,
		filter: filtering.Default(),
		index:  index,
		store:  store,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logger.WithFields(e.logger)
	return e, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Match ranks candidates for job. An empty pool yields an empty result and no
// error. When ctx ends mid-pipeline the partial work is dropped and a timeout
// error is returned.
func (e *Engine) Match(ctx context.Context, job *marketplace.Job) ([]marketplace.MatchResult, error) {
	started := time.Now()
	log := e.logger.With(logger.JobField(job.ID))

	if len(job.Embedding) != e.index.Dim() {
		return nil, matcherr.New(matcherr.CodeIndexDimensionMismatch, "job embedding dimension mismatch",
			matcherr.FieldJobID(job.ID),
			matcherr.Field("got", len(job.Embedding)),
			matcherr.Field("want", e.index.Dim()),
		)
	}
	if job.TopN < 0 {
		return nil, matcherr.New(matcherr.CodeMatchInvalidInput, "top_n must not be negative",
			matcherr.FieldJobID(job.ID),
		)
	}
	topN := job.TopN
	if topN == 0 {
		topN = e.cfg.TopNDefault
	}

	// Filter.
	if err := deadline(ctx, job, phaseFilter); err != nil {
		return nil, err
	}
	q := filtering.NewQuery(job)
	pool, err := e.loadPool(ctx, job, q)
	if err != nil {
		return nil, err
	}
	survivors, reports, err := e.filter.Run(ctx, log, q, pool)
	if err != nil {
		return nil, err
	}
	log.Debug("match phase", append(logger.StepFields(len(pool), len(pool)-len(survivors), len(survivors)), logger.PhaseField(phaseFilter))...)

	if len(survivors) == 0 {
		log.Info("no candidates passed the filter", zap.Int("pool", len(pool)), droppedBy(reports))
		return []marketplace.MatchResult{}, nil
	}
	topN = min(topN, len(survivors))

	admitted := make(map[string]*marketplace.Candidate, len(survivors))
	for _, c := range survivors {
		admitted[c.ID] = c
	}

	// Retrieval.
	if err := deadline(ctx, job, phaseRetrieval); err != nil {
		return nil, err
	}
	k := min(len(survivors), e.cfg.fanout(topN))
	hits, err := e.index.Query(job.Embedding, k, func(id string) bool {
		_, ok := admitted[id]
		return ok
	})
	if err != nil {
		return nil, err
	}
	log.Debug("match phase", append(logger.StepFields(len(survivors), len(survivors)-len(hits), len(hits)), logger.PhaseField(phaseRetrieval))...)

	// Scoring.
	if err := deadline(ctx, job, phaseScoring); err != nil {
		return nil, err
	}
	req := q.Weights
	results := make([]marketplace.MatchResult, 0, len(hits))
	for _, hit := range hits {
		c, similarity := e.consistent(ctx, log, q, admitted[hit.ID], hit)
		if c == nil {
			continue
		}
		results = append(results, e.scorer.ScoreWeights(c, req, job.MinExperience, similarity))
	}
	sortResults(results)
	log.Debug("match phase", append(logger.StepFields(len(hits), len(hits)-len(results), len(results)), logger.PhaseField(phaseScoring))...)

	if err := deadline(ctx, job, phaseScoring); err != nil {
		return nil, err
	}

	// Rerank.
	window := results[:min(len(results), saturatingMul(2, topN))]
	if e.hook != nil && len(window) > 0 {
		window, err = e.rerank(ctx, log, job, window)
		if err != nil {
			return nil, err
		}
	}

	final := make([]marketplace.MatchResult, min(len(window), topN))
	copy(final, window)
	for i := range final {
		final[i].Rank = i + 1
	}

	log.Info("match completed",
		zap.Int("results", len(final)),
		zap.Int("top_n", topN),
		droppedBy(reports),
		zap.Duration("took", time.Since(started)),
	)
	return final, nil
}

// loadPool reads candidates from the attribute store, narrowing by skill
// when the store keeps a skill index.
func (e *Engine) loadPool(ctx context.Context, job *marketplace.Job, q *filtering.Query) ([]*marketplace.Candidate, error) {
	seq := e.store.List(ctx, nil)
	if idx, ok := e.store.(profiles.SkillIndex); ok && len(q.Weights) > 0 {
		seq = idx.ListBySkills(ctx, q.Weights.Names())
	}

	var pool []*marketplace.Candidate
	for c, err := range seq {
		if err != nil {
			if ctx.Err() != nil {
				return nil, deadline(ctx, job, phaseFilter)
			}
			return nil, err
		}
		pool = append(pool, c)
	}
	return pool, nil
}

// consistent returns the attributes and similarity of a retrieved hit. A
// hit whose version differs from the filter snapshot belongs to a candidate
// updated during the match; its writer is awaited and the settled pair of
// record and vector is rechecked and scored.
func (e *Engine) consistent(ctx context.Context, log *zap.Logger, q *filtering.Query, c *marketplace.Candidate, hit vectorindex.Hit) (*marketplace.Candidate, float64) {
	if c == nil {
		return nil, 0
	}
	if c.Version == hit.Version {
		return c, hit.Similarity
	}

	unlock := e.locks.lock(hit.ID)
	fresh, err := e.store.Get(ctx, hit.ID)
	entry, indexed := e.index.Get(hit.ID)
	unlock()

	if err != nil {
		if !matcherr.IsNotFound(err) {
			log.Warn("reload candidate failed", logger.CandidateField(hit.ID), zap.Error(err))
		}
		return nil, 0
	}
	if !indexed || fresh.Version != entry.Version || !e.filter.MatchesQuery(fresh, q) {
		return nil, 0
	}
	return fresh, vectorindex.CosineSimilarity(q.Job.Embedding, entry.Vector)
}

// droppedBy summarizes how many candidates each filter step removed.
func droppedBy(reports []filtering.Report) zap.Field {
	dropped := make(map[string]int, len(reports))
	for _, r := range reports {
		dropped[r.Name] = r.Dropped
	}
	return zap.Any("dropped_by", dropped)
}

func (e *Engine) rerank(ctx context.Context, log *zap.Logger, job *marketplace.Job, window []marketplace.MatchResult) ([]marketplace.MatchResult, error) {
	input := make([]marketplace.MatchResult, len(window))
	copy(input, window)

	ids, err := e.hook.Rerank(ctx, job, input)
	if err != nil {
		if ctx.Err() != nil {
			return nil, deadline(ctx, job, phaseRerank)
		}
		log.Warn("rerank hook failed, keeping scored order", zap.Error(err))
		return window, nil
	}

	reordered, err := applyPermutation(window, ids)
	if err != nil {
		log.Warn("rerank contract violated, keeping scored order",
			zap.String("code", string(matcherr.CodeOf(err))),
			zap.Any("details", matcherr.FieldsOf(err)),
			zap.Error(err),
		)
		return window, nil
	}
	return reordered, nil
}

// Upsert stores attributes and vector for id as one logical update. The
// version strictly increases per id. If the index rejects the vector the
// previous attribute record is restored.
func (e *Engine) Upsert(ctx context.Context, id string, attrs marketplace.Attributes, vector []float32) error {
	if id == "" {
		return matcherr.New(matcherr.CodeMatchInvalidInput, "candidate id is required")
	}
	if len(vector) != e.index.Dim() {
		return matcherr.New(matcherr.CodeIndexDimensionMismatch, "candidate embedding dimension mismatch",
			matcherr.FieldCandidateID(id),
			matcherr.Field("got", len(vector)),
			matcherr.Field("want", e.index.Dim()),
		)
	}

	unlock := e.locks.lock(id)
	defer unlock()

	prev, err := e.store.Get(ctx, id)
	if err != nil && !matcherr.IsNotFound(err) {
		return err
	}

	var version uint64
	if prev != nil {
		version = prev.Version
	}
	if entry, ok := e.index.Get(id); ok {
		version = max(version, entry.Version)
	}
	version++

	next := &marketplace.Candidate{
		ID:         id,
		Attributes: attrs.Normalize(),
		Embedding:  vector,
		Version:    version,
	}
	if err := e.store.Put(ctx, next); err != nil {
		return err
	}

	if err := e.index.Upsert(id, vector, version); err != nil {
		if rerr := e.rollback(ctx, id, prev); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	e.logger.Debug("candidate upserted", logger.CandidateField(id), zap.Uint64("version", version))
	return nil
}

func (e *Engine) rollback(ctx context.Context, id string, prev *marketplace.Candidate) error {
	if prev == nil {
		return e.store.Delete(ctx, id)
	}
	return e.store.Put(ctx, prev)
}

// Remove deletes id from the attribute store and the index. Removing an
// absent id is a no-op.
func (e *Engine) Remove(ctx context.Context, id string) error {
	unlock := e.locks.lock(id)
	defer unlock()

	if err := e.store.Delete(ctx, id); err != nil {
		return err
	}
	if err := e.index.Remove(id); err != nil {
		return err
	}

	e.logger.Debug("candidate removed", logger.CandidateField(id))
	return nil
}

// Restore loads every stored embedding into the index. It returns the number
// of candidates indexed. Records without an embedding are skipped.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	restored, skipped := 0, 0
	for c, err := range e.store.List(ctx, nil) {
		if err != nil {
			return restored, err
		}
		if len(c.Embedding) == 0 {
			skipped++
			continue
		}
		if err := e.index.Upsert(c.ID, c.Embedding, c.Version); err != nil {
			return restored, err
		}
		restored++
	}

	e.logger.Info("index restored", zap.Int("restored", restored), zap.Int("skipped", skipped))
	return restored, nil
}

// sortResults orders by composite, then semantic similarity, then id.
func sortResults(results []marketplace.MatchResult) {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i], results[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Components.SemanticSimilarity != b.Components.SemanticSimilarity {
			return a.Components.SemanticSimilarity > b.Components.SemanticSimilarity
		}
		return a.CandidateID < b.CandidateID
	})
}

func deadline(ctx context.Context, job *marketplace.Job, phase string) error {
	if err := ctx.Err(); err != nil {
		return matcherr.Wrap(err, matcherr.CodeMatchTimeout, "match deadline exceeded",
			matcherr.FieldJobID(job.ID),
			matcherr.FieldPhase(phase),
		)
	}
	return nil
}
