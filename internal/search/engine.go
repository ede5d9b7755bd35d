// Package search provides the fuzzy record search engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/fuzzy"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/ngram"
	"github.com/hyperjump/kensaku/internal/sqlfunc"
	"github.com/hyperjump/kensaku/internal/storage"
)

// ErrUnknownMode is returned for a search mode other than sql or memory.
var ErrUnknownMode = errors.New("unknown search mode")

// Engine runs fuzzy search over stored records, either inside SQLite or in
// a worker pool. Both modes score with the options the SQL functions were
// registered with, so they rank identically.
type Engine struct {
	storage storage.Storage
	ranker  *Ranker
	config  *config.SearchConfig
	logger  *zap.Logger
}

// NewEngine creates a search engine. ranker may be nil when only the sql mode is used.
func NewEngine(store storage.Storage, ranker *Ranker, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	if cfg == nil {
		cfg = &config.SearchConfig{Mode: config.ModeSQL}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{storage: store, ranker: ranker, config: cfg, logger: logger}
}

// Mode returns the configured default search mode.
func (e *Engine) Mode() string {
	return e.config.Mode
}

// NewMatcher builds a matcher for term with the registered scoring options.
func NewMatcher(term string) *fuzzy.Matcher {
	o := sqlfunc.Options()
	return fuzzy.NewMatcher(term,
		fuzzy.WithWeights(o.Weights),
		fuzzy.WithCaseInsensitiveScore(o.CaseInsensitiveScore),
		fuzzy.WithFuzzyCeiling(o.FuzzyCeiling),
	)
}

// Search validates query, scores the matching records and returns one page of results.
func (e *Engine) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := ProcessQuery(query, e.config); err != nil {
		return nil, err
	}
	for _, f := range query.Fields {
		if err := storage.ValidateField(f); err != nil {
			return nil, err
		}
	}

	m := NewMatcher(query.Query)
	var (
		results []*models.ScoredRecord
		total   int
		err     error
	)
	switch query.Mode {
	case config.ModeSQL:
		results, total, err = e.storage.FuzzySearch(ctx, storage.FuzzyQuery{
			Term:       query.Query,
			Key:        m.SearchKey(),
			Collection: query.Collection,
			Fields:     query.Fields,
			MinScore:   query.MinScore,
			Limit:      query.Limit,
			Offset:     query.Offset,
		})
	case config.ModeMemory:
		results, total, err = e.searchMemory(ctx, m, query)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, query.Mode)
	}
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []*models.ScoredRecord{}
	}

	elapsed := time.Since(startTime)
	e.logger.Debug("search completed",
		zap.String("query", query.Query),
		zap.String("mode", query.Mode),
		zap.String("collection", query.Collection),
		zap.Int("total", total),
		zap.Duration("elapsed", elapsed),
	)

	return &models.SearchResponse{
		Results:   results,
		Total:     total,
		QueryTime: elapsed.Milliseconds(),
		Query:     query.Query,
		SearchKey: m.SearchKey(),
		Mode:      query.Mode,
	}, nil
}

func (e *Engine) searchMemory(ctx context.Context, m *fuzzy.Matcher, query *models.SearchQuery) ([]*models.ScoredRecord, int, error) {
	if e.ranker == nil {
		return nil, 0, errors.New("memory mode requires a ranker")
	}
	recs, err := e.storage.ListRecords(ctx, query.Collection, 0, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load records: %w", err)
	}
	scored, err := e.ranker.Rank(ctx, m, recs, query.Fields)
	if err != nil {
		return nil, 0, err
	}
	scored = FilterResults(scored, query.MinScore)
	SortResults(scored)

	page := Paginate(scored, query.Offset, query.Limit)
	for i, r := range page {
		r.Rank = query.Offset + i + 1
	}
	return page, len(scored), nil
}

// Score explains how candidate scores against term.
func (e *Engine) Score(term, candidate string) *models.ScoreBreakdown {
	m := NewMatcher(term)
	score, tier := m.Match(candidate)
	return &models.ScoreBreakdown{
		Term:       term,
		Candidate:  candidate,
		SearchKey:  m.SearchKey(),
		Score:      score,
		NGramScore: m.NGramScore(candidate),
		Tier:       tier.String(),
	}
}

// DescribeKey returns the trigram key of term with its grams spelled out.
func DescribeKey(term string) *models.KeyInfo {
	key := ngram.BuildKey(term)
	grams := make([]string, len(key.Grams))
	for i, g := range key.Grams {
		grams[i] = g.String()
	}
	return &models.KeyInfo{
		Term:  term,
		Key:   key.String(),
		Count: key.Count,
		Grams: grams,
	}
}
