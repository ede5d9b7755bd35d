package search

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hyperjump/kensaku/internal/fuzzy"
	"github.com/hyperjump/kensaku/internal/models"
)

// DefaultBatchSize is the number of records scored per pool task.
const DefaultBatchSize = 256

// Ranker scores records against a matcher on a shared worker pool.
type Ranker struct {
	pool      *ants.Pool
	batchSize int
}

// NewRanker creates a ranker with the given pool size and batch size.
// Non-positive values fall back to GOMAXPROCS and DefaultBatchSize.
func NewRanker(workers, batchSize int) (*Ranker, error) {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	if batchSize < 1 {
		batchSize = DefaultBatchSize
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	return &Ranker{pool: pool, batchSize: batchSize}, nil
}

// Workers returns the pool capacity.
func (r *Ranker) Workers() int {
	return r.pool.Cap()
}

// Release stops the worker pool.
func (r *Ranker) Release() {
	r.pool.Release()
}

// ScoreRecord scores one record. With fields the score is the mean of the
// field scores, a missing field scoring 0; without, it is the best score of
// any field value.
func ScoreRecord(m *fuzzy.Matcher, rec *models.Record, fields []string) (float64, []models.FieldScore) {
	if len(fields) == 0 {
		best := 0.0
		for _, v := range rec.Fields {
			if s := m.Score(v); s > best {
				best = s
			}
		}
		return best, nil
	}
	scores := make([]models.FieldScore, len(fields))
	sum := 0.0
	for i, name := range fields {
		s := m.Score(rec.Field(name))
		scores[i] = models.FieldScore{Name: name, Score: s}
		sum += s
	}
	return sum / float64(len(fields)), scores
}

// Rank scores every record and returns them in input order. It stops early
// and returns the context error when ctx is cancelled.
func (r *Ranker) Rank(ctx context.Context, m *fuzzy.Matcher, recs []*models.Record, fields []string) ([]*models.ScoredRecord, error) {
	out := make([]*models.ScoredRecord, len(recs))
	var wg sync.WaitGroup
	for start := 0; start < len(recs); start += r.batchSize {
		if err := ctx.Err(); err != nil {
			wg.Wait()
			return nil, err
		}
		end := min(start+r.batchSize, len(recs))
		wg.Add(1)
		err := r.pool.Submit(func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				if ctx.Err() != nil {
					return
				}
				score, fieldScores := ScoreRecord(m, recs[i], fields)
				out[i] = &models.ScoredRecord{Record: recs[i], Score: score, Scores: fieldScores}
			}
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return nil, fmt.Errorf("failed to submit scoring task: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
