package ngram

import (
	"math"
	"strings"
)

// Weights balance the two components of the blended score.
type Weights struct {
	Coverage float64 `yaml:"coverage" json:"coverage"`
	Dice     float64 `yaml:"dice" json:"dice"`
}

// DefaultWeights favors coverage so that a long candidate containing every
// query trigram still ranks high even though its Dice ratio is diluted.
var DefaultWeights = Weights{Coverage: 10, Dice: 1}

// Valid reports whether w can be used as a blend.
func (w Weights) Valid() bool {
	sum := w.Coverage + w.Dice
	return w.Coverage >= 0 && w.Dice >= 0 && sum > 0 && !math.IsInf(sum, 0) && !math.IsNaN(sum)
}

// OrDefault returns w, or DefaultWeights when w is not Valid.
func (w Weights) OrDefault() Weights {
	if w.Valid() {
		return w
	}
	return DefaultWeights
}

// Blend combines coverage and dice into a single score.
func (w Weights) Blend(coverage, dice float64) float64 {
	return (coverage*w.Coverage + dice*w.Dice) / (w.Coverage + w.Dice)
}

// Scorer computes trigram similarity between a search key and candidate strings.
// The zero value uses DefaultWeights. A Scorer is safe for concurrent use.
type Scorer struct {
	weights Weights
}

// NewScorer returns a scorer with the given weights; invalid weights fall back to DefaultWeights.
func NewScorer(w Weights) *Scorer {
	return &Scorer{weights: w.OrDefault()}
}

// Weights returns the weights in effect.
func (s *Scorer) Weights() Weights {
	return s.weights.OrDefault()
}

var defaultScorer = NewScorer(DefaultWeights)

// Score scores candidate against a serialized search key with DefaultWeights.
func Score(searchKey, candidate string) float64 {
	return defaultScorer.Score(searchKey, candidate)
}

// Score parses searchKey and scores candidate against it. Malformed or
// degenerate input scores 0.
func (s *Scorer) Score(searchKey, candidate string) float64 {
	if strings.TrimSpace(searchKey) == "" {
		return 0
	}
	key, ok := ParseKey(searchKey)
	if !ok {
		return 0
	}
	return s.ScoreKey(key, candidate)
}

// ScoreKey returns the blended coverage/Dice score of candidate against key,
// in (0, 1] when they share at least one trigram and 0 otherwise.
func (s *Scorer) ScoreKey(key Key, candidate string) float64 {
	if key.Empty() || strings.TrimSpace(candidate) == "" {
		return 0
	}
	return s.ScoreNormalized(key, Normalize(candidate))
}

// ScoreNormalized is ScoreKey for a candidate that has already been through Normalize.
func (s *Scorer) ScoreNormalized(key Key, normalized string) float64 {
	if key.Empty() {
		return 0
	}
	buf := getScratch()
	defer putScratch(buf)

	grams := buf.trigrams(normalized)
	if len(grams) == 0 {
		return 0
	}
	hits := 0
	for _, g := range key.Grams {
		if containsGram(grams, g) {
			hits++
		}
	}
	if hits == 0 {
		return 0
	}
	// Hand-built keys may repeat grams.
	hits = min(hits, len(grams))
	q := float64(max(key.Count, len(key.Grams)))
	coverage := float64(hits) / q
	dice := 2 * float64(hits) / (q + float64(len(grams)))
	return s.Weights().Blend(coverage, dice)
}
