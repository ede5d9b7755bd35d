// Package fuzzy ranks candidate strings against a search term with three tiers:
// exact containment, case-insensitive containment, and trigram similarity.
package fuzzy

import (
	"strings"

	"github.com/hyperjump/kensaku/internal/ngram"
)

const (
	// ExactScore is returned when the candidate contains the term verbatim.
	ExactScore = 1.0
	// DefaultCaseInsensitiveScore is returned when the candidate contains the term ignoring case.
	DefaultCaseInsensitiveScore = 0.8
	// DefaultFuzzyCeiling scales trigram scores so they stay below the containment tiers.
	DefaultFuzzyCeiling = 0.7
)

// Tier identifies which rule produced a score.
type Tier int

const (
	// TierNone means the candidate did not match.
	TierNone Tier = iota
	// TierFuzzy means the score came from trigram similarity.
	TierFuzzy
	// TierCaseInsensitive means the candidate contains the term ignoring case.
	TierCaseInsensitive
	// TierExact means the candidate contains the term verbatim.
	TierExact
)

// String returns a string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierNone:
		return "none"
	case TierFuzzy:
		return "fuzzy"
	case TierCaseInsensitive:
		return "case_insensitive"
	case TierExact:
		return "exact"
	default:
		return "unknown"
	}
}

// Options tune the matcher.
type Options struct {
	Weights              ngram.Weights
	CaseInsensitiveScore float64
	FuzzyCeiling         float64
}

// DefaultOptions returns the default tier scores and blend weights.
func DefaultOptions() Options {
	return Options{
		Weights:              ngram.DefaultWeights,
		CaseInsensitiveScore: DefaultCaseInsensitiveScore,
		FuzzyCeiling:         DefaultFuzzyCeiling,
	}
}

// Option is a functional option for configuring a Matcher.
type Option func(*Options)

// WithWeights sets the coverage/Dice blend weights. Invalid weights are ignored.
func WithWeights(w ngram.Weights) Option {
	return func(o *Options) {
		if w.Valid() {
			o.Weights = w
		}
	}
}

// WithCaseInsensitiveScore sets the case-insensitive containment score.
// Values outside (0, 1) are ignored.
func WithCaseInsensitiveScore(s float64) Option {
	return func(o *Options) {
		if s > 0 && s < ExactScore {
			o.CaseInsensitiveScore = s
		}
	}
}

// WithFuzzyCeiling sets the upper bound of the trigram tier.
// Values outside (0, 1] are ignored.
func WithFuzzyCeiling(c float64) Option {
	return func(o *Options) {
		if c > 0 && c <= ExactScore {
			o.FuzzyCeiling = c
		}
	}
}

// Apply returns o with opts applied.
func (o Options) Apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Matcher scores candidates against one search term. Build it once per query;
// it is safe for concurrent use.
type Matcher struct {
	term    string
	folded  string
	key     ngram.Key
	scorer  *ngram.Scorer
	options Options
}

// NewMatcher prepares term for scoring.
func NewMatcher(term string, opts ...Option) *Matcher {
	o := DefaultOptions().Apply(opts...)
	return newMatcher(term, ngram.BuildKey(term), o)
}

// NewMatcherWithKey prepares term for scoring with a key built earlier,
// for callers that received the key from elsewhere.
func NewMatcherWithKey(term string, key ngram.Key, opts ...Option) *Matcher {
	return newMatcher(term, key, DefaultOptions().Apply(opts...))
}

func newMatcher(term string, key ngram.Key, o Options) *Matcher {
	if strings.TrimSpace(term) == "" {
		term = ""
	}
	return &Matcher{
		term:    ngram.Compose(term),
		folded:  ngram.Normalize(term),
		key:     key,
		scorer:  ngram.NewScorer(o.Weights),
		options: o,
	}
}

// Term returns the composed search term.
func (m *Matcher) Term() string { return m.term }

// Key returns the trigram key of the term.
func (m *Matcher) Key() ngram.Key { return m.key }

// SearchKey returns the serialized trigram key of the term.
func (m *Matcher) SearchKey() string { return m.key.String() }

// Options returns the options in effect.
func (m *Matcher) Options() Options { return m.options }

// Score returns the candidate's score in [0, 1].
func (m *Matcher) Score(candidate string) float64 {
	s, _ := m.Match(candidate)
	return s
}

// Tier returns the tier that scores candidate.
func (m *Matcher) Tier(candidate string) Tier {
	_, t := m.Match(candidate)
	return t
}

// Match returns the candidate's score and the tier that produced it.
func (m *Matcher) Match(candidate string) (float64, Tier) {
	if m.term == "" || strings.TrimSpace(candidate) == "" {
		return 0, TierNone
	}
	if strings.Contains(ngram.Compose(candidate), m.term) {
		return ExactScore, TierExact
	}
	folded := ngram.Normalize(candidate)
	if strings.Contains(folded, m.folded) {
		return m.options.CaseInsensitiveScore, TierCaseInsensitive
	}
	s := m.scorer.ScoreNormalized(m.key, folded)
	if s == 0 {
		return 0, TierNone
	}
	return s * m.options.FuzzyCeiling, TierFuzzy
}

// NGramScore returns the raw trigram score, bypassing the containment tiers.
func (m *Matcher) NGramScore(candidate string) float64 {
	return m.scorer.ScoreKey(m.key, candidate)
}

// Search scores candidate against term with default options.
func Search(term, candidate string) float64 {
	return NewMatcher(term).Score(candidate)
}
