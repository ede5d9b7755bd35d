package models

import (
	"errors"
	"strings"
)

// ErrEmptyQuery is returned when a search has no term.
var ErrEmptyQuery = errors.New("query cannot be empty")

const (
	// DefaultLimit is used when a query does not set one.
	DefaultLimit = 10
	// MaxLimit caps the page size when no other cap is configured.
	MaxLimit = 100
)

// SearchQuery is a fuzzy search over the records of one collection.
type SearchQuery struct {
	Query      string `json:"query"`
	Collection string `json:"collection,omitempty"`
	// Fields to score and average; empty scores every field and keeps the best.
	Fields []string `json:"fields,omitempty"`
	Limit  int      `json:"limit,omitempty"`
	Offset int      `json:"offset,omitempty"`
	// MinScore drops results scoring below it.
	MinScore float64 `json:"min_score,omitempty"`
	// Mode overrides the configured search mode ("sql" or "memory").
	Mode string `json:"mode,omitempty"`
}

// Validate ensures the search query has valid fields and sets defaults.
// Returns ErrEmptyQuery for a blank term; otherwise clamps limit, offset and min score.
func (q *SearchQuery) Validate() error {
	return q.ValidateWithLimit(MaxLimit)
}

// ValidateWithLimit is Validate with maxLimit as the page size cap.
// A non-positive maxLimit falls back to MaxLimit.
func (q *SearchQuery) ValidateWithLimit(maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return ErrEmptyQuery
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.MinScore < 0 {
		q.MinScore = 0
	}
	fields := q.Fields[:0]
	for _, f := range q.Fields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	q.Fields = fields
	return nil
}
