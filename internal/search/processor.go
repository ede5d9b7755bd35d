package search

import (
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
)

// ProcessQuery applies configured defaults to the search query and validates it.
// A configured MaxLimit replaces models.MaxLimit as the page size cap.
func ProcessQuery(query *models.SearchQuery, cfg *config.SearchConfig) error {
	maxLimit := 0
	if cfg != nil {
		maxLimit = cfg.MaxLimit
		if query.Limit <= 0 && cfg.DefaultLimit > 0 {
			query.Limit = cfg.DefaultLimit
		}
		if cfg.MaxLimit > 0 && query.Limit > cfg.MaxLimit {
			query.Limit = cfg.MaxLimit
		}
		if query.MinScore <= 0 {
			query.MinScore = cfg.MinScore
		}
		if query.Mode == "" {
			query.Mode = cfg.Mode
		}
	}
	if query.Mode == "" {
		query.Mode = config.ModeSQL
	}
	return query.ValidateWithLimit(maxLimit)
}

// Paginate returns the page of results starting at offset.
func Paginate(results []*models.ScoredRecord, offset, limit int) []*models.ScoredRecord {
	start := offset
	end := offset + limit
	if start > len(results) {
		start = len(results)
	}
	if end > len(results) || limit <= 0 {
		end = len(results)
	}
	return results[start:end]
}
