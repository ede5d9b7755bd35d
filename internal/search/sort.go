package search

import (
	"slices"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
)

// SortResults orders results by score descending, then record ID ascending.
func SortResults(results []*models.ScoredRecord) {
	slices.SortStableFunc(results, func(a, b *models.ScoredRecord) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.Record.ID, b.Record.ID)
	})
}

// FilterResults keeps results that scored above zero and at least minScore.
func FilterResults(results []*models.ScoredRecord, minScore float64) []*models.ScoredRecord {
	filtered := results[:0]
	for _, r := range results {
		if r.Score > 0 && r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
