package search

import (
	"testing"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/models"
)

func TestProcessQuery_limits(t *testing.T) {
	tests := []struct {
		name  string
		cfg   *config.SearchConfig
		limit int
		want  int
	}{
		{"configured max above 100", &config.SearchConfig{DefaultLimit: 10, MaxLimit: 1000}, 500, 500},
		{"configured max caps", &config.SearchConfig{DefaultLimit: 10, MaxLimit: 1000}, 5000, 1000},
		{"configured max below 100", &config.SearchConfig{DefaultLimit: 10, MaxLimit: 20}, 50, 20},
		{"configured default limit", &config.SearchConfig{DefaultLimit: 25, MaxLimit: 100}, 0, 25},
		{"nil config uses built-in cap", nil, 500, models.MaxLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &models.SearchQuery{Query: "john", Limit: tt.limit}
			if err := ProcessQuery(q, tt.cfg); err != nil {
				t.Fatal(err)
			}
			if q.Limit != tt.want {
				t.Errorf("limit = %d, want %d", q.Limit, tt.want)
			}
			if q.Mode != config.ModeSQL {
				t.Errorf("mode = %q, want %q", q.Mode, config.ModeSQL)
			}
		})
	}
}

func TestProcessQuery_emptyQuery(t *testing.T) {
	err := ProcessQuery(&models.SearchQuery{Query: " "}, &config.SearchConfig{MaxLimit: 1000})
	if err != models.ErrEmptyQuery {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}
