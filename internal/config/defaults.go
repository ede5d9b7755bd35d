package config

import (
	"runtime"

	"github.com/hyperjump/kensaku/internal/fuzzy"
	"github.com/hyperjump/kensaku/internal/ngram"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kensaku/data/db/records.db"
	}
	if cfg.Fuzzy.CoverageWeight == 0 && cfg.Fuzzy.DiceWeight == 0 {
		cfg.Fuzzy.CoverageWeight = ngram.DefaultWeights.Coverage
		cfg.Fuzzy.DiceWeight = ngram.DefaultWeights.Dice
	}
	if cfg.Fuzzy.CaseInsensitiveScore == 0 {
		cfg.Fuzzy.CaseInsensitiveScore = fuzzy.DefaultCaseInsensitiveScore
	}
	if cfg.Fuzzy.FuzzyCeiling == 0 {
		cfg.Fuzzy.FuzzyCeiling = fuzzy.DefaultFuzzyCeiling
	}
	if cfg.Search.Mode == "" {
		cfg.Search.Mode = ModeSQL
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.Workers == 0 {
		cfg.Search.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Search.BatchSize == 0 {
		cfg.Search.BatchSize = 256
	}
	if cfg.Watch.Extensions == nil {
		cfg.Watch.Extensions = []string{".json", ".yaml", ".yml", ".csv", ".xlsx"}
	}
	// Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
