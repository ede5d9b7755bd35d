// Package sqlfunc registers the fuzzy scoring functions with SQLite so they can
// be used in WHERE and ORDER BY clauses.
//
// Registration is process-wide: Register installs a database/sql driver whose
// connect hook adds the functions to every new connection.
//
//	fuzzy_key(term)                 TEXT  serialized trigram key
//	fuzzy_score(key, value)         REAL  trigram coverage/Dice score
//	fuzzy_search(term, value)       REAL  tiered score, key built per row
//	fuzzy_match(term, key, value)   REAL  tiered score with a precomputed key
package sqlfunc

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/fuzzy"
	"github.com/hyperjump/kensaku/internal/ngram"
)

// DriverName is the database/sql driver that carries the fuzzy functions.
const DriverName = "sqlite3_kensaku"

// ErrNotInstalled is returned when a database does not expose the fuzzy functions.
var ErrNotInstalled = errors.New("fuzzy SQL functions are not installed")

var (
	registerOnce sync.Once
	options      fuzzy.Options
	scorer       *ngram.Scorer
)

// Register installs the driver once per process and returns its name. Options
// from the first call win; later calls are no-ops. Safe for concurrent use.
func Register(opts ...fuzzy.Option) string {
	registerOnce.Do(func() {
		options = fuzzy.DefaultOptions().Apply(opts...)
		scorer = ngram.NewScorer(options.Weights)
		sql.Register(DriverName, &sqlite3.SQLiteDriver{ConnectHook: installFunctions})
	})
	return DriverName
}

// Options returns the options the functions were registered with.
func Options() fuzzy.Options {
	Register()
	return options
}

// Open registers the driver if needed and opens dsn with it.
func Open(dsn string) (*sql.DB, error) {
	return sql.Open(Register(), dsn)
}

func installFunctions(conn *sqlite3.SQLiteConn) error {
	funcs := []struct {
		name string
		impl any
	}{
		{"fuzzy_key", fuzzyKey},
		{"fuzzy_score", fuzzyScore},
		{"fuzzy_search", fuzzySearch},
		{"fuzzy_match", fuzzyMatch},
	}
	for _, f := range funcs {
		if err := conn.RegisterFunc(f.name, f.impl, true); err != nil {
			return fmt.Errorf("failed to register %s: %w", f.name, err)
		}
	}
	return nil
}

// text converts a SQLite argument to a string. NULL arrives as a nil []byte.
func text(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		if s == nil {
			return "", false
		}
		return string(s), true
	default:
		return "", false
	}
}

func fuzzyKey(term any) string {
	t, ok := text(term)
	if !ok {
		return ngram.EmptyKey
	}
	return ngram.BuildSearchKey(t)
}

func fuzzyScore(key, value any) float64 {
	k, ok := text(key)
	if !ok {
		return 0
	}
	v, ok := text(value)
	if !ok {
		return 0
	}
	return scorer.Score(k, v)
}

func fuzzySearch(term, value any) float64 {
	t, ok := text(term)
	if !ok {
		return 0
	}
	v, ok := text(value)
	if !ok {
		return 0
	}
	return fuzzy.NewMatcher(t, optionList()...).Score(v)
}

func fuzzyMatch(term, key, value any) float64 {
	t, ok := text(term)
	if !ok {
		return 0
	}
	k, ok := text(key)
	if !ok {
		return 0
	}
	v, ok := text(value)
	if !ok {
		return 0
	}
	parsed, ok := ngram.ParseKey(k)
	if !ok {
		parsed = ngram.Key{}
	}
	return fuzzy.NewMatcherWithKey(t, parsed, optionList()...).Score(v)
}

func optionList() []fuzzy.Option {
	return []fuzzy.Option{
		fuzzy.WithWeights(options.Weights),
		fuzzy.WithCaseInsensitiveScore(options.CaseInsensitiveScore),
		fuzzy.WithFuzzyCeiling(options.FuzzyCeiling),
	}
}

// Installed reports whether db exposes the fuzzy functions.
func Installed(ctx context.Context, db *sql.DB) (bool, error) {
	var score float64
	err := db.QueryRowContext(ctx, `SELECT fuzzy_score(fuzzy_key('abc'), 'abc')`).Scan(&score)
	if err != nil {
		if strings.Contains(err.Error(), "no such function") {
			return false, nil
		}
		return false, err
	}
	return score == 1, nil
}

// EnsureInstalled checks db for the fuzzy functions, registering the driver
// first if this process has not done so. A database opened with another driver
// cannot gain the functions after the fact and yields ErrNotInstalled.
func EnsureInstalled(ctx context.Context, db *sql.DB, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("checking fuzzy SQL functions", zap.String("driver", DriverName))
	Register()
	ok, err := Installed(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to probe fuzzy SQL functions: %w", err)
	}
	if !ok {
		logger.Warn("fuzzy SQL functions missing; open the database with the registered driver",
			zap.String("driver", DriverName))
		return ErrNotInstalled
	}
	logger.Debug("fuzzy SQL functions installed", zap.String("driver", DriverName))
	return nil
}
