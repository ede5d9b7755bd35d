// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/sqlfunc"
)

// SQLiteStorage implements Storage using SQLite with the fuzzy SQL functions installed.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// Option configures a SQLiteStorage.
type Option func(*SQLiteStorage)

// WithLogger sets the logger. Nil is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(s *SQLiteStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string, opts ...Option) (*SQLiteStorage, error) {
	s := &SQLiteStorage{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sqlfunc.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := sqlfunc.EnsureInstalled(context.Background(), db, s.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.db = db
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		fields TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_collection ON records(collection);
	CREATE INDEX IF NOT EXISTS idx_records_source ON records(source);

	CREATE TABLE IF NOT EXISTS sources (
		path TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		mod_time INTEGER NOT NULL,
		size INTEGER NOT NULL,
		records INTEGER NOT NULL,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// DB returns the underlying database handle.
func (s *SQLiteStorage) DB() *sql.DB {
	return s.db
}

func normalizeRecord(rec *models.Record) {
	if rec.Collection == "" {
		rec.Collection = models.DefaultCollection
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
}

func marshalFields(rec *models.Record) (string, error) {
	data, err := json.Marshal(rec.Fields)
	if err != nil {
		return "", fmt.Errorf("failed to marshal fields: %w", err)
	}
	return string(data), nil
}

// CreateRecord inserts a record.
func (s *SQLiteStorage) CreateRecord(ctx context.Context, rec *models.Record) error {
	normalizeRecord(rec)
	fieldsJSON, err := marshalFields(rec)
	if err != nil {
		return err
	}

	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, collection, source, fields, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Collection, rec.Source, fieldsJSON, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create record %s: %w", rec.ID, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const recordColumns = `r.id, r.collection, r.source, r.fields, r.created_at, r.updated_at`

func scanRecord(row rowScanner, extra ...any) (*models.Record, error) {
	var rec models.Record
	var fieldsJSON string
	dest := append([]any{&rec.ID, &rec.Collection, &rec.Source, &fieldsJSON, &rec.CreatedAt, &rec.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("failed to unmarshal fields of %s: %w", rec.ID, err)
		}
	}
	if rec.Fields == nil {
		rec.Fields = map[string]string{}
	}
	return &rec, nil
}

// GetRecord returns a record by ID.
func (s *SQLiteStorage) GetRecord(ctx context.Context, id string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records r WHERE r.id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// UpdateRecord replaces the collection, source and fields of an existing record.
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, rec *models.Record) error {
	normalizeRecord(rec)
	fieldsJSON, err := marshalFields(rec)
	if err != nil {
		return err
	}

	rec.UpdatedAt = time.Now()

	result, err := s.db.ExecContext(ctx,
		`UPDATE records SET collection = ?, source = ?, fields = ?, updated_at = ?
		 WHERE id = ?`,
		rec.Collection, rec.Source, fieldsJSON, rec.UpdatedAt, rec.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
	}
	return nil
}

const upsertSQL = `INSERT INTO records (id, collection, source, fields, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		collection = excluded.collection,
		source = excluded.source,
		fields = excluded.fields,
		updated_at = excluded.updated_at`

// UpsertRecord inserts rec or replaces the stored record with the same ID,
// keeping its creation time.
func (s *SQLiteStorage) UpsertRecord(ctx context.Context, rec *models.Record) error {
	normalizeRecord(rec)
	fieldsJSON, err := marshalFields(rec)
	if err != nil {
		return err
	}
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if _, err := s.db.ExecContext(ctx, upsertSQL,
		rec.ID, rec.Collection, rec.Source, fieldsJSON, rec.CreatedAt, rec.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// DeleteRecord removes a record by ID.
func (s *SQLiteStorage) DeleteRecord(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// DeleteRecordsBySource removes every record imported from source and
// returns how many were removed.
func (s *SQLiteStorage) DeleteRecordsBySource(ctx context.Context, source string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE source = ?`, source)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// ListRecords returns records ordered by ID. An empty collection lists every
// collection; limit <= 0 returns all remaining records.
func (s *SQLiteStorage) ListRecords(ctx context.Context, collection string, offset, limit int) ([]*models.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records r`
	var args []any
	if collection != "" {
		query += ` WHERE r.collection = ?`
		args = append(args, collection)
	}
	if limit <= 0 {
		limit = -1
	}
	query += ` ORDER BY r.id LIMIT ? OFFSET ?`
	args = append(args, limit, max(offset, 0))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*models.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// BatchUpsertRecords upserts multiple records in a transaction.
func (s *SQLiteStorage) BatchUpsertRecords(ctx context.Context, recs []*models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range recs {
		normalizeRecord(rec)
		fieldsJSON, err := marshalFields(rec)
		if err != nil {
			return err
		}
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		rec.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Collection, rec.Source, fieldsJSON, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// ReplaceSourceRecords swaps every record imported from src.Path for recs and
// records the source, all in one transaction.
func (s *SQLiteStorage) ReplaceSourceRecords(ctx context.Context, src *models.Source, recs []*models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE source = ?`, src.Path); err != nil {
		return fmt.Errorf("failed to clear records of %s: %w", src.Path, err)
	}
	stmt, err := tx.PrepareContext(ctx, upsertSQL)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, rec := range recs {
		rec.Source = src.Path
		normalizeRecord(rec)
		fieldsJSON, err := marshalFields(rec)
		if err != nil {
			return err
		}
		rec.CreatedAt = now
		rec.UpdatedAt = now
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Collection, rec.Source, fieldsJSON, rec.CreatedAt, rec.UpdatedAt); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
		}
	}

	src.Records = len(recs)
	src.IndexedAt = now
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sources (path, collection, mod_time, size, records, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			collection = excluded.collection,
			mod_time = excluded.mod_time,
			size = excluded.size,
			records = excluded.records,
			indexed_at = excluded.indexed_at`,
		src.Path, src.Collection, src.ModTime, src.Size, src.Records, src.IndexedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record source %s: %w", src.Path, err)
	}
	return tx.Commit()
}

const sourceColumns = `path, collection, mod_time, size, records, indexed_at`

func scanSource(row rowScanner) (*models.Source, error) {
	var src models.Source
	if err := row.Scan(&src.Path, &src.Collection, &src.ModTime, &src.Size, &src.Records, &src.IndexedAt); err != nil {
		return nil, err
	}
	return &src, nil
}

// GetSource returns the import state of a file.
func (s *SQLiteStorage) GetSource(ctx context.Context, path string) (*models.Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM sources WHERE path = ?`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: source %s", ErrNotFound, path)
	}
	return src, err
}

// DeleteSource removes a file's records and its import state and returns
// how many records were removed.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, path string) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM records WHERE source = ?`, path)
	if err != nil {
		return 0, err
	}
	n, _ := result.RowsAffected()
	if _, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE path = ?`, path); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// ListSources returns every imported file ordered by path.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY path`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*models.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// CountRecords returns the total number of records.
func (s *SQLiteStorage) CountRecords(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records`).Scan(&count)
	return count, err
}

// Collections returns every collection with its record count, ordered by name.
func (s *SQLiteStorage) Collections(ctx context.Context) ([]CollectionStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, COUNT(*) FROM records GROUP BY collection ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CollectionStats
	for rows.Next() {
		var c CollectionStats
		if err := rows.Scan(&c.Name, &c.Records); err != nil {
			return nil, err
		}
		stats = append(stats, c)
	}
	return stats, rows.Err()
}

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+(\.[A-Za-z0-9_-]+)*$`)

// ValidateField returns ErrInvalidField unless name is a dotted path of
// letters, digits, '_' and '-'.
func ValidateField(name string) error {
	if !fieldNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidField, name)
	}
	return nil
}

// fieldPath addresses a flat key of the fields object. Dotted names are
// quoted so they match flattened keys instead of nested objects.
func fieldPath(name string) string {
	return `$."` + name + `"`
}

// FuzzySearch scores records inside SQLite with fuzzy_match. With fields the
// record score is the mean of the field scores; without, it is the best score
// of any field. Records scoring 0 or below MinScore are dropped. Results are
// ordered by score then ID; the second return value is the total before paging.
func (s *SQLiteStorage) FuzzySearch(ctx context.Context, q FuzzyQuery) ([]*models.ScoredRecord, int, error) {
	for _, f := range q.Fields {
		if err := ValidateField(f); err != nil {
			return nil, 0, err
		}
	}
	cte, args := fuzzyCTE(q)

	cols := make([]string, len(q.Fields))
	for i := range q.Fields {
		cols[i] = "s.f" + strconv.Itoa(i)
	}
	selectCols := recordColumns + `, s.score`
	if len(cols) > 0 {
		selectCols += `, ` + strings.Join(cols, `, `)
	}
	limit := q.Limit
	if limit <= 0 {
		limit = -1
	}
	query := cte + `
	SELECT ` + selectCols + `, COUNT(*) OVER () AS total
	FROM scored s JOIN records r ON r.id = s.id
	WHERE s.score > 0 AND s.score >= ?
	ORDER BY s.score DESC, r.id
	LIMIT ? OFFSET ?`
	queryArgs := append(append([]any{}, args...), q.MinScore, limit, max(q.Offset, 0))

	rows, err := s.db.QueryContext(ctx, query, queryArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("fuzzy search failed: %w", err)
	}
	defer rows.Close()

	var results []*models.ScoredRecord
	total := 0
	for rows.Next() {
		var score float64
		fieldScores := make([]float64, len(q.Fields))
		extra := []any{&score}
		for i := range fieldScores {
			extra = append(extra, &fieldScores[i])
		}
		extra = append(extra, &total)
		rec, err := scanRecord(rows, extra...)
		if err != nil {
			return nil, 0, err
		}
		sr := &models.ScoredRecord{Record: rec, Score: score, Rank: max(q.Offset, 0) + len(results) + 1}
		for i, name := range q.Fields {
			sr.Scores = append(sr.Scores, models.FieldScore{Name: name, Score: fieldScores[i]})
		}
		results = append(results, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// Paging past the end returns no rows, and with them no window total.
	if len(results) == 0 && q.Offset > 0 {
		countArgs := append(append([]any{}, args...), q.MinScore)
		err := s.db.QueryRowContext(ctx,
			cte+` SELECT COUNT(*) FROM scored s WHERE s.score > 0 AND s.score >= ?`,
			countArgs...).Scan(&total)
		if err != nil {
			return nil, 0, fmt.Errorf("fuzzy search count failed: %w", err)
		}
	}
	return results, total, nil
}

// fuzzyCTE builds the "scored(id, score, f0..fn)" common table expression.
func fuzzyCTE(q FuzzyQuery) (string, []any) {
	var args []any
	var b strings.Builder
	b.WriteString("WITH matched AS MATERIALIZED (\n\t\tSELECT id")
	if len(q.Fields) == 0 {
		b.WriteString(`, COALESCE((SELECT MAX(fuzzy_match(?, ?, je.value)) FROM json_each(records.fields) je WHERE je.type = 'text'), 0) AS score`)
		args = append(args, q.Term, q.Key)
	} else {
		for i, f := range q.Fields {
			fmt.Fprintf(&b, `, fuzzy_match(?, ?, COALESCE(json_extract(fields, ?), '')) AS f%d`, i)
			args = append(args, q.Term, q.Key, fieldPath(f))
		}
	}
	b.WriteString("\n\t\tFROM records")
	if q.Collection != "" {
		b.WriteString(" WHERE collection = ?")
		args = append(args, q.Collection)
	}
	b.WriteString("\n\t), scored AS (\n\t\tSELECT id")
	if len(q.Fields) == 0 {
		b.WriteString(", score")
	} else {
		sum := make([]string, len(q.Fields))
		for i := range q.Fields {
			sum[i] = "f" + strconv.Itoa(i)
		}
		fmt.Fprintf(&b, ", (%s) / %d.0 AS score, %s", strings.Join(sum, " + "), len(q.Fields), strings.Join(sum, ", "))
	}
	b.WriteString(" FROM matched\n\t)")
	return b.String(), args
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
