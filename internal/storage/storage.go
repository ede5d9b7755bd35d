// Package storage defines the persistence interface for records.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hyperjump/kensaku/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidField is returned for field names that cannot be used as a JSON path.
	ErrInvalidField = errors.New("invalid field name")
)

// FuzzyQuery selects and ranks records inside the database.
type FuzzyQuery struct {
	// Term is the raw search term, used by the containment tiers.
	Term string
	// Key is the serialized trigram key of Term.
	Key        string
	Collection string // empty searches every collection
	Fields     []string
	MinScore   float64
	Limit      int // <= 0 means no limit
	Offset     int
}

// CollectionStats counts the records of one collection.
type CollectionStats struct {
	Name    string `json:"name"`
	Records int64  `json:"records"`
}

// Storage defines record persistence operations.
type Storage interface {
	// Record operations
	CreateRecord(ctx context.Context, rec *models.Record) error
	GetRecord(ctx context.Context, id string) (*models.Record, error)
	UpdateRecord(ctx context.Context, rec *models.Record) error
	UpsertRecord(ctx context.Context, rec *models.Record) error
	DeleteRecord(ctx context.Context, id string) error
	DeleteRecordsBySource(ctx context.Context, source string) (int64, error)
	ListRecords(ctx context.Context, collection string, offset, limit int) ([]*models.Record, error)

	// Batch operations
	BatchUpsertRecords(ctx context.Context, recs []*models.Record) error

	// Source operations
	ReplaceSourceRecords(ctx context.Context, src *models.Source, recs []*models.Record) error
	GetSource(ctx context.Context, path string) (*models.Source, error)
	DeleteSource(ctx context.Context, path string) (int64, error)
	ListSources(ctx context.Context) ([]*models.Source, error)

	// Search
	FuzzySearch(ctx context.Context, q FuzzyQuery) ([]*models.ScoredRecord, int, error)

	// Stats
	CountRecords(ctx context.Context) (int64, error)
	Collections(ctx context.Context) ([]CollectionStats, error)

	DB() *sql.DB
	Close() error
}
