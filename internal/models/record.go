// Package models defines core data structures for records, queries, and search results.
package models

import "time"

// Record is a stored row whose field values can be fuzzy searched.
type Record struct {
	ID         string            `json:"id" db:"id"`
	Collection string            `json:"collection" db:"collection"`
	Source     string            `json:"source,omitempty" db:"source"`
	Fields     map[string]string `json:"fields" db:"fields"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// Field returns the value of a field, or "" when absent. Nested source values
// are stored flattened under dotted names such as "address.city".
func (r *Record) Field(name string) string {
	if r == nil || r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// RecordInput is the input for creating or updating a record.
type RecordInput struct {
	ID         string            `json:"id,omitempty"`
	Collection string            `json:"collection,omitempty"`
	Source     string            `json:"source,omitempty"`
	Fields     map[string]string `json:"fields"`
}

// DefaultCollection holds records indexed without a collection.
const DefaultCollection = "default"

// Source tracks a file whose rows were imported as records.
type Source struct {
	Path       string    `json:"path"`
	Collection string    `json:"collection"`
	ModTime    int64     `json:"mod_time"` // UnixNano
	Size       int64     `json:"size"`
	Records    int       `json:"records"`
	IndexedAt  time.Time `json:"indexed_at"`
}
