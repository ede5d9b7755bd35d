// Package indexer stores records, directly or imported from data files.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/fileid"
	"github.com/hyperjump/kensaku/internal/importer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/storage"
)

// Indexer writes records into storage.
type Indexer struct {
	storage  storage.Storage
	importer *importer.Importer
	logger   *zap.Logger // optional; when set, logs debug events
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (file indexed, record deleted, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer. imp may be nil; a default importer is used.
func NewIndexer(store storage.Storage, imp *importer.Importer, opts ...IndexerOption) *Indexer {
	if imp == nil {
		imp = importer.NewImporter()
	}
	idx := &Indexer{storage: store, importer: imp}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexRecord stores a record, generating an ID when input has none.
// A record with an existing ID is replaced.
func (idx *Indexer) IndexRecord(ctx context.Context, input *models.RecordInput) (*models.Record, error) {
	if input.ID == "" {
		input.ID = uuid.New().String()
	}
	rec := &models.Record{
		ID:         input.ID,
		Collection: strings.TrimSpace(input.Collection),
		Source:     input.Source,
		Fields:     PrepareFields(input.Fields),
	}
	if err := idx.storage.UpsertRecord(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to store record: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer record stored", zap.String("id", rec.ID), zap.String("collection", rec.Collection))
	}
	return rec, nil
}

// DeleteRecord removes a single record.
func (idx *Indexer) DeleteRecord(ctx context.Context, id string) error {
	if idx.logger != nil {
		idx.logger.Debug("indexer deleting record", zap.String("id", id))
	}
	return idx.storage.DeleteRecord(ctx, id)
}

// IndexFile imports the rows of the file at path. A file imported before keeps
// its collection; a new file goes to the collection named after it. If allowedExts is non-empty, the file's extension must be in
// the list (case-insensitive). A file already imported with the same mtime
// and size is skipped. Returns the number of records stored.
func (idx *Indexer) IndexFile(ctx context.Context, path string, allowedExts []string) (int, error) {
	if idx.logger != nil {
		idx.logger.Debug("indexer indexing file", zap.String("path", path))
	}
	absPath, info, err := idx.checkFile(path, allowedExts)
	if err != nil {
		return 0, err
	}
	if skip, n := idx.shouldSkipFile(ctx, absPath, info); skip {
		if idx.logger != nil {
			idx.logger.Debug("indexer skipping unchanged file", zap.String("path", absPath))
		}
		return n, nil
	}
	return idx.importFile(ctx, absPath, info, "")
}

// ImportFile imports the rows of the file at path into collection, replacing
// rows previously imported from the same file. An empty collection keeps the
// file's previous collection, or uses the file name without its extension.
func (idx *Indexer) ImportFile(ctx context.Context, path, collection string) (int, error) {
	absPath, info, err := idx.checkFile(path, nil)
	if err != nil {
		return 0, err
	}
	return idx.importFile(ctx, absPath, info, collection)
}

func (idx *Indexer) checkFile(path string, allowedExts []string) (string, os.FileInfo, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := strings.ToLower(filepath.Ext(absPath))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return "", nil, fmt.Errorf("extension %q not in allowed list", ext)
	}
	if !idx.importer.Supports(ext) {
		return "", nil, fmt.Errorf("%w: %q", importer.ErrUnsupported, ext)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return "", nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return "", nil, fmt.Errorf("not a regular file: %s", absPath)
	}
	return absPath, info, nil
}

// CollectionName derives a collection from a file path: the base name without extension.
func CollectionName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSpace(strings.TrimSuffix(base, filepath.Ext(base)))
	if name == "" {
		return models.DefaultCollection
	}
	return name
}

func (idx *Indexer) importFile(ctx context.Context, absPath string, info os.FileInfo, collection string) (int, error) {
	rows, err := idx.importer.Import(absPath)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", absPath, err)
	}
	if collection == "" {
		collection = idx.sourceCollection(ctx, absPath)
	}
	recs := make([]*models.Record, 0, len(rows))
	for i, row := range rows {
		recs = append(recs, &models.Record{
			ID:         fileid.RecordID(absPath, i),
			Collection: collection,
			Source:     absPath,
			Fields:     PrepareFields(row),
		})
	}
	src := &models.Source{
		Path:       absPath,
		Collection: collection,
		ModTime:    info.ModTime().UnixNano(),
		Size:       info.Size(),
	}
	if err := idx.storage.ReplaceSourceRecords(ctx, src, recs); err != nil {
		return 0, fmt.Errorf("failed to store records: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer file indexed",
			zap.String("path", absPath),
			zap.String("collection", collection),
			zap.Int("records", len(recs)),
		)
	}
	return len(recs), nil
}

// sourceCollection returns the collection a file was last imported into, or
// the name derived from the file for files not imported yet.
func (idx *Indexer) sourceCollection(ctx context.Context, absPath string) string {
	if src, err := idx.storage.GetSource(ctx, absPath); err == nil && src.Collection != "" {
		return src.Collection
	}
	return CollectionName(absPath)
}

// shouldSkipFile returns true if the file is already imported with the same mtime and size.
func (idx *Indexer) shouldSkipFile(ctx context.Context, absPath string, info os.FileInfo) (bool, int) {
	src, err := idx.storage.GetSource(ctx, absPath)
	if err != nil {
		return false, 0
	}
	if src.ModTime != info.ModTime().UnixNano() || src.Size != info.Size() {
		return false, 0
	}
	return true, src.Records
}

// IndexDirectory walks dir recursively and indexes each regular file whose extension
// is in allowedExts (if non-empty; otherwise every importable file). Returns the number
// of files indexed and the first error encountered, if any.
func (idx *Indexer) IndexDirectory(ctx context.Context, dir string, allowedExts []string) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
			return nil
		}
		if !idx.importer.Supports(ext) {
			return nil
		}
		// Resolve symlinks so we only index regular files
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, indexErr := idx.IndexFile(ctx, path, allowedExts); indexErr != nil {
			return indexErr
		}
		n++
		return nil
	})
	return n, err
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}

// DeleteFile removes every record imported from path and returns how many were removed.
func (idx *Indexer) DeleteFile(ctx context.Context, path string) (int64, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	n, err := idx.storage.DeleteSource(ctx, absPath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records of %s: %w", absPath, err)
	}
	if idx.logger != nil {
		idx.logger.Debug("indexer file records deleted", zap.String("path", absPath), zap.Int64("records", n))
	}
	return n, nil
}

// Sources returns the paths of every imported file.
func (idx *Indexer) Sources(ctx context.Context) ([]string, error) {
	sources, err := idx.storage.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, len(sources))
	for i, s := range sources {
		paths[i] = s.Path
	}
	return paths, nil
}

// PruneMissing removes the records of imported files under root that no
// longer exist on disk. Returns the number of files pruned.
func (idx *Indexer) PruneMissing(ctx context.Context, root string) (int, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	paths, err := idx.Sources(ctx)
	if err != nil {
		return 0, err
	}
	pruned := 0
	for _, p := range paths {
		rel, err := filepath.Rel(absRoot, p)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		if _, err := os.Stat(p); !errors.Is(err, os.ErrNotExist) {
			continue
		}
		if _, err := idx.DeleteFile(ctx, p); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}
