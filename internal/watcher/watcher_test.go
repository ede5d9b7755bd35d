package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// recorder is a Handler that remembers the paths it was given.
type recorder struct {
	mu      sync.Mutex
	indexed []string
	removed []string
	pruned  []string
}

func (r *recorder) IndexFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, path)
	return nil
}

func (r *recorder) RemoveFile(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

func (r *recorder) PruneMissing(_ context.Context, root string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pruned = append(r.pruned, root)
	return 1, nil
}

func (r *recorder) snapshot() (indexed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.indexed...), append([]string(nil), r.removed...)
}

func TestWatcher_AddRemoveDirectories(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(nil, []string{".csv"}, true, &recorder{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	dirs := w.Directories()
	if len(dirs) != 1 || filepath.Clean(dirs[0]) != filepath.Clean(dir) {
		t.Errorf("Directories() = %v", dirs)
	}
	// Adding the same root twice is a no-op.
	if err := w.AddDirectory(dir, false); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 1 {
		t.Errorf("duplicate root added: %v", w.Directories())
	}

	if err := w.RemoveDirectory(dir); err != nil {
		t.Fatal(err)
	}
	if len(w.Directories()) != 0 {
		t.Errorf("after remove: %v", w.Directories())
	}
}

func TestWatcher_DebounceAndExtensionFilter(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	if err := mkdirAll(sub); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".csv"}, true, rec, WithDebounce(100*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	fPath := filepath.Join(sub, "people.csv")
	for i := 0; i < 3; i++ {
		if err := writeFile(fPath, "name\nAnn\n"); err != nil {
			t.Fatal(err)
		}
	}
	if err := writeFile(filepath.Join(sub, "notes.txt"), "skip"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	indexed, _ := rec.snapshot()
	if len(indexed) != 1 || !strings.HasSuffix(indexed[0], "people.csv") {
		t.Errorf("expected one debounced index of people.csv, got %v", indexed)
	}
	if got := w.Stats().Indexed; got != 1 {
		t.Errorf("Stats().Indexed = %d, want 1", got)
	}
}

func TestWatcher_RemoveEvent(t *testing.T) {
	dir := t.TempDir()
	fPath := filepath.Join(dir, "people.csv")
	if err := writeFile(fPath, "name\nAnn\n"); err != nil {
		t.Fatal(err)
	}
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".csv"}, true, rec, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if err := os.Remove(fPath); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)

	_, removed := rec.snapshot()
	if len(removed) != 1 || removed[0] != fPath {
		t.Errorf("expected removal of %s, got %v", fPath, removed)
	}
}

func TestWatcher_HandlerErrorsAreCounted(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "bad.csv"), "x"); err != nil {
		t.Fatal(err)
	}
	failing := HandlerFuncs{Index: func(context.Context, string) error { return errors.New("boom") }}
	w := NewWatcher([]string{dir}, nil, true, failing)
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()
	w.SyncExistingFiles()
	if s := w.Stats(); s.Errors != 1 || s.Indexed != 0 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.csv", []string{".csv"}, true},
		{"/a/b.CSV", []string{".csv"}, true},
		{"/a/b.yml", []string{"yml"}, true},
		{"/a/b.md", []string{".csv"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.csv", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func TestWatcher_SyncExistingFiles_indexesAndPrunes(t *testing.T) {
	dir := t.TempDir()
	if err := writeFile(filepath.Join(dir, "a.json"), "{}"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(dir, "ignore.xyz"), "x"); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".json"}, true, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	w.SyncExistingFiles()

	indexed, _ := rec.snapshot()
	if len(indexed) != 1 || !strings.HasSuffix(indexed[0], "a.json") {
		t.Errorf("expected one indexed file a.json, got %v", indexed)
	}
	rec.mu.Lock()
	pruned := append([]string(nil), rec.pruned...)
	rec.mu.Unlock()
	if len(pruned) != 1 || pruned[0] != dir {
		t.Errorf("expected prune of %s, got %v", dir, pruned)
	}
	if w.Stats().Pruned != 1 {
		t.Errorf("Stats().Pruned = %d, want 1", w.Stats().Pruned)
	}
}

func TestWatcher_Start_createsMissingRootDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "watch", "me")

	w := NewWatcher([]string{root}, []string{".csv"}, true, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestWatcher_HandleNewDirectory_indexesFilesInNewFolder(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".csv", ".yaml"}, true, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// Simulate copying a folder with files into the watched directory
	newFolder := filepath.Join(dir, "new-folder")
	if err := mkdirAll(newFolder); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(newFolder, "people.csv"), "name\nAnn\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(newFolder, "pets.yaml"), "name: Rex\n"); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(newFolder, "ignore.xyz"), "skip"); err != nil {
		t.Fatal(err)
	}

	// Wait for debounce and directory handling
	time.Sleep(800 * time.Millisecond)

	indexed, _ := rec.snapshot()
	csvFound, yamlFound := false, false
	for _, p := range indexed {
		if strings.HasSuffix(p, "people.csv") {
			csvFound = true
		}
		if strings.HasSuffix(p, "pets.yaml") {
			yamlFound = true
		}
		if strings.HasSuffix(p, "ignore.xyz") {
			t.Errorf("ignore.xyz should not be indexed")
		}
	}
	if !csvFound || !yamlFound {
		t.Errorf("expected people.csv and pets.yaml to be indexed, got %v", indexed)
	}
}

func TestWatcher_HandleNewDirectory_recursiveSubfolders(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	w := NewWatcher([]string{dir}, []string{".csv"}, true, rec)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	nested := filepath.Join(dir, "level1", "level2")
	if err := mkdirAll(nested); err != nil {
		t.Fatal(err)
	}
	if err := writeFile(filepath.Join(nested, "deep.csv"), "name\nDeep\n"); err != nil {
		t.Fatal(err)
	}

	time.Sleep(800 * time.Millisecond)

	indexed, _ := rec.snapshot()
	found := false
	for _, p := range indexed {
		if strings.HasSuffix(p, "deep.csv") {
			found = true
			break
		}
	}
	if !found {
		t.Errorf("expected deep.csv to be indexed, got %v", indexed)
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
