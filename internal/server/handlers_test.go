package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/watcher"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *mockWatchService) Stats() watcher.Stats {
	return watcher.Stats{Indexed: 3, Removed: 1}
}

type testEnv struct {
	dir   string
	store *storage.SQLiteStorage
	idx   *indexer.Indexer
	srv   *Server
}

func newTestEnv(t *testing.T, watch WatchService, configPath string, fullCfg *config.Config) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "records.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	cfg := &config.SearchConfig{Mode: config.ModeSQL, DefaultLimit: 10, MaxLimit: 100}
	engine := search.NewEngine(store, nil, cfg, nil)
	idx := indexer.NewIndexer(store, nil)
	srv := NewServer(engine, idx, store, &config.ServerConfig{Port: 8080}, zap.NewNop(), watch, configPath, fullCfg)
	return &testEnv{dir: dir, store: store, idx: idx, srv: srv}
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	for _, in := range []*models.RecordInput{
		{ID: "r1", Collection: "people", Fields: map[string]string{"name": "John Smith"}},
		{ID: "r2", Collection: "people", Fields: map[string]string{"name": "Jon Smyth"}},
		{ID: "r3", Collection: "people", Fields: map[string]string{"name": "Mary Jones"}},
	} {
		if _, err := e.idx.IndexRecord(context.Background(), in); err != nil {
			t.Fatal(err)
		}
	}
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = httptest.NewRequest(method, target, bytes.NewReader(b))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHandleWatchDirectoriesList(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/data"}}
	env := newTestEnv(t, mock, "", nil)

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/data" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleWatchDirectoriesList_NotEnabled(t *testing.T) {
	env := newTestEnv(t, nil, "", nil)
	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/watch/directories", nil)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d, want 501", w.Code)
	}
}

func TestHandleWatchDirectoriesAdd_persistsConfig(t *testing.T) {
	mock := &mockWatchService{}
	fullCfg := &config.Config{}
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	env := newTestEnv(t, mock, configPath, fullCfg)

	w := do(t, env.srv.Handler(), http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": env.dir})
	if w.Code != http.StatusCreated {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	if len(mock.Directories()) != 1 {
		t.Errorf("expected 1 directory, got %v", mock.Directories())
	}
	saved, err := config.Load(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Watch.Directories) != 1 || saved.Watch.Directories[0] != env.dir {
		t.Errorf("saved directories: got %v", saved.Watch.Directories)
	}
}

func TestHandleWatchDirectoriesAdd_InvalidPath(t *testing.T) {
	tests := []struct {
		name string
		path func(dir string) string
		want int
	}{
		{"missing", func(dir string) string { return filepath.Join(dir, "nonexistent") }, http.StatusNotFound},
		{"empty", func(string) string { return "" }, http.StatusBadRequest},
		{"file", func(dir string) string {
			p := filepath.Join(dir, "file.csv")
			_ = os.WriteFile(p, []byte("a\n"), 0600)
			return p
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, &mockWatchService{}, "", nil)
			w := do(t, env.srv.Handler(), http.MethodPost, "/api/v1/watch/directories", map[string]string{"path": tt.path(env.dir)})
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestHandleWatchDirectoriesRemove(t *testing.T) {
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	env := newTestEnv(t, mock, "", nil)

	w := do(t, env.srv.Handler(), http.MethodDelete, "/api/v1/watch/directories?path="+dir, nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
	if len(mock.Directories()) != 0 {
		t.Errorf("expected 0 directories, got %v", mock.Directories())
	}
}

func TestHandleSearch(t *testing.T) {
	env := newTestEnv(t, nil, "", nil)
	env.seed(t)

	w := do(t, env.srv.Handler(), http.MethodPost, "/api/v1/search", map[string]any{"query": "John Smith", "collection": "people"})
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Record.ID != "r1" {
		t.Fatalf("expected r1 first, got %+v", resp.Results)
	}
	if resp.Results[0].Score != 1 {
		t.Errorf("exact match score = %v, want 1", resp.Results[0].Score)
	}
	if resp.Mode != config.ModeSQL || resp.SearchKey == "" {
		t.Errorf("mode = %q, key = %q", resp.Mode, resp.SearchKey)
	}
}

func TestHandleSearch_errors(t *testing.T) {
	tests := []struct {
		name string
		body any
		want int
	}{
		{"empty query", map[string]any{"query": "  "}, http.StatusBadRequest},
		{"invalid field", map[string]any{"query": "john", "fields": []string{"name'); DROP"}}, http.StatusBadRequest},
		{"unknown mode", map[string]any{"query": "john", "mode": "vector"}, http.StatusBadRequest},
		{"bad body", "not an object", http.StatusBadRequest},
	}
	env := newTestEnv(t, nil, "", nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, env.srv.Handler(), http.MethodPost, "/api/v1/search", tt.body)
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d (body %s)", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestHandleScoreAndKeys(t *testing.T) {
	env := newTestEnv(t, nil, "", nil)
	h := env.srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/score", map[string]string{"term": "Test", "candidate": "TEST"})
	if w.Code != http.StatusOK {
		t.Fatalf("score status: got %d", w.Code)
	}
	var b models.ScoreBreakdown
	if err := json.NewDecoder(w.Body).Decode(&b); err != nil {
		t.Fatal(err)
	}
	if b.Tier != "case_insensitive" || b.Score != 0.8 {
		t.Errorf("breakdown = %+v", b)
	}

	w = do(t, h, http.MethodPost, "/api/v1/score", map[string]string{"candidate": "x"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("score without term: got %d", w.Code)
	}

	w = do(t, h, http.MethodPost, "/api/v1/keys", map[string]string{"term": "Test"})
	if w.Code != http.StatusOK {
		t.Fatalf("keys status: got %d", w.Code)
	}
	var k models.KeyInfo
	if err := json.NewDecoder(w.Body).Decode(&k); err != nil {
		t.Fatal(err)
	}
	if k.Key != "2;est;tes" || k.Count != 2 {
		t.Errorf("key info = %+v", k)
	}
}

func TestHandleRecords(t *testing.T) {
	env := newTestEnv(t, nil, "", nil)
	h := env.srv.Handler()

	w := do(t, h, http.MethodPost, "/api/v1/records", map[string]any{"collection": "people", "fields": map[string]string{"name": "Ann Lee"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status: got %d, body: %s", w.Code, w.Body.String())
	}
	var created map[string]string
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatal(err)
	}
	id := created["id"]
	if id == "" {
		t.Fatal("expected generated id")
	}

	w = do(t, h, http.MethodGet, "/api/v1/records/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}
	var rec models.Record
	if err := json.NewDecoder(w.Body).Decode(&rec); err != nil {
		t.Fatal(err)
	}
	if rec.Field("name") != "Ann Lee" || rec.Collection != "people" {
		t.Errorf("record = %+v", rec)
	}

	w = do(t, h, http.MethodDelete, "/api/v1/records/"+id, nil)
	if w.Code != http.StatusOK {
		t.Errorf("delete status: got %d", w.Code)
	}
	w = do(t, h, http.MethodGet, "/api/v1/records/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d", w.Code)
	}
	w = do(t, h, http.MethodDelete, "/api/v1/records/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d", w.Code)
	}
	w = do(t, h, http.MethodPost, "/api/v1/records", map[string]any{"collection": "people"})
	if w.Code != http.StatusBadRequest {
		t.Errorf("create without fields: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	env := newTestEnv(t, &mockWatchService{}, "", nil)
	env.seed(t)

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		Records      int64                     `json:"records"`
		Collections  []storage.CollectionStats `json:"collections"`
		SearchMode   string                    `json:"search_mode"`
		SQLFunctions bool                      `json:"sql_functions"`
		Watch        *watcher.Stats            `json:"watch"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Records != 3 {
		t.Errorf("records: got %d, want 3", out.Records)
	}
	if len(out.Collections) != 1 || out.Collections[0].Name != "people" || out.Collections[0].Records != 3 {
		t.Errorf("collections: got %+v", out.Collections)
	}
	if out.SearchMode != config.ModeSQL || !out.SQLFunctions {
		t.Errorf("mode = %q, functions = %v", out.SearchMode, out.SQLFunctions)
	}
	if out.Watch == nil || out.Watch.Indexed != 3 {
		t.Errorf("watch stats: got %+v", out.Watch)
	}
}

func TestHandleStatus_WithDiskUsage(t *testing.T) {
	fullCfg := &config.Config{}
	env := newTestEnv(t, nil, "", fullCfg)
	fullCfg.Storage.DatabasePath = filepath.Join(env.dir, "records.db")
	env.seed(t)

	w := do(t, env.srv.Handler(), http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, body: %s", w.Code, w.Body.String())
	}
	var out struct {
		DiskUsageBytes *int64         `json:"disk_usage_bytes"`
		Config         map[string]any `json:"config"`
	}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.DiskUsageBytes == nil {
		t.Error("expected disk_usage_bytes in response when the config is set")
	}
	if out.DiskUsageBytes != nil && *out.DiskUsageBytes < 1 {
		t.Errorf("disk_usage_bytes: got %d, want >= 1", *out.DiskUsageBytes)
	}
	if out.Config["fuzzy_ceiling"] != 0.7 {
		t.Errorf("fuzzy_ceiling: got %v", out.Config["fuzzy_ceiling"])
	}
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil, "", nil)
	w := do(t, env.srv.Handler(), http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}
