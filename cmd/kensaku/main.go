// Package main is the kensaku CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kensaku/internal/cli"
	"github.com/hyperjump/kensaku/internal/config"
	"github.com/hyperjump/kensaku/internal/importer"
	"github.com/hyperjump/kensaku/internal/indexer"
	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/search"
	"github.com/hyperjump/kensaku/internal/server"
	"github.com/hyperjump/kensaku/internal/sqlfunc"
	"github.com/hyperjump/kensaku/internal/storage"
	"github.com/hyperjump/kensaku/internal/watcher"
	"github.com/hyperjump/kensaku/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/kensaku/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// errServerUnavailable marks requests that never reached the server.
var errServerUnavailable = errors.New("server unavailable")

var httpClient = &http.Client{Timeout: 30 * time.Second}

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kensaku server" from the project dir uses the project's config (including debug).
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadConfigOrDefaults is loadConfig for commands that work without a config
// file; a missing or unreadable file yields the defaults.
func loadConfigOrDefaults(path string) *config.Config {
	cfg, _, err := loadConfig(path)
	if err != nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	return cfg
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "score":
		runScore()
	case "key":
		runKey()
	case "index":
		runIndex()
	case "import":
		runImport()
	case "delete":
		runDelete()
	case "watch":
		runWatch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kensaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (directory changes, file imports, queries)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode, false)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
		zap.String("search_mode", cfg.Search.Mode),
	)

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	exts := cfg.Watch.Extensions
	watchOpts := []watcher.WatcherOption{}
	if debugMode {
		watchOpts = append(watchOpts, watcher.WithLogger(logger))
	}
	watchSvc := watcher.NewWatcher(
		cfg.Watch.Directories,
		exts,
		cfg.Watch.RecursiveOrDefault(),
		newWatchHandler(components.Indexer, exts, logger),
		watchOpts...,
	)
	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := watchSvc.Start(watchCtx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	go watchSvc.SyncExistingFiles()

	srv := server.NewServer(
		components.Engine,
		components.Indexer,
		components.Storage,
		&cfg.Server,
		logger,
		watchSvc,
		resolvedConfigPath,
		cfg,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newWatchHandler connects watcher events to the indexer: changed files are
// re-imported, removed files lose their records.
func newWatchHandler(idx *indexer.Indexer, exts []string, logger *zap.Logger) watcher.HandlerFuncs {
	return watcher.HandlerFuncs{
		Index: func(ctx context.Context, path string) error {
			n, err := idx.IndexFile(ctx, path, exts)
			if err != nil {
				return err
			}
			logger.Debug("watch imported file", zap.String("path", path), zap.Int("records", n))
			return nil
		},
		Remove: func(ctx context.Context, path string) error {
			n, err := idx.DeleteFile(ctx, path)
			if err != nil {
				return err
			}
			logger.Debug("watch removed file", zap.String("path", path), zap.Int64("records", n))
			return nil
		},
		Prune: idx.PruneMissing,
	}
}

// printSearchUsage prints search subcommand usage and search hints.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kensaku search [flags] <query>\n\n")
	fmt.Fprintf(fs.Output(), "Query is all remaining arguments joined by spaces. Multi-word queries work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Scores run from 0 to 1: 1 is an exact match, 0.8 a case-insensitive match,
and trigram similarity is scaled below 0.7.
  • Use --fields to average the scores of specific fields instead of taking the best field.
  • Use --min-score to drop weak matches; --limit and --offset page through results.
  • Use --mode memory to score in the worker pool instead of inside SQLite.

Examples:
  kensaku search john smith
  kensaku search "john smith"                       # same as above
  kensaku search --collection people --fields name,address.city jon smyth
  kensaku search --min-score 0.3 --limit 20 smiht
`)
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// parseFields splits a comma-separated --fields value.
func parseFields(s string) []string {
	var fields []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// searchConfigPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func searchConfigPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// searchMinScoreDefaultFromConfig loads config at path and returns its minimum
// score. On load failure it returns 0 (no filtering).
func searchMinScoreDefaultFromConfig(path string) float64 {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return 0
	}
	return cfg.Search.MinScore
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument, so "kensaku search \"query\" -min-score 0.5"
// would otherwise leave -min-score unparsed.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runSearch() {
	searchArgs := searchArgsReorder(os.Args[2:])
	configPath := searchConfigPathFromArgs(searchArgs, defaultConfigPath)
	defaultMinScore := searchMinScoreDefaultFromConfig(configPath)

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage; direct storage is also used when the server is not running)")
	collection := fs.String("collection", "", "collection to search (empty = all)")
	fieldsFlag := fs.String("fields", "", "comma-separated fields to score (empty = best of all fields)")
	limit := fs.Int("limit", 10, "number of results")
	offset := fs.Int("offset", 0, "number of results to skip")
	minScore := fs.Float64("min-score", defaultMinScore, "minimum score for results")
	mode := fs.String("mode", "", "search mode: sql or memory (empty = config default)")
	outputFormat := fs.String("output", "text", "output format: text (human-readable), compact (one result per line), or json (parseable)")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	queryStr := buildSearchQuery(fs.Args())
	if queryStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	searchQuery := &models.SearchQuery{
		Query:      queryStr,
		Collection: *collection,
		Fields:     parseFields(*fieldsFlag),
		Limit:      *limit,
		Offset:     *offset,
		MinScore:   *minScore,
		Mode:       *mode,
	}

	if *serverURL != "" {
		response, err := searchViaHTTP(*serverURL, searchQuery)
		if err == nil {
			writeSearchOutput(response, format)
			return
		}
		if !errors.Is(err, errServerUnavailable) {
			fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Server not reachable at %s; searching storage directly\n", *serverURL)
	}

	// Direct storage access (when server is not running).
	cfg, _, err := loadConfig(*configPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	defer components.Close()

	response, err := components.Engine.Search(context.Background(), searchQuery)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	writeSearchOutput(response, format)
}

func writeSearchOutput(response *models.SearchResponse, format cli.SearchOutputFormat) {
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// postJSON sends body to serverURL+path and decodes a 2xx response into out.
func postJSON(serverURL, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := httpClient.Post(serverURL+path, "application/json", bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("%w: %v", errServerUnavailable, err)
	}
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func searchViaHTTP(serverURL string, query *models.SearchQuery) (*models.SearchResponse, error) {
	var response models.SearchResponse
	if err := postJSON(serverURL, "/api/v1/search", query, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func runScore() {
	fs := flag.NewFlagSet("score", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for fuzzy weights)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() != 2 {
		fmt.Println("Usage: kensaku score [flags] <term> <candidate>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := loadConfigOrDefaults(*configPath)
	sqlfunc.Register(cfg.Fuzzy.Options()...)
	engine := search.NewEngine(nil, nil, &cfg.Search, nil)
	if err := cli.WriteScore(os.Stdout, engine.Score(fs.Arg(0), fs.Arg(1)), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runKey() {
	fs := flag.NewFlagSet("key", flag.ExitOnError)
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	term := buildSearchQuery(fs.Args())
	if term == "" {
		fmt.Println("Usage: kensaku key [flags] <term>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := cli.WriteKey(os.Stdout, search.DescribeKey(term), format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// statusConfigResponse holds configuration info returned by status.
type statusConfigResponse struct {
	DatabasePath         string  `json:"database_path,omitempty"`
	CoverageWeight       float64 `json:"coverage_weight"`
	DiceWeight           float64 `json:"dice_weight"`
	CaseInsensitiveScore float64 `json:"case_insensitive_score"`
	FuzzyCeiling         float64 `json:"fuzzy_ceiling"`
	DefaultLimit         int     `json:"default_limit,omitempty"`
	MaxLimit             int     `json:"max_limit,omitempty"`
}

// statusResponse is the shape of GET /api/v1/status response.
type statusResponse struct {
	Records        int64                     `json:"records"`
	Collections    []storage.CollectionStats `json:"collections"`
	Sources        int                       `json:"sources"`
	SearchMode     string                    `json:"search_mode"`
	SQLFunctions   bool                      `json:"sql_functions"`
	DiskUsageBytes *int64                    `json:"disk_usage_bytes,omitempty"`
	Watch          *watcher.Stats            `json:"watch,omitempty"`
	Config         *statusConfigResponse     `json:"config,omitempty"`
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (for direct storage mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = use direct storage; also used when the server is not running)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *statusResponse
	if *serverURL != "" {
		res, err := statusViaHTTP(*serverURL)
		if err != nil && !errors.Is(err, errServerUnavailable) {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	}
	if status == nil {
		res, err := statusDirect(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = res
	}

	switch *outputFormat {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
	case "text":
		writeStatusText(os.Stdout, status)
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", *outputFormat)
		os.Exit(1)
	}
}

func statusDirect(configPath string) (*statusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug, true)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	defer components.Close()

	ctx := context.Background()
	recordCount, err := components.Storage.CountRecords(ctx)
	if err != nil {
		return nil, fmt.Errorf("count records failed: %w", err)
	}
	collections, err := components.Storage.Collections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections failed: %w", err)
	}
	sources, err := components.Storage.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources failed: %w", err)
	}
	installed, _ := sqlfunc.Installed(ctx, components.Storage.DB())
	o := sqlfunc.Options()
	status := &statusResponse{
		Records:      recordCount,
		Collections:  collections,
		Sources:      len(sources),
		SearchMode:   components.Engine.Mode(),
		SQLFunctions: installed,
		Config: &statusConfigResponse{
			DatabasePath:         cfg.Storage.DatabasePath,
			CoverageWeight:       o.Weights.Coverage,
			DiceWeight:           o.Weights.Dice,
			CaseInsensitiveScore: o.CaseInsensitiveScore,
			FuzzyCeiling:         o.FuzzyCeiling,
			DefaultLimit:         cfg.Search.DefaultLimit,
			MaxLimit:             cfg.Search.MaxLimit,
		},
	}
	diskBytes, err := storage.DiskUsageBytes(storage.DatabaseFiles(cfg.Storage.DatabasePath)...)
	if err == nil {
		status.DiskUsageBytes = &diskBytes
	}
	return status, nil
}

func writeStatusText(w io.Writer, status *statusResponse) {
	fmt.Fprintf(w, "records:            %d   # count of stored records\n", status.Records)
	fmt.Fprintf(w, "sources:            %d   # count of imported files\n", status.Sources)
	fmt.Fprintf(w, "search_mode:        %s\n", status.SearchMode)
	fmt.Fprintf(w, "sql_functions:      %t   # fuzzy functions installed in SQLite\n", status.SQLFunctions)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database, WAL and shared memory files\n", *status.DiskUsageBytes)
	}
	if len(status.Collections) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# collections")
		for _, c := range status.Collections {
			fmt.Fprintf(w, "%-20s%d\n", c.Name+":", c.Records)
		}
	}
	if status.Watch != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# watcher")
		fmt.Fprintf(w, "indexed:            %d\n", status.Watch.Indexed)
		fmt.Fprintf(w, "removed:            %d\n", status.Watch.Removed)
		fmt.Fprintf(w, "pruned:             %d\n", status.Watch.Pruned)
		fmt.Fprintf(w, "errors:             %d\n", status.Watch.Errors)
	}
	if status.Config != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		if status.Config.DatabasePath != "" {
			fmt.Fprintf(w, "database_path:      %s\n", status.Config.DatabasePath)
		}
		fmt.Fprintf(w, "weights:            coverage %g, dice %g\n", status.Config.CoverageWeight, status.Config.DiceWeight)
		fmt.Fprintf(w, "case_insensitive:   %g\n", status.Config.CaseInsensitiveScore)
		fmt.Fprintf(w, "fuzzy_ceiling:      %g\n", status.Config.FuzzyCeiling)
		if status.Config.DefaultLimit > 0 {
			fmt.Fprintf(w, "default_limit:      %d\n", status.Config.DefaultLimit)
		}
		if status.Config.MaxLimit > 0 {
			fmt.Fprintf(w, "max_limit:          %d\n", status.Config.MaxLimit)
		}
	}
}

func statusViaHTTP(serverURL string) (*statusResponse, error) {
	resp, err := httpClient.Get(serverURL + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errServerUnavailable, err)
	}
	var s statusResponse
	if err := decodeResponse(resp, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// withComponents loads config, builds the components and runs fn, exiting on failure.
func withComponents(configPath string, fn func(ctx context.Context, cfg *config.Config, c *Components) error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug, true)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		logger.Fatal("Failed to initialize", zap.Error(err))
	}
	err = fn(context.Background(), cfg, components)
	components.Close()
	_ = logger.Sync()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku index [flags] <file-or-directory>")
		os.Exit(1)
	}
	path := fs.Arg(0)

	withComponents(*configPath, func(ctx context.Context, cfg *config.Config, c *Components) error {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("failed to stat path: %w", err)
		}
		if info.IsDir() {
			n, err := c.Indexer.IndexDirectory(ctx, path, cfg.Watch.Extensions)
			if err != nil {
				return fmt.Errorf("indexing directory failed: %w", err)
			}
			fmt.Printf("Indexed %d file(s) from %s\n", n, path)
			return nil
		}
		// Single file: no extension filter
		n, err := c.Indexer.IndexFile(ctx, path, nil)
		if err != nil {
			return fmt.Errorf("indexing failed: %w", err)
		}
		fmt.Printf("Indexed %d record(s) from %s into %s\n", n, path, indexer.CollectionName(path))
		return nil
	})
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "target collection (default: file name without extension)")
	_ = fs.Parse(searchArgsReorder(os.Args[2:]))

	if fs.NArg() < 1 {
		fmt.Println("Usage: kensaku import [flags] <file>")
		os.Exit(1)
	}
	path := fs.Arg(0)
	withComponents(*configPath, func(ctx context.Context, _ *config.Config, c *Components) error {
		n, err := c.Indexer.ImportFile(ctx, path, *collection)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
		target := *collection
		if target == "" {
			target = indexer.CollectionName(path)
		}
		fmt.Printf("Imported %d record(s) from %s into %s\n", n, path, target)
		return nil
	})
}

func runWatch() {
	if len(os.Args) < 3 {
		fmt.Println("Usage: kensaku watch <add|remove|list> [path]")
		fmt.Println("  kensaku watch add <path>     Add directory to watch")
		fmt.Println("  kensaku watch remove <path>  Remove directory from watch")
		fmt.Println("  kensaku watch list           List watched directories")
		os.Exit(1)
	}
	sub := os.Args[2]
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	_ = fs.Parse(os.Args[3:])
	switch sub {
	case "add":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kensaku watch add <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		var out map[string]string
		if err := postJSON(*serverURL, "/api/v1/watch/directories", map[string]any{"path": path, "sync": true}, &out); err != nil {
			fmt.Printf("Add failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Added: %s\n", path)
	case "remove":
		if fs.NArg() < 1 {
			fmt.Println("Usage: kensaku watch remove <path>")
			os.Exit(1)
		}
		path, _ := filepath.Abs(fs.Arg(0))
		req, _ := http.NewRequest(http.MethodDelete, *serverURL+"/api/v1/watch/directories?path="+url.QueryEscape(path), nil)
		resp, err := httpClient.Do(req)
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		var out map[string]string
		if err := decodeResponse(resp, &out); err != nil {
			fmt.Printf("Remove failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Removed: %s\n", path)
	case "list":
		resp, err := httpClient.Get(*serverURL + "/api/v1/watch/directories")
		if err != nil {
			fmt.Printf("Request failed: %v\n", err)
			os.Exit(1)
		}
		var out struct {
			Directories []string `json:"directories"`
		}
		if err := decodeResponse(resp, &out); err != nil {
			fmt.Printf("List failed: %v\n", err)
			os.Exit(1)
		}
		for _, d := range out.Directories {
			fmt.Println(d)
		}
	default:
		fmt.Printf("Unknown watch subcommand: %s\n", sub)
		os.Exit(1)
	}
}

func runDelete() {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	file := fs.String("file", "", "delete every record imported from this file instead of one record")
	_ = fs.Parse(os.Args[2:])

	if *file == "" && fs.NArg() < 1 {
		fmt.Println("Usage: kensaku delete [flags] <record-id>")
		fmt.Println("       kensaku delete --file <path>")
		os.Exit(1)
	}
	withComponents(*configPath, func(ctx context.Context, _ *config.Config, c *Components) error {
		if *file != "" {
			n, err := c.Indexer.DeleteFile(ctx, *file)
			if err != nil {
				return fmt.Errorf("deletion failed: %w", err)
			}
			fmt.Printf("Deleted %d record(s) from %s\n", n, *file)
			return nil
		}
		id := fs.Arg(0)
		if err := c.Indexer.DeleteRecord(ctx, id); err != nil {
			return fmt.Errorf("deletion failed: %w", err)
		}
		fmt.Printf("Record deleted: %s\n", id)
		return nil
	})
}

// Components holds initialized services.
type Components struct {
	Storage *storage.SQLiteStorage
	Ranker  *search.Ranker
	Engine  *search.Engine
	Indexer *indexer.Indexer
}

// Close releases the worker pool and the database.
func (c *Components) Close() {
	if c.Ranker != nil {
		c.Ranker.Release()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, debug bool) (*Components, error) {
	// The fuzzy functions must be registered with the configured weights
	// before the first connection is opened.
	sqlfunc.Register(cfg.Fuzzy.Options()...)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ranker, err := search.NewRanker(cfg.Search.Workers, cfg.Search.BatchSize)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize ranker: %w", err)
	}
	if logger != nil {
		logger.Debug("search initialized",
			zap.String("mode", cfg.Search.Mode),
			zap.Int("workers", ranker.Workers()))
	}

	engine := search.NewEngine(store, ranker, &cfg.Search, logger)

	idxOpts := []indexer.IndexerOption{}
	if debug && logger != nil {
		idxOpts = append(idxOpts, indexer.WithLogger(logger))
	}
	idx := indexer.NewIndexer(store, importer.NewImporter(), idxOpts...)

	return &Components{
		Storage: store,
		Ranker:  ranker,
		Engine:  engine,
		Indexer: idx,
	}, nil
}

func printUsage() {
	fmt.Println(`kensaku - Fuzzy record search over SQLite

Usage:
  kensaku server [flags]               Start the HTTP server
  kensaku search [flags] <query>       Search records
  kensaku score [flags] <term> <text>  Score one candidate against a term
  kensaku key [flags] <term>           Show the trigram search key of a term
  kensaku index [flags] <path>         Import a data file or directory
  kensaku import [flags] <file>        Import a data file into a collection
  kensaku delete [flags] <id>          Delete a record (or --file <path>)
  kensaku status [flags]               Show storage and search status
  kensaku watch <add|remove|list>      Manage watched directories
  kensaku version                      Show version
  kensaku help                         Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kensaku/config.yaml)
  --debug            Enable debug logging

Search Flags:
  --config string       Config file path (for direct storage mode; also used for the default min score)
  --server string       Server URL (default: http://localhost:8080). Use --server "" to search storage directly.
  --collection string   Collection to search (default: all)
  --fields string       Comma-separated fields to average (default: best field)
  --limit int           Number of results (default: 10)
  --offset int          Results to skip (default: 0)
  --min-score float     Minimum score (default from config, or 0)
  --mode string         sql or memory (default from config)
  --output string       text, compact or json (default: text)

Import Flags:
  --config string       Config file path
  --collection string   Target collection (default: file name)

Status Flags:
  --config string    Config file path (for direct storage mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" for direct storage.
  --output string    Output format: text or json (default: text)

Watch Flags:
  --server string    Server URL (default: http://localhost:8080)

Supported files: .json, .yaml, .yml, .csv, .xlsx

Examples:
  kensaku server
  kensaku search "john smith"
  kensaku search --collection people --fields name,address.city --min-score 0.3 jon smyth
  kensaku search --output json "query"
  kensaku score "John Smith" "Jon Smyth"
  kensaku key "John Smith"
  kensaku index ./data
  kensaku import --collection customers customers.xlsx
  kensaku delete 7c1f0d4e-...
  kensaku delete --file ./data/people.csv
  kensaku status --output json
  kensaku watch add /path/to/data`)
}
