// Package cli provides output helpers for the kensaku command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputCompact prints one tab-separated line per result.
	OutputCompact SearchOutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// maxValueLen caps field values in text output.
const maxValueLen = 120

// ParseOutputFormat validates a --output flag value.
func ParseOutputFormat(s string) (SearchOutputFormat, error) {
	switch f := SearchOutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact, OutputJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

// WriteSearchResults writes search results to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, response)
	case OutputCompact:
		for _, result := range response.Results {
			writeCompactResult(w, result)
		}
		return nil
	default:
		writeSearchResultsText(w, response)
		return nil
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d results in %dms (mode %s, key %s)\n\n",
		response.Total, response.QueryTime, response.Mode, response.SearchKey)
	for _, result := range response.Results {
		writeOneResult(w, result)
	}
}

func writeOneResult(w io.Writer, result *models.ScoredRecord) {
	fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
	fmt.Fprintf(w, "Rank: %d | Score: %.4f\n", result.Rank, result.Score)
	if result.Record == nil {
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "ID: %s\n", result.Record.ID)
	fmt.Fprintf(w, "Collection: %s\n", result.Record.Collection)
	if result.Record.Source != "" {
		fmt.Fprintf(w, "Source: %s\n", result.Record.Source)
	}
	fieldScores := make(map[string]float64, len(result.Scores))
	for _, fs := range result.Scores {
		fieldScores[fs.Name] = fs.Score
	}
	fmt.Fprintln(w)
	for _, name := range sortedFieldNames(result.Record.Fields) {
		value := utils.Truncate(result.Record.Fields[name], maxValueLen)
		if s, ok := fieldScores[name]; ok {
			fmt.Fprintf(w, "  %s: %s  (%.4f)\n", name, value, s)
			continue
		}
		fmt.Fprintf(w, "  %s: %s\n", name, value)
	}
	fmt.Fprintln(w)
}

func writeCompactResult(w io.Writer, result *models.ScoredRecord) {
	if result.Record == nil {
		fmt.Fprintf(w, "%d\t%.4f\n", result.Rank, result.Score)
		return
	}
	values := make([]string, 0, len(result.Record.Fields))
	for _, name := range sortedFieldNames(result.Record.Fields) {
		values = append(values, name+"="+result.Record.Fields[name])
	}
	summary := strings.ReplaceAll(TruncateWords(strings.Join(values, " "), 12), "\t", " ")
	fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n", result.Rank, result.Score, result.Record.ID, result.Record.Collection, summary)
}

func sortedFieldNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// PrintSearchResults prints search results to stdout in text format.
func PrintSearchResults(response *models.SearchResponse) {
	_ = WriteSearchResults(os.Stdout, response, OutputText)
}

// WriteScore writes a score breakdown in the given format.
func WriteScore(w io.Writer, b *models.ScoreBreakdown, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, b)
	case OutputCompact:
		fmt.Fprintf(w, "%.4f\t%s\t%.4f\n", b.Score, b.Tier, b.NGramScore)
		return nil
	default:
		fmt.Fprintf(w, "Term:        %s\n", b.Term)
		fmt.Fprintf(w, "Candidate:   %s\n", b.Candidate)
		fmt.Fprintf(w, "Search key:  %s\n", b.SearchKey)
		fmt.Fprintf(w, "Tier:        %s\n", b.Tier)
		fmt.Fprintf(w, "N-gram:      %.4f\n", b.NGramScore)
		fmt.Fprintf(w, "Score:       %.4f\n", b.Score)
		return nil
	}
}

// WriteKey writes a search key in the given format.
func WriteKey(w io.Writer, k *models.KeyInfo, format SearchOutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, k)
	case OutputCompact:
		fmt.Fprintln(w, k.Key)
		return nil
	default:
		fmt.Fprintf(w, "Term:   %s\n", k.Term)
		fmt.Fprintf(w, "Key:    %s\n", k.Key)
		fmt.Fprintf(w, "Grams:  %d\n", k.Count)
		for _, g := range k.Grams {
			fmt.Fprintf(w, "  %q\n", g)
		}
		return nil
	}
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
