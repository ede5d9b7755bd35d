package models

// FieldScore is the score of one field of a record.
type FieldScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// ScoredRecord is a record with its overall score and per-field scores.
// With explicit fields the overall score is the mean of the field scores;
// otherwise it is the best score of any field.
type ScoredRecord struct {
	Record *Record      `json:"record"`
	Score  float64      `json:"score"`
	Scores []FieldScore `json:"scores,omitempty"`
	Rank   int          `json:"rank"`
}

// SearchResponse is the response for a search request.
type SearchResponse struct {
	Results   []*ScoredRecord `json:"results"`
	Total     int             `json:"total"`
	QueryTime int64           `json:"query_time_ms"`
	Query     string          `json:"query"`
	// SearchKey is the serialized trigram key the records were scored against.
	SearchKey string `json:"search_key"`
	Mode      string `json:"mode"`
}

// ScoreBreakdown explains how a single candidate scored against a term.
type ScoreBreakdown struct {
	Term       string  `json:"term"`
	Candidate  string  `json:"candidate"`
	SearchKey  string  `json:"search_key"`
	Score      float64 `json:"score"`
	NGramScore float64 `json:"ngram_score"`
	Tier       string  `json:"tier"`
}

// KeyInfo shows the trigram key built for a term.
type KeyInfo struct {
	Term  string   `json:"term"`
	Key   string   `json:"key"`
	Count int      `json:"count"`
	Grams []string `json:"grams"`
}
