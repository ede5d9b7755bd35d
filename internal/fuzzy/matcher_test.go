package fuzzy

import (
	"math"
	"testing"

	"github.com/hyperjump/kensaku/internal/ngram"
)

func TestMatcher_tiers(t *testing.T) {
	tests := []struct {
		name      string
		term      string
		candidate string
		want      float64
		tier      Tier
	}{
		{"exact", "test", "test", ExactScore, TierExact},
		{"exact substring", "test", "this is a test string", ExactScore, TierExact},
		{"case-insensitive", "Test", "TEST", DefaultCaseInsensitiveScore, TierCaseInsensitive},
		{"case-insensitive substring", "tEsT", "a Test case", DefaultCaseInsensitiveScore, TierCaseInsensitive},
		{"short strings use containment", "ab", "ab", ExactScore, TierExact},
		{"greek sigma at end of term", "ΑΣ", "αΣβ", DefaultCaseInsensitiveScore, TierCaseInsensitive},
		{"greek sigma before a space", "ΝΟΜΟΣ ΚΑΙ", "νομοσ και", DefaultCaseInsensitiveScore, TierCaseInsensitive},
		{"canonically equivalent", "cafe\u0301", "caf\u00e9 noir", ExactScore, TierExact},
		{"no match", "apple", "bhnhnh", 0, TierNone},
		{"empty term", "", "anything", 0, TierNone},
		{"blank term", "   ", "anything", 0, TierNone},
		{"empty candidate", "abc", "", 0, TierNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher(tt.term)
			got, tier := m.Match(tt.candidate)
			if got != tt.want || tier != tt.tier {
				t.Errorf("Match(%q, %q) = (%v, %s), want (%v, %s)", tt.term, tt.candidate, got, tier, tt.want, tt.tier)
			}
		})
	}
}

func TestMatcher_fuzzyTierIsScaled(t *testing.T) {
	m := NewMatcher("testing")
	got, tier := m.Match("testign")
	if tier != TierFuzzy {
		t.Fatalf("tier = %s, want fuzzy", tier)
	}
	want := ngram.Score(ngram.BuildSearchKey("testing"), "testign") * DefaultFuzzyCeiling
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("got %v, want %v", got, want)
	}
	if got <= 0.4 {
		t.Errorf("typo should still score above 0.4, got %v", got)
	}
}

func TestMatcher_precedence(t *testing.T) {
	// A case-insensitive hit must outrank the best possible fuzzy hit,
	// and an exact hit must outrank both.
	m := NewMatcher("Fuzzy Search")
	exact := m.Score("Fuzzy Search engine")
	folded := m.Score("FUZZY SEARCH")
	fuzzy := m.Score("fuzzy serach")
	if !(exact > folded && folded > fuzzy && fuzzy > 0) {
		t.Errorf("precedence violated: exact=%v folded=%v fuzzy=%v", exact, folded, fuzzy)
	}
	if fuzzy > DefaultFuzzyCeiling {
		t.Errorf("fuzzy tier %v above ceiling %v", fuzzy, DefaultFuzzyCeiling)
	}
}

func TestMatcher_NGramScoreBypassesContainment(t *testing.T) {
	m := NewMatcher("ab")
	if got := m.Score("ab"); got != ExactScore {
		t.Errorf("Score(ab, ab) = %v, want 1", got)
	}
	if got := m.NGramScore("ab"); got != 0 {
		t.Errorf("NGramScore(ab, ab) = %v, want 0", got)
	}
	if m.SearchKey() != ngram.EmptyKey {
		t.Errorf("SearchKey = %q, want %q", m.SearchKey(), ngram.EmptyKey)
	}
}

func TestOptions(t *testing.T) {
	m := NewMatcher("testing",
		WithCaseInsensitiveScore(0.9),
		WithFuzzyCeiling(0.5),
		WithWeights(ngram.Weights{Coverage: 1, Dice: 1}),
	)
	if got := m.Score("TESTING"); got != 0.9 {
		t.Errorf("case-insensitive score = %v, want 0.9", got)
	}
	if got := m.Score("testign"); math.Abs(got-0.3) > 1e-12 {
		t.Errorf("fuzzy score = %v, want 0.3", got)
	}

	ignored := NewMatcher("x",
		WithCaseInsensitiveScore(1.5),
		WithFuzzyCeiling(0),
		WithWeights(ngram.Weights{Coverage: -1}),
	).Options()
	if ignored != DefaultOptions() {
		t.Errorf("out-of-range options should be ignored, got %+v", ignored)
	}
}

func TestNewMatcherWithKey(t *testing.T) {
	key, ok := ngram.ParseKey(ngram.BuildSearchKey("testing"))
	if !ok {
		t.Fatal("key should parse")
	}
	a := NewMatcherWithKey("testing", key).Score("testign")
	b := NewMatcher("testing").Score("testign")
	if a != b {
		t.Errorf("prebuilt key scored %v, fresh key scored %v", a, b)
	}
}

func TestSearch(t *testing.T) {
	if got := Search("test", "this is a test"); got != ExactScore {
		t.Errorf("Search = %v, want 1", got)
	}
}

func TestTier_String(t *testing.T) {
	tests := map[Tier]string{
		TierNone:            "none",
		TierFuzzy:           "fuzzy",
		TierCaseInsensitive: "case_insensitive",
		TierExact:           "exact",
		Tier(99):            "unknown",
	}
	for tier, want := range tests {
		if tier.String() != want {
			t.Errorf("Tier(%d).String() = %q, want %q", tier, tier.String(), want)
		}
	}
}
