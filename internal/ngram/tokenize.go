package ngram

import (
	"slices"
	"sync"
)

// Size is the primary n-gram resolution used for search keys and scoring.
const Size = 3

// Gram is a fixed-size trigram of code points. Comparing grams never allocates.
type Gram [Size]rune

// String returns the gram as text.
func (g Gram) String() string {
	return string(g[:])
}

func compareGrams(a, b Gram) int {
	for i := 0; i < Size; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}

// Tokenize returns the distinct n-grams of the normalized input, windowed by code point.
// It returns nil when n < 1 or the normalized input has fewer than n code points.
func Tokenize(input string, n int) []string {
	if n < 1 || input == "" {
		return nil
	}
	cps := CodePoints(Normalize(input))
	if len(cps) < n {
		return nil
	}
	seen := make(map[string]struct{}, len(cps)-n+1)
	grams := make([]string, 0, len(cps)-n+1)
	for i := 0; i+n <= len(cps); i++ {
		g := string(cps[i : i+n])
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		grams = append(grams, g)
	}
	return grams
}

// Resolution returns the n-gram size for a source of length code points:
// Size, falling back to 2 or 1 for shorter inputs, and 0 for empty input.
func Resolution(length int) int {
	if length <= 0 {
		return 0
	}
	return min(length, Size)
}

// Grams tokenizes input at the best resolution its length allows.
func Grams(input string) []string {
	n := Resolution(len(CodePoints(Normalize(input))))
	return Tokenize(input, n)
}

// scratch holds per-call buffers for candidate tokenization.
type scratch struct {
	runes []rune
	grams []Gram
}

var scratchPool = sync.Pool{
	New: func() any {
		return &scratch{
			runes: make([]rune, 0, 256),
			grams: make([]Gram, 0, 256),
		}
	},
}

// maxPooledCap keeps one huge candidate from pinning a large buffer in the pool.
const maxPooledCap = 1 << 16

func getScratch() *scratch {
	return scratchPool.Get().(*scratch)
}

func putScratch(s *scratch) {
	if cap(s.runes) > maxPooledCap || cap(s.grams) > maxPooledCap {
		return
	}
	s.runes = s.runes[:0]
	s.grams = s.grams[:0]
	scratchPool.Put(s)
}

// trigrams fills s.grams with the sorted, distinct trigrams of the normalized text.
func (s *scratch) trigrams(normalized string) []Gram {
	s.runes = appendCodePoints(s.runes[:0], normalized)
	s.grams = s.grams[:0]
	for i := 0; i+Size <= len(s.runes); i++ {
		s.grams = append(s.grams, Gram{s.runes[i], s.runes[i+1], s.runes[i+2]})
	}
	return sortUnique(s.grams)
}

func sortUnique(grams []Gram) []Gram {
	slices.SortFunc(grams, compareGrams)
	return slices.CompactFunc(grams, func(a, b Gram) bool { return a == b })
}

func containsGram(sorted []Gram, g Gram) bool {
	_, found := slices.BinarySearchFunc(sorted, g, compareGrams)
	return found
}
