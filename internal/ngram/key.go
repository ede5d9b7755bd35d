package ngram

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// KeySeparator separates the fields of a serialized search key.
const KeySeparator = ';'

// EmptyKey is the serialized key of a term below the minimum n-gram resolution.
const EmptyKey = "0"

// Key is a precomputed search term: the cardinality of its trigram set and the
// distinct trigrams in sorted order.
type Key struct {
	Count int
	Grams []Gram
}

// BuildKey tokenizes term into its trigram key.
func BuildKey(term string) Key {
	cps := CodePoints(Normalize(term))
	if len(cps) < Size {
		return Key{}
	}
	grams := make([]Gram, 0, len(cps)-Size+1)
	for i := 0; i+Size <= len(cps); i++ {
		grams = append(grams, Gram{cps[i], cps[i+1], cps[i+2]})
	}
	grams = sortUnique(grams)
	return Key{Count: len(grams), Grams: grams}
}

// BuildSearchKey returns the serialized key for term, "<count>;<gram>;<gram>...".
// Terms shorter than three code points yield EmptyKey.
func BuildSearchKey(term string) string {
	return BuildKey(term).String()
}

// Empty reports whether the key cannot match anything.
func (k Key) Empty() bool {
	return k.Count <= 0 || len(k.Grams) == 0
}

// String serializes the key.
func (k Key) String() string {
	if k.Empty() {
		return EmptyKey
	}
	var b strings.Builder
	b.Grow(4 + len(k.Grams)*(Size*utf8.UTFMax+1))
	b.WriteString(strconv.Itoa(k.Count))
	for _, g := range k.Grams {
		b.WriteByte(KeySeparator)
		for _, r := range g {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseKey decodes a serialized key. Each gram is read as exactly Size code
// points, so grams containing the separator round-trip. It reports false for
// anything that is not a well-formed key; EmptyKey parses to an empty Key.
func ParseKey(s string) (Key, bool) {
	head, rest, hasGrams := strings.Cut(s, string(KeySeparator))
	count, err := strconv.Atoi(head)
	if err != nil || count < 0 {
		return Key{}, false
	}
	if !hasGrams {
		return Key{Count: count}, count == 0
	}
	grams := make([]Gram, 0, utf8.RuneCountInString(rest)/(Size+1)+1)
	for len(rest) > 0 {
		var g Gram
		for i := 0; i < Size; i++ {
			if len(rest) == 0 {
				return Key{}, false
			}
			r, w := utf8.DecodeRuneInString(rest)
			g[i] = r
			rest = rest[w:]
		}
		grams = append(grams, g)
		if len(rest) == 0 {
			break
		}
		if rest[0] != KeySeparator {
			return Key{}, false
		}
		rest = rest[1:]
	}
	return Key{Count: count, Grams: sortUnique(grams)}, true
}
