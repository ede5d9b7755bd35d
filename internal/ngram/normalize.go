// Package ngram provides Unicode-aware character n-gram tokenization, search keys,
// and the coverage/Dice similarity scorer used to rank rows by approximate text match.
package ngram

import (
	"strings"
	"sync"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Lower-casing maps one rune at a time, so a capital sigma always becomes σ
// regardless of its position in a word. Chained transformers are stateful,
// so each goroutine borrows its own.
var foldPool = sync.Pool{
	New: func() any {
		return transform.Chain(norm.NFC, runes.Map(unicode.ToLower), norm.NFC)
	},
}

// Normalize returns s in canonical composed form (NFC), lower-cased.
// Invalid UTF-8 sequences are replaced with U+FFFD so that every later step
// sees the same code points.
func Normalize(s string) string {
	if isLowerASCII(s) {
		return s
	}
	s = strings.ToValidUTF8(s, string(utf8.RuneError))
	t := foldPool.Get().(transform.Transformer)
	defer foldPool.Put(t)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(norm.NFC.String(s))
	}
	return out
}

// Compose returns s in NFC without changing case.
func Compose(s string) string {
	if isASCII(s) {
		return s
	}
	return norm.NFC.String(strings.ToValidUTF8(s, string(utf8.RuneError)))
}

// CodePoints decodes s into Unicode scalar values.
func CodePoints(s string) []rune {
	return appendCodePoints(make([]rune, 0, len(s)), s)
}

func appendCodePoints(dst []rune, s string) []rune {
	for _, r := range s {
		dst = append(dst, r)
	}
	return dst
}

// FromUTF16 converts UTF-16 code units to a string, merging surrogate pairs into
// single code points. Unpaired surrogates become U+FFFD.
func FromUTF16(units []uint16) string {
	return string(utf16.Decode(units))
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func isLowerASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= utf8.RuneSelf || ('A' <= c && c <= 'Z') {
			return false
		}
	}
	return true
}
