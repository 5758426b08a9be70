// Package match scores free text against the customer directory and the
// product catalog using ordered strategy lists with deterministic
// tie-breaking.
package match

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
)

// Normalize lowercases text, replaces punctuation with spaces and collapses
// whitespace so substring checks are insensitive to formatting.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeCode strips separators and lowercases a code-like token.
func NormalizeCode(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity returns a [0,1] ratio between two normalized strings.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return levenshtein.Match(a, b, nil)
}

// SignificantWords returns the words of a canonical name long enough and
// meaningful enough to identify the entity on their own.
func SignificantWords(name string, minLen int, stopwords []string) []string {
	stop := make(map[string]bool, len(stopwords))
	for _, w := range stopwords {
		stop[strings.ToLower(w)] = true
	}

	var words []string
	for _, w := range strings.Fields(Normalize(name)) {
		if len(w) >= minLen && !stop[w] {
			words = append(words, w)
		}
	}
	return words
}

// containsWord reports whether the normalized haystack contains w as a whole
// word.
func containsWord(haystack, w string) bool {
	for _, hw := range strings.Fields(haystack) {
		if hw == w {
			return true
		}
	}
	return false
}

// ngrams returns every run of n consecutive words from the normalized text,
// capped to keep matching linear on large bodies.
func ngrams(text string, n, limit int) []string {
	words := strings.Fields(text)
	if n <= 0 || len(words) < n {
		return nil
	}
	if limit > 0 && len(words) > limit {
		words = words[:limit]
	}
	grams := make([]string, 0, len(words)-n+1)
	for i := 0; i+n <= len(words); i++ {
		grams = append(grams, strings.Join(words[i:i+n], " "))
	}
	return grams
}

// senderDomain extracts the domain part of an email address.
func senderDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}
