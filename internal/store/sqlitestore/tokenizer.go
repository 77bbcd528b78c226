package sqlitestore

import (
	"regexp"
	"strings"
)

// wordRegex matches runs of letters and digits, with a single internal
// apostrophe allowed so contractions ("don't", "it's") survive as one
// token instead of splitting at the quote.
var wordRegex = regexp.MustCompile(`[\p{L}\p{N}]+(?:'[\p{L}\p{N}]+)*`)

// TokenizeProse splits markdown prose into lowercased word tokens ahead
// of the FTS5 index, discarding single-character noise. FTS5's own
// tokenizer (see lexical.go) handles stemming; this pass only needs to
// agree with it on word boundaries before stop-word filtering runs.
func TokenizeProse(text string) []string {
	words := wordRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		lower := strings.ToLower(word)
		if len(lower) >= 2 {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// FilterStopWords removes stop words from a token list.
func FilterStopWords(tokens []string, stopWords map[string]struct{}) []string {
	result := make([]string, 0, len(tokens))
	for _, token := range tokens {
		lower := strings.ToLower(token)
		if _, isStop := stopWords[lower]; !isStop {
			result = append(result, token)
		}
	}
	return result
}

// BuildStopWordMap converts a slice of stop words to a map for efficient lookup.
func BuildStopWordMap(stopWords []string) map[string]struct{} {
	m := make(map[string]struct{}, len(stopWords))
	for _, word := range stopWords {
		m[strings.ToLower(word)] = struct{}{}
	}
	return m
}
