package sqlitestore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenizeProse_SplitsOnWhitespace(t *testing.T) {
	tokens := TokenizeProse("hello world")
	require.Len(t, tokens, 2)
	assert.Equal(t, "hello", tokens[0])
	assert.Equal(t, "world", tokens[1])
}

func TestTokenizeProse_SplitsOnPunctuation(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "sentence punctuation",
			input:  "Hello, world! How are you?",
			expect: []string{"hello", "world", "how", "are", "you"},
		},
		{
			name:   "parenthetical",
			input:  "the fox (quick) jumps",
			expect: []string{"the", "fox", "quick", "jumps"},
		},
		{
			name:   "markdown list marker",
			input:  "- buy milk",
			expect: []string{"buy", "milk"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeProse(tt.input))
		})
	}
}

func TestTokenizeProse_KeepsContractions(t *testing.T) {
	tokens := TokenizeProse("don't forget it's done")
	assert.Equal(t, []string{"don't", "forget", "it's", "done"}, tokens)
}

func TestTokenizeProse_LowercasesTokens(t *testing.T) {
	tokens := TokenizeProse("The Quick Brown Fox")
	assert.Equal(t, []string{"the", "quick", "brown", "fox"}, tokens)
}

func TestTokenizeProse_FiltersSingleCharTokens(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect []string
	}{
		{
			name:   "filters single letters",
			input:  "a fox in a den",
			expect: []string{"fox", "in", "den"},
		},
		{
			name:   "keeps two-char tokens",
			input:  "go is ok",
			expect: []string{"go", "is", "ok"},
		},
		{
			name:   "handles numbers",
			input:  "day 1 of 30",
			expect: []string{"day", "of", "30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, TokenizeProse(tt.input))
		})
	}
}

func TestTokenizeProse_Empty(t *testing.T) {
	assert.Equal(t, []string{}, TokenizeProse(""))
	assert.Equal(t, []string{}, TokenizeProse("   "))
}

func TestFilterStopWords(t *testing.T) {
	tokens := []string{"the", "quick", "fox", "jumps", "over", "it"}
	stopWords := map[string]struct{}{
		"the": {}, "over": {}, "it": {},
	}

	result := FilterStopWords(tokens, stopWords)
	assert.Equal(t, []string{"quick", "fox", "jumps"}, result)
}

func TestBuildStopWordMap(t *testing.T) {
	m := BuildStopWordMap([]string{"The", "Quick"})
	_, hasThe := m["the"]
	_, hasQuick := m["quick"]
	assert.True(t, hasThe)
	assert.True(t, hasQuick)
}

func BenchmarkTokenizeProse(b *testing.B) {
	input := "the quick brown fox jumps over the lazy dog, again and again"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TokenizeProse(input)
	}
}
