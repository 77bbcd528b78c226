package sqlitestore

// defaultStopWords filters common English filler from chunk content
// before it reaches the FTS5 index, keeping lexical matches focused on
// the terms an agent actually searches for.
var defaultStopWords = []string{
	"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
	"and", "or", "but", "of", "to", "in", "on", "at", "for", "with",
	"this", "that", "these", "those", "it", "its", "as", "by", "from",
	"not", "no", "so", "such", "than", "then", "there", "too",
	"very", "can", "could", "will", "would", "should", "just", "also",
	"about", "into", "over", "under", "up", "down", "out", "if", "else",
}
