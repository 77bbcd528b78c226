package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskvault/memengine/internal/store"
)

func TestFuse_EmptyInputsReturnEmptySlice(t *testing.T) {
	results := Fuse(nil, nil, DefaultConfig())
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestFuse_ExactRRFScoreArithmetic(t *testing.T) {
	lexical := []store.LexicalResult{
		{ChunkID: "a", DocumentID: "doc1", ChunkIndex: 0, Score: 1.5},
		{ChunkID: "b", DocumentID: "doc1", ChunkIndex: 1, Score: 1.0},
	}
	vector := []store.VectorResult{
		{ChunkID: "b", DocumentID: "doc1", ChunkIndex: 1, Score: 0.9},
		{ChunkID: "a", DocumentID: "doc1", ChunkIndex: 0, Score: 0.5},
	}

	cfg := Config{Limit: 10, RRFK: 60, LexicalWeight: 1.0, VectorWeight: 1.0}
	results := Fuse(lexical, vector, cfg)
	require.Len(t, results, 2)

	// a: lexical rank 1, vector rank 2 -> 1/61 + 1/62
	// b: lexical rank 2, vector rank 1 -> 1/62 + 1/61
	// Both chunks accumulate the same two terms, so scores tie; the
	// deterministic tie-break (document_id, chunk_index) then orders them.
	expected := 1.0/61.0 + 1.0/62.0
	for _, r := range results {
		assert.InDelta(t, expected, r.Score, 1e-9)
	}
	assert.Equal(t, "a", results[0].ChunkID)
	assert.Equal(t, "b", results[1].ChunkID)
	assert.True(t, results[0].InBothLists)
	assert.True(t, results[1].InBothLists)
}

func TestFuse_ChunkOnlyInOneListContributesSingleTerm(t *testing.T) {
	lexical := []store.LexicalResult{
		{ChunkID: "only-lexical", DocumentID: "doc1", ChunkIndex: 0, Score: 2.0},
	}
	results := Fuse(lexical, nil, DefaultConfig())
	require.Len(t, results, 1)
	assert.False(t, results[0].InBothLists)
	assert.Equal(t, 1, results[0].LexicalRank)
	assert.Equal(t, 0, results[0].VectorRank)
	assert.InDelta(t, 1.0/61.0, results[0].Score, 1e-9)
}

func TestFuse_DeterministicTieBreakByDocumentThenChunkIndex(t *testing.T) {
	lexical := []store.LexicalResult{
		{ChunkID: "x", DocumentID: "docB", ChunkIndex: 5, Score: 1.0},
		{ChunkID: "y", DocumentID: "docA", ChunkIndex: 9, Score: 1.0},
		{ChunkID: "z", DocumentID: "docA", ChunkIndex: 2, Score: 1.0},
	}
	results := Fuse(lexical, nil, DefaultConfig())
	require.Len(t, results, 3)
	assert.Equal(t, "z", results[0].ChunkID) // docA, index 2
	assert.Equal(t, "y", results[1].ChunkID) // docA, index 9
	assert.Equal(t, "x", results[2].ChunkID) // docB, index 5
}

func TestFuse_MinScoreFiltersLowRankedResults(t *testing.T) {
	lexical := make([]store.LexicalResult, 0, 5)
	for i := 0; i < 5; i++ {
		lexical = append(lexical, store.LexicalResult{
			ChunkID: string(rune('a' + i)), DocumentID: "doc1", ChunkIndex: i, Score: 1.0,
		})
	}
	cfg := DefaultConfig()
	cfg.MinScore = 1.0 / 61.0 // only rank 1 clears this
	results := Fuse(lexical, nil, cfg)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ChunkID)
}

func TestFuse_LimitTruncatesResults(t *testing.T) {
	lexical := make([]store.LexicalResult, 0, 20)
	for i := 0; i < 20; i++ {
		lexical = append(lexical, store.LexicalResult{
			ChunkID: string(rune('a' + i)), DocumentID: "doc1", ChunkIndex: i, Score: 1.0,
		})
	}
	cfg := DefaultConfig()
	cfg.Limit = 5
	results := Fuse(lexical, nil, cfg)
	assert.Len(t, results, 5)
}

func TestFuse_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	lexical := []store.LexicalResult{
		{ChunkID: "a", DocumentID: "doc1", ChunkIndex: 0, Score: 1.0},
		{ChunkID: "b", DocumentID: "doc2", ChunkIndex: 0, Score: 1.0},
	}
	vector := []store.VectorResult{
		{ChunkID: "b", DocumentID: "doc2", ChunkIndex: 0, Score: 0.8},
		{ChunkID: "a", DocumentID: "doc1", ChunkIndex: 0, Score: 0.7},
	}

	first := Fuse(lexical, vector, DefaultConfig())
	for i := 0; i < 10; i++ {
		again := Fuse(lexical, vector, DefaultConfig())
		assert.Equal(t, first, again)
	}
}

func TestFuse_WeightsScaleContribution(t *testing.T) {
	lexical := []store.LexicalResult{{ChunkID: "a", DocumentID: "doc1", ChunkIndex: 0, Score: 1.0}}
	cfg := Config{Limit: 10, RRFK: 60, LexicalWeight: 2.0, VectorWeight: 1.0}
	results := Fuse(lexical, nil, cfg)
	require.Len(t, results, 1)
	assert.InDelta(t, 2.0/61.0, results[0].Score, 1e-9)
}
