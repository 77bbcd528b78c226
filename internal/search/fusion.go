// Package search implements hybrid retrieval: it combines a lexical
// ranking and a vector ranking of chunks using Reciprocal Rank Fusion.
package search

import (
	"sort"

	"github.com/duskvault/memengine/internal/store"
)

// DefaultRRFK is the standard RRF smoothing constant, empirically stable
// across lexical/vector fusion setups.
const DefaultRRFK = 60

const (
	// DefaultLimit is the default number of fused results returned.
	DefaultLimit = 10
	// DefaultLexicalWeight is the default weight applied to lexical ranks.
	DefaultLexicalWeight = 1.0
	// DefaultVectorWeight is the default weight applied to vector ranks.
	DefaultVectorWeight = 1.0
	// DefaultMinScore is the default minimum fused score a result must
	// clear to be returned (0 means no floor).
	DefaultMinScore = 0.0
)

// Config controls a hybrid search call.
type Config struct {
	Limit         int
	RRFK          int
	LexicalWeight float64
	VectorWeight  float64
	MinScore      float64
}

// DefaultConfig returns the recommended search defaults.
func DefaultConfig() Config {
	return Config{
		Limit:         DefaultLimit,
		RRFK:          DefaultRRFK,
		LexicalWeight: DefaultLexicalWeight,
		VectorWeight:  DefaultVectorWeight,
		MinScore:      DefaultMinScore,
	}
}

func (c Config) withDefaults() Config {
	out := c
	if out.Limit <= 0 {
		out.Limit = DefaultLimit
	}
	if out.RRFK <= 0 {
		out.RRFK = DefaultRRFK
	}
	if out.LexicalWeight == 0 {
		out.LexicalWeight = DefaultLexicalWeight
	}
	if out.VectorWeight == 0 {
		out.VectorWeight = DefaultVectorWeight
	}
	return out
}

// Result is a single chunk after RRF fusion of the lexical and vector
// rankings.
type Result struct {
	ChunkID      string
	DocumentID   string
	ChunkIndex   int
	Score        float64
	LexicalScore float64
	LexicalRank  int // 1-indexed, 0 if absent from the lexical ranking
	VectorScore  float64
	VectorRank   int // 1-indexed, 0 if absent from the vector ranking
	InBothLists  bool
}

// Fuse combines a lexical ranking and a vector ranking of chunks into a
// single ordered list using Reciprocal Rank Fusion:
//
//	score(c) = Σ weight_i / (k + rank_i(c))
//
// A chunk missing from one of the two rankings simply contributes no term
// for that ranking. Results are sorted by score (desc), then by
// (document_id, chunk_index) ascending for a fully deterministic order,
// filtered by cfg.MinScore, then truncated to cfg.Limit.
func Fuse(lexical []store.LexicalResult, vector []store.VectorResult, cfg Config) []Result {
	cfg = cfg.withDefaults()

	if len(lexical) == 0 && len(vector) == 0 {
		return []Result{}
	}

	byChunk := make(map[string]*Result, len(lexical)+len(vector))

	getOrCreate := func(chunkID, docID string, chunkIndex int) *Result {
		r, ok := byChunk[chunkID]
		if !ok {
			r = &Result{ChunkID: chunkID, DocumentID: docID, ChunkIndex: chunkIndex}
			byChunk[chunkID] = r
		}
		return r
	}

	for i, lr := range lexical {
		rank := i + 1
		r := getOrCreate(lr.ChunkID, lr.DocumentID, lr.ChunkIndex)
		r.LexicalScore = lr.Score
		r.LexicalRank = rank
		r.Score += cfg.LexicalWeight / float64(cfg.RRFK+rank)
	}

	for i, vr := range vector {
		rank := i + 1
		r := getOrCreate(vr.ChunkID, vr.DocumentID, vr.ChunkIndex)
		r.VectorScore = vr.Score
		r.VectorRank = rank
		r.Score += cfg.VectorWeight / float64(cfg.RRFK+rank)
		if r.LexicalRank > 0 {
			r.InBothLists = true
		}
	}

	results := make([]Result, 0, len(byChunk))
	for _, r := range byChunk {
		if r.Score >= cfg.MinScore {
			results = append(results, *r)
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return less(results[i], results[j])
	})

	if len(results) > cfg.Limit {
		results = results[:cfg.Limit]
	}
	return results
}

// less orders a before b: higher score first, then ascending
// (document_id, chunk_index) as the deterministic tie-break.
func less(a, b Result) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DocumentID != b.DocumentID {
		return a.DocumentID < b.DocumentID
	}
	return a.ChunkIndex < b.ChunkIndex
}
