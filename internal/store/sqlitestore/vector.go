package sqlitestore

import (
	"context"
	"fmt"
	"math"

	"github.com/coder/hnsw"

	"github.com/duskvault/memengine/internal/store"
)

// scopeGraph is one scope's approximate nearest-neighbor index plus the
// bookkeeping needed to map chunk IDs to the uint64 keys coder/hnsw wants.
type scopeGraph struct {
	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64 // chunk ID -> graph key
	keyMap  map[uint64]chunkRef
	nextKey uint64
}

type chunkRef struct {
	chunkID    string
	documentID string
	chunkIndex int
}

func newScopeGraph() *scopeGraph {
	g := hnsw.NewGraph[uint64]()
	g.Distance = hnsw.CosineDistance
	g.M = 16
	g.EfSearch = 20
	g.Ml = 0.25
	return &scopeGraph{
		graph:  g,
		idMap:  make(map[string]uint64),
		keyMap: make(map[uint64]chunkRef),
	}
}

func (g *scopeGraph) upsert(ref chunkRef, vec []float32) {
	if existing, ok := g.idMap[ref.chunkID]; ok {
		// Lazy delete: orphan the old key rather than mutating the graph,
		// mirroring coder/hnsw's documented caveat around deleting nodes.
		delete(g.keyMap, existing)
		delete(g.idMap, ref.chunkID)
	}
	key := g.nextKey
	g.nextKey++

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	g.graph.Add(hnsw.MakeNode(key, normalized))
	g.idMap[ref.chunkID] = key
	g.keyMap[key] = ref
}

func (g *scopeGraph) remove(chunkID string) {
	if key, ok := g.idMap[chunkID]; ok {
		delete(g.keyMap, key)
		delete(g.idMap, chunkID)
	}
}

func (b *Backend) graphFor(key string) *scopeGraph {
	g, ok := b.graphs[key]
	if !ok {
		g = newScopeGraph()
		b.graphs[key] = g
	}
	return g
}

// upsertVector adds or replaces a chunk's embedding in both its own
// scope's graph and, when the chunk belongs to a shared (nil AgentID)
// document, nothing further is needed: VectorSearch merges shared and
// agent-specific graphs at query time.
func (b *Backend) upsertVector(scope store.Scope, ref chunkRef, vec []float32) {
	b.graphFor(scopeKey(scope)).upsert(ref, vec)
}

func (b *Backend) removeVector(scope store.Scope, chunkID string) {
	if g, ok := b.graphs[scopeKey(scope)]; ok {
		g.remove(chunkID)
	}
}

// VectorSearch ranks chunks in scope by cosine similarity to queryVector.
// When scope.AgentID is set, both the agent's own graph and the shared
// (nil AgentID) graph are searched and merged, since shared documents are
// visible to every agent acting for the user.
func (b *Backend) VectorSearch(ctx context.Context, scope store.Scope, queryVector []float32, limit int) ([]store.VectorResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("sqlitestore: backend is closed")
	}
	if len(queryVector) != b.dimensions {
		return nil, store.ErrDimensionMismatch{Expected: b.dimensions, Got: len(queryVector)}
	}

	normalized := make([]float32, len(queryVector))
	copy(normalized, queryVector)
	normalizeVectorInPlace(normalized)

	keys := []string{scopeKey(scope)}
	if scope.AgentID != nil {
		shared := store.Scope{UserID: scope.UserID}
		keys = append(keys, scopeKey(shared))
	}

	var results []store.VectorResult
	seen := make(map[string]struct{})
	for _, key := range keys {
		g, ok := b.graphs[key]
		if !ok || g.graph.Len() == 0 {
			continue
		}
		for _, node := range g.graph.Search(normalized, limit) {
			ref, ok := g.keyMap[node.Key]
			if !ok {
				continue
			}
			if _, dup := seen[ref.chunkID]; dup {
				continue
			}
			seen[ref.chunkID] = struct{}{}
			distance := g.graph.Distance(normalized, node.Value)
			results = append(results, store.VectorResult{
				ChunkID:    ref.chunkID,
				DocumentID: ref.documentID,
				ChunkIndex: ref.chunkIndex,
				Score:      1.0 - float64(distance)/2.0,
			})
		}
	}

	sortVectorResults(results)
	if len(results) > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []store.VectorResult{}
	}
	return results, nil
}

func sortVectorResults(results []store.VectorResult) {
	// insertion sort: result sets from a single scope search are small and
	// already near-sorted, and we merge at most two scopes.
	for i := 1; i < len(results); i++ {
		for j := i; j > 0 && results[j].Score > results[j-1].Score; j-- {
			results[j], results[j-1] = results[j-1], results[j]
		}
	}
}

func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}
