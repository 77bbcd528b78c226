// Package chunk splits markdown document content into bounded, overlapping
// text chunks suitable for embedding and lexical indexing.
package chunk

import (
	"regexp"
	"strings"
)

// Default chunk sizing, tuned to stay comfortably inside a typical
// embedding model's input window while remaining large enough to be
// semantically coherent on its own.
const (
	DefaultMaxChunkChars = 1000
	DefaultOverlapChars  = 100
	DefaultMinChunkChars = 200
)

// Config controls how ChunkDocument splits content.
type Config struct {
	MaxChunkChars int
	OverlapChars  int
	MinChunkChars int
}

// DefaultConfig returns the recommended chunking defaults.
func DefaultConfig() Config {
	return Config{
		MaxChunkChars: DefaultMaxChunkChars,
		OverlapChars:  DefaultOverlapChars,
		MinChunkChars: DefaultMinChunkChars,
	}
}

// withDefaults replaces a non-positive MaxChunkChars with
// DefaultMaxChunkChars and clamps negative OverlapChars and MinChunkChars
// to zero. A zero OverlapChars or MinChunkChars is kept as is and turns
// off overlap or small-tail merging respectively.
func (c Config) withDefaults() Config {
	out := c
	if out.MaxChunkChars <= 0 {
		out.MaxChunkChars = DefaultMaxChunkChars
	}
	if out.OverlapChars < 0 {
		out.OverlapChars = 0
	}
	if out.MinChunkChars < 0 {
		out.MinChunkChars = 0
	}
	return out
}

var blankLinePattern = regexp.MustCompile(`\n[ \t]*\n+`)

// ChunkDocument splits content into an ordered list of chunks.
//
// It prefers to split at paragraph boundaries (blank lines), falling back
// to line boundaries for oversized paragraphs, and finally hard-cutting at
// cfg.MaxChunkChars for a single oversized line. Successive chunks overlap
// by up to cfg.OverlapChars characters so that context survives the split.
// Empty (or whitespace-only) content yields an empty list. The function is
// deterministic and never splits a chunk mid UTF-8 codepoint.
func ChunkDocument(content string, cfg Config) []string {
	cfg = cfg.withDefaults()

	paragraphs := splitParagraphs(content)
	if len(paragraphs) == 0 {
		return nil
	}

	chunks := pack(paragraphs, "\n\n", cfg.MaxChunkChars)
	chunks = resplitOversized(chunks, cfg)
	chunks = mergeSmallTail(chunks, cfg)
	chunks = applyOverlap(chunks, cfg.OverlapChars)

	return chunks
}

// splitParagraphs breaks content on blank-line boundaries, discarding
// leading/trailing whitespace around the document and around each
// paragraph while preserving single newlines within a paragraph.
func splitParagraphs(content string) []string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	raw := blankLinePattern.Split(trimmed, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.Trim(p, "\n")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// pack greedily joins units with sep into chunks no larger than maxChars,
// never splitting a unit that already fits on its own.
func pack(units []string, sep string, maxChars int) []string {
	if len(units) == 0 {
		return nil
	}

	var chunks []string
	var cur strings.Builder

	for _, u := range units {
		switch {
		case cur.Len() == 0:
			cur.WriteString(u)
		case cur.Len()+len(sep)+len(u) <= maxChars:
			cur.WriteString(sep)
			cur.WriteString(u)
		default:
			chunks = append(chunks, cur.String())
			cur.Reset()
			cur.WriteString(u)
		}
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// resplitOversized re-splits any chunk that is still larger than
// cfg.MaxChunkChars (a single paragraph bigger than the limit) at line
// boundaries, and falls back to a hard byte-offset cut for any line that is
// itself too large.
func resplitOversized(chunks []string, cfg Config) []string {
	out := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if len(c) <= cfg.MaxChunkChars {
			out = append(out, c)
			continue
		}

		lines := strings.Split(c, "\n")
		lineChunks := pack(lines, "\n", cfg.MaxChunkChars)
		for _, lc := range lineChunks {
			if len(lc) <= cfg.MaxChunkChars {
				out = append(out, lc)
				continue
			}
			out = append(out, hardCut(lc, cfg.MaxChunkChars)...)
		}
	}
	return out
}

// hardCut splits s into pieces of at most maxChars bytes, always landing on
// a UTF-8 rune boundary.
func hardCut(s string, maxChars int) []string {
	var out []string
	for len(s) > 0 {
		cut := floorCharBoundary(s, maxChars)
		if cut <= 0 {
			cut = len(s)
		}
		out = append(out, s[:cut])
		s = s[cut:]
	}
	return out
}

// mergeSmallTail folds an undersized final chunk into its predecessor when
// the merge still fits within cfg.MaxChunkChars, avoiding a trailing sliver
// chunk that carries little retrievable context on its own.
func mergeSmallTail(chunks []string, cfg Config) []string {
	if len(chunks) < 2 || cfg.MinChunkChars == 0 {
		return chunks
	}

	last := chunks[len(chunks)-1]
	if len(last) >= cfg.MinChunkChars {
		return chunks
	}

	prev := chunks[len(chunks)-2]
	if len(prev)+1+len(last) > cfg.MaxChunkChars {
		return chunks
	}

	merged := prev + "\n" + last
	out := make([]string, len(chunks)-1)
	copy(out, chunks[:len(chunks)-2])
	out[len(out)-1] = merged
	return out
}

// applyOverlap prepends up to overlapChars trailing characters of each
// chunk's predecessor, so adjacent chunks share context.
func applyOverlap(chunks []string, overlapChars int) []string {
	if overlapChars <= 0 || len(chunks) < 2 {
		return chunks
	}

	out := make([]string, len(chunks))
	out[0] = chunks[0]
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1]
		start := floorCharBoundary(prev, max(0, len(prev)-overlapChars))
		tail := prev[start:]
		if tail == "" {
			out[i] = chunks[i]
			continue
		}
		out[i] = tail + "\n" + chunks[i]
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
