package pgstore

import (
	"sort"
	"strings"

	"github.com/duskvault/memengine/internal/store"
)

// listImmediateChildren derives the files and synthetic directories that
// sit directly under dirPath from a flat list of document paths.
func listImmediateChildren(paths []string, dirPath string) []store.WorkspaceEntry {
	dirPath = strings.Trim(dirPath, "/")
	prefix := ""
	if dirPath != "" {
		prefix = dirPath + "/"
	}

	seen := make(map[string]store.EntryKind)
	for _, p := range paths {
		if prefix != "" && !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		if rest == "" {
			continue
		}
		if idx := strings.Index(rest, "/"); idx >= 0 {
			seen[prefix+rest[:idx]] = store.EntryKindDirectory
		} else {
			seen[p] = store.EntryKindFile
		}
	}

	entries := make([]store.WorkspaceEntry, 0, len(seen))
	for path, kind := range seen {
		entries = append(entries, store.WorkspaceEntry{Path: path, Kind: kind})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries
}
