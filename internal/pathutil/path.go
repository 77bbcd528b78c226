// Package pathutil canonicalizes the logical paths documents live at so that
// storage backends never see two different spellings of the same path.
package pathutil

import "strings"

// Normalize trims surrounding whitespace, strips leading/trailing slashes,
// and collapses runs of consecutive slashes into one. The result never
// starts or ends with '/'. Normalize is idempotent.
func Normalize(p string) string {
	p = strings.TrimSpace(p)
	p = strings.Trim(p, "/")

	var b strings.Builder
	b.Grow(len(p))
	lastWasSlash := false
	for _, r := range p {
		if r == '/' {
			if lastWasSlash {
				continue
			}
			lastWasSlash = true
		} else {
			lastWasSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeDirectory normalizes p and strips any residual trailing slash.
// The root directory canonicalizes to the empty string.
func NormalizeDirectory(p string) string {
	return strings.TrimRight(Normalize(p), "/")
}
