package workspace

import "github.com/duskvault/memengine/internal/pathutil"

// Canonical file paths. Stable identifiers, part of the public schema.
const (
	PathREADME    = "README.md"
	PathMEMORY    = "MEMORY.md"
	PathIDENTITY  = "IDENTITY.md"
	PathSOUL      = "SOUL.md"
	PathAGENTS    = "AGENTS.md"
	PathUSER      = "USER.md"
	PathTOOLS     = "TOOLS.md"
	PathBOOT      = "BOOT.md"
	PathBOOTSTRAP = "BOOTSTRAP.md"
	PathHEARTBEAT = "HEARTBEAT.md"
)

func normalizePath(path string) string      { return pathutil.Normalize(path) }
func normalizeDirectory(path string) string { return pathutil.NormalizeDirectory(path) }

// dailyLogPath returns the canonical daily/YYYY-MM-DD.md path for date.
func dailyLogPath(date string) string {
	return "daily/" + date + ".md"
}
