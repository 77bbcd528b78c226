package workspace

import _ "embed"

// Canonical file templates, embedded at build time so they are available in
// every distribution of this module. SeedIfEmpty writes each one the
// first time its path is absent; heartbeatTemplate is also returned
// in-memory by HeartbeatChecklist when HEARTBEAT.md has never been
// created, without ever persisting it on that read path.

//go:embed templates/README.md
var readmeTemplate string

//go:embed templates/MEMORY.md
var memoryTemplate string

//go:embed templates/IDENTITY.md
var identityTemplate string

//go:embed templates/SOUL.md
var soulTemplate string

// agentsTemplate is the AGENTS.md seed; unlike the other templates it is
// kept inline here rather than as a file under templates/.
var agentsTemplate = `# AGENTS.md - How to Work

Behavior instructions for the agent in this workspace.

1. Read SOUL.md, USER.md and IDENTITY.md at the start of a session.
2. Check today's and yesterday's notes under daily/.
3. Record anything worth keeping in MEMORY.md.
`

//go:embed templates/USER.md
var userTemplate string

//go:embed templates/TOOLS.md
var toolsTemplate string

//go:embed templates/BOOT.md
var bootTemplate string

//go:embed templates/BOOTSTRAP.md
var bootstrapTemplate string

//go:embed templates/HEARTBEAT.md
var heartbeatTemplate string

// seedTemplates lists every canonical file SeedIfEmpty creates, in the
// order SeedIfEmpty's doc comment names them.
var seedTemplates = []struct {
	path     string
	template string
}{
	{PathREADME, readmeTemplate},
	{PathMEMORY, memoryTemplate},
	{PathIDENTITY, identityTemplate},
	{PathSOUL, soulTemplate},
	{PathAGENTS, agentsTemplate},
	{PathUSER, userTemplate},
	{PathTOOLS, toolsTemplate},
	{PathBOOT, bootTemplate},
	{PathBOOTSTRAP, bootstrapTemplate},
	{PathHEARTBEAT, heartbeatTemplate},
}
