package sqlitestore

import (
	"github.com/duskvault/memengine/internal/store"
)

// scopeKey is the in-memory identity of a scope, used as a map key for the
// per-scope vector graphs. Two scopes with the same UserID but different
// AgentID get separate graphs; shared (nil AgentID) documents live in
// their own scope and are merged into matches at query time.
func scopeKey(scope store.Scope) string {
	if scope.AgentID == nil {
		return scope.UserID + "|"
	}
	return scope.UserID + "|" + scope.AgentID.String()
}

// scopeFilterSQL returns the WHERE clause fragment and its bind arguments
// that restrict a documents/chunks join to the given scope. A document is
// in scope if it belongs to the same user and is either unscoped to any
// agent (shared) or scoped to the requesting agent.
func scopeFilterSQL(scope store.Scope) (clause string, args []any) {
	if scope.AgentID == nil {
		return "d.user_id = ? AND d.agent_id IS NULL", []any{scope.UserID}
	}
	return "d.user_id = ? AND (d.agent_id IS NULL OR d.agent_id = ?)",
		[]any{scope.UserID, scope.AgentID.String()}
}
