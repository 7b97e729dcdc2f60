// Package admin implements the core's privileged, in-process default
// agent (§4.5): it parses commands that arrive with no decided owner,
// routes @mentions and agent-owned commands elsewhere, handles its own
// fixed command set, and falls back to LLM reflection (optionally
// followed by task/event extraction) for anything else.
//
// Grounded on the original_source admin/agent.py's routing priority
// and command handlers, re-expressed in the router's envelope/respond
// idiom instead of asyncio coroutines.
//
// Called by: router, for every command addressed to the admin's
// agent id or left unaddressed.
package admin

import "github.com/inkwell/core/internal/registry"

// Name is the admin agent's registration name; its agent_id becomes
// "admin-0" (barring restarts within a process lifetime, per the
// registry's per-name counter).
const Name = "admin"

// ownCommands is the set of command names this agent handles itself,
// used to distinguish "first token looks like a command" from
// "the whole text is free input" during normalization (§4.5).
var ownCommands = map[string]bool{
	"help":     true,
	"status":   true,
	"agents":   true,
	"tasks":    true,
	"events":   true,
	"settings": true,
	"set":      true,
}

// Manifest builds the registration payload the admin presents to the
// registry, advertising its command set and a single chat panel hint.
func Manifest() registry.Manifest {
	return registry.Manifest{
		Name:        Name,
		Description: "Default assistant",
		Commands: []registry.Command{
			{Name: "help", Description: "Show available commands"},
			{Name: "status", Description: "System status"},
			{Name: "agents", Description: "List connected agents"},
			{Name: "tasks", Description: "List tasks", Args: []string{"all"}},
			{Name: "events", Description: "List upcoming events", Args: []string{"days"}},
			{Name: "settings", Description: "Show settings"},
			{Name: "set", Description: "Change a setting", Args: []string{"key", "value"}},
		},
		Panels: []map[string]any{
			{"id": "chat", "label": "Admin", "type": "chat", "default": true},
		},
	}
}
