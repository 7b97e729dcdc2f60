package admin

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/inkwell/core/internal/notestore"
)

// loadPersona reads <notesDir>/<agentID>/config/persona.md, the
// agent-scoped persona file §4.5.3 specifies. A missing file is not
// an error — it falls back to defaultPersona, matching the teacher's
// "best effort, never block on optional config" style.
func loadPersona(notesDir, agentID string) string {
	root, err := notestore.AgentRoot(notesDir, agentID)
	if err != nil {
		return defaultPersona
	}
	data, err := os.ReadFile(filepath.Join(root, "config", "persona.md"))
	if err != nil {
		return defaultPersona
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return defaultPersona
	}
	return text
}
