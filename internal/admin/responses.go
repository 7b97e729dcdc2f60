package admin

import "github.com/inkwell/core/internal/envelope"

// respondText, respondTable, etc. build the structured response
// payloads §4.5.2 defines. Admin's own handlers are the only
// producers in this core, but the shapes are part of the protocol —
// any agent may use the same `{type, content}` envelope.

func respondText(orig envelope.Envelope, agentID, text, format string) envelope.Envelope {
	if format == "" {
		format = "plain"
	}
	return envelope.Reply(orig, agentID, map[string]any{
		"type": "text",
		"content": map[string]any{
			"text":   text,
			"format": format,
		},
	})
}

func respondTable(orig envelope.Envelope, agentID string, columns []string, rows [][]string, title string) envelope.Envelope {
	return envelope.Reply(orig, agentID, map[string]any{
		"type": "table",
		"content": map[string]any{
			"columns": columns,
			"rows":    rows,
			"title":   title,
		},
	})
}

func respondList(orig envelope.Envelope, agentID string, items []string, title string) envelope.Envelope {
	return envelope.Reply(orig, agentID, map[string]any{
		"type": "list",
		"content": map[string]any{
			"items": items,
			"title": title,
		},
	})
}

func respondError(orig envelope.Envelope, agentID, message string) envelope.Envelope {
	return envelope.Reply(orig, agentID, map[string]any{
		"type": "error",
		"content": map[string]any{
			"message": message,
		},
	})
}
