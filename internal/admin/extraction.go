package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inkwell/core/internal/llmqueue"
	"github.com/inkwell/core/internal/store"
)

// extractedTask/extractedEvent mirror the JSON shape the extraction
// prompt asks the LLM to return (§4.5.3).
type extractedTask struct {
	Title   string  `json:"title"`
	DueDate *string `json:"due_date"`
}

type extractedEvent struct {
	Title     string  `json:"title"`
	StartTime *string `json:"start_time"`
	EndTime   *string `json:"end_time"`
	Frequency *string `json:"frequency"`
}

type extractedItems struct {
	Tasks  []extractedTask  `json:"tasks"`
	Events []extractedEvent `json:"events"`
}

// stripCodeFences removes a leading/trailing markdown code fence
// (``` or ```json) an LLM commonly wraps JSON output in, before
// parsing.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// extractItems asks the LLM to find tasks/events in text, at ADMIN
// priority. Any failure — queue error, context cancellation, invalid
// JSON, or a non-object top level — yields the zero value (empty
// lists), per §4.5.3's "on any parse failure return empty lists".
func extractItems(ctx context.Context, queue *llmqueue.Queue, model, text string) extractedItems {
	resultCh := queue.Submit(llmqueue.Request{
		Priority: llmqueue.PriorityAdmin,
		Prompt:   fmt.Sprintf(extractionPromptTemplate, text),
		Model:    model,
	})

	var raw string
	select {
	case result := <-resultCh:
		if result.Err != nil {
			return extractedItems{}
		}
		raw = result.Text
	case <-ctx.Done():
		return extractedItems{}
	}

	var items extractedItems
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &items); err != nil {
		return extractedItems{}
	}
	return items
}

// applyExtractedItems creates each extracted task/event via the
// shared stores and returns a human-readable summary line per item
// created. Items missing a required field (title, or start_time for
// events) are silently skipped, matching the original's behavior.
func applyExtractedItems(tasks *store.Tasks, events *store.Events, items extractedItems) []string {
	var created []string

	for _, t := range items.Tasks {
		title := strings.TrimSpace(t.Title)
		if title == "" {
			continue
		}
		task, err := tasks.Create(title, t.DueDate)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("Created task #%d: %s", task.ID, title)
		if t.DueDate != nil && *t.DueDate != "" {
			line += fmt.Sprintf(" (due %s)", *t.DueDate)
		}
		created = append(created, line)
	}

	for _, e := range items.Events {
		title := strings.TrimSpace(e.Title)
		if title == "" || e.StartTime == nil || *e.StartTime == "" {
			continue
		}
		var rule *store.RecurrenceRule
		if e.Frequency != nil && *e.Frequency != "" {
			rule = &store.RecurrenceRule{Frequency: store.RecurrenceFrequency(*e.Frequency), Interval: 1}
		}
		ev, err := events.Create(title, *e.StartTime, e.EndTime, nil, nil, rule)
		if err != nil {
			continue
		}
		line := fmt.Sprintf("Created event #%d: %s at %s", ev.ID, title, *e.StartTime)
		if e.Frequency != nil && *e.Frequency != "" {
			line += fmt.Sprintf(" (%s)", *e.Frequency)
		}
		created = append(created, line)
	}

	return created
}
