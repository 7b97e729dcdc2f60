package dispatcher

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/llmqueue"
	"github.com/inkwell/core/internal/notestore"
	"github.com/inkwell/core/internal/store"
)

type echoCapability struct{}

func (echoCapability) Chat(ctx context.Context, prompt, model, system string) (string, error) {
	return "reply to: " + prompt, nil
}

func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "core.db")
	db, err := store.Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	notesRoot := t.TempDir()
	queue := llmqueue.New(echoCapability{}, 1)
	t.Cleanup(queue.Stop)

	factory := func(agentID string) (*notestore.Store, error) {
		root, err := notestore.AgentRoot(notesRoot, agentID)
		if err != nil {
			return nil, err
		}
		return notestore.New(root)
	}

	return New(store.NewTasks(db), store.NewEvents(db), store.NewArticles(db), store.NewSettings(db), queue, factory)
}

func serviceRequest(sender, service, action string, params map[string]any) envelope.Envelope {
	return envelope.New(envelope.TypeServiceRequest, sender, "core", map[string]any{
		"service": service,
		"action":  action,
		"params":  params,
	})
}

func TestDispatchTasksCreateAndList(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	req := serviceRequest("notes-0", "tasks", "create", map[string]any{"title": "buy milk"})
	resp := d.Handle(ctx, req)
	assert.Equal(t, envelope.TypeServiceResponse, resp.Type)
	result, ok := resp.Payload["result"].(store.Task)
	require.True(t, ok)
	assert.Equal(t, "buy milk", result.Title)

	listReq := serviceRequest("notes-0", "tasks", "list", nil)
	listResp := d.Handle(ctx, listReq)
	tasks, ok := listResp.Payload["result"].([]store.Task)
	require.True(t, ok)
	assert.Len(t, tasks, 1)
}

func TestDispatchUnknownServiceReturnsServiceError(t *testing.T) {
	d := newTestDispatcher(t)
	req := serviceRequest("notes-0", "bogus", "whatever", nil)
	resp := d.Handle(context.Background(), req)
	assert.Equal(t, envelope.TypeServiceError, resp.Type)
	errMsg, ok := resp.Payload["error"].(string)
	require.True(t, ok)
	assert.Contains(t, errMsg, "unknown service")
}

func TestDispatchUnknownActionReturnsError(t *testing.T) {
	d := newTestDispatcher(t)
	req := serviceRequest("notes-0", "tasks", "bogus", nil)
	resp := d.Handle(context.Background(), req)
	assert.Equal(t, envelope.TypeServiceError, resp.Type)
	errMsg, ok := resp.Payload["error"].(string)
	require.True(t, ok)
	assert.Contains(t, errMsg, "unknown tasks action")
}

func TestDispatchStorageIsNamespacedPerAgent(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_ = d.Handle(ctx, serviceRequest("notes-0", "storage", "save_raw_input", map[string]any{"source": "cli", "text": "agent zero's note"}))
	_ = d.Handle(ctx, serviceRequest("notes-1", "storage", "save_raw_input", map[string]any{"source": "cli", "text": "agent one's note"}))

	resp0 := d.Handle(ctx, serviceRequest("notes-0", "storage", "parse_buffer", nil))
	entries0, ok := resp0.Payload["result"].([]notestore.NoteLogEntry)
	require.True(t, ok)
	require.Len(t, entries0, 1)
	assert.Equal(t, "agent zero's note", entries0[0].Text)

	resp1 := d.Handle(ctx, serviceRequest("notes-1", "storage", "parse_buffer", nil))
	entries1, ok := resp1.Payload["result"].([]notestore.NoteLogEntry)
	require.True(t, ok)
	require.Len(t, entries1, 1)
	assert.Equal(t, "agent one's note", entries1[0].Text)
}

func TestDispatchStorageRequiresRequester(t *testing.T) {
	d := newTestDispatcher(t)
	req := serviceRequest("", "storage", "parse_buffer", nil)
	resp := d.Handle(context.Background(), req)
	errMsg, ok := resp.Payload["error"].(string)
	require.True(t, ok)
	assert.Contains(t, errMsg, "requesting agent id")
}

func TestDispatchSettingsGetSetDefaults(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	resp := d.Handle(ctx, serviceRequest("admin-0", "settings", "get", map[string]any{"key": "agency_mode"}))
	assert.Equal(t, "suggest", resp.Payload["result"])

	_ = d.Handle(ctx, serviceRequest("admin-0", "settings", "set", map[string]any{"key": "agency_mode", "value": "off"}))
	resp = d.Handle(ctx, serviceRequest("admin-0", "settings", "get", map[string]any{"key": "agency_mode"}))
	assert.Equal(t, "off", resp.Payload["result"])
}

func TestDispatchLLMChatResolvesModelAndInvokesCapability(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	req := serviceRequest("notes-0", "llm", "chat", map[string]any{"prompt": "summarize my week"})
	resp := d.Handle(ctx, req)
	require.Equal(t, envelope.TypeServiceResponse, resp.Type)
	result, ok := resp.Payload["result"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "reply to: summarize my week", result["text"])
}

func TestDispatchEventsCreateStoresRecurrenceRule(t *testing.T) {
	d := newTestDispatcher(t)
	ctx := context.Background()

	_ = d.Handle(ctx, serviceRequest("notes-0", "events", "create", map[string]any{
		"title":      "standup",
		"start_time": "2026-01-01T09:00:00Z",
		"frequency":  "daily",
		"interval":   float64(1),
	}))

	resp := d.Handle(ctx, serviceRequest("notes-0", "events", "list", nil))
	events, ok := resp.Payload["result"].([]store.Event)
	require.True(t, ok)
	require.Len(t, events, 1)
	require.NotNil(t, events[0].Rule)
	assert.Equal(t, store.FrequencyDaily, events[0].Rule.Frequency)
}
