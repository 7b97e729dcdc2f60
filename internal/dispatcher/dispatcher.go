// Package dispatcher translates service.request envelopes (§4.3) into
// calls against the shared stores and the LLM queue, replying with
// service.response or service.error. It is the core's only component
// that touches both the SQLite-backed stores and the per-agent
// filesystem note trees.
//
// Grounded on the teacher's action-table dispatch style (a map from
// string tag to handler func), adapted here to thread (service,
// action, params) through a nested lookup instead of cellorg's
// single-level message-type switch.
//
// Called by: router, for every envelope of type service.request.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/llmqueue"
	"github.com/inkwell/core/internal/notestore"
	"github.com/inkwell/core/internal/store"
)

// NoteStoreFactory returns the Store for a given agent id, creating
// its on-disk tree on first use. Bound to notestore.AgentRoot +
// notestore.New by the wiring in cmd/core.
type NoteStoreFactory func(agentID string) (*notestore.Store, error)

// Dispatcher owns every storage-backed service the core exposes over
// service.request.
type Dispatcher struct {
	tasks    *store.Tasks
	events   *store.Events
	articles *store.Articles
	settings *store.Settings
	queue    *llmqueue.Queue
	notes    NoteStoreFactory

	noteStoresMu sync.Mutex
	noteStores   map[string]*notestore.Store
}

// New builds a Dispatcher over the given stores, LLM queue, and
// per-agent note store factory.
func New(tasks *store.Tasks, events *store.Events, articles *store.Articles, settings *store.Settings, queue *llmqueue.Queue, notes NoteStoreFactory) *Dispatcher {
	return &Dispatcher{
		tasks: tasks, events: events, articles: articles, settings: settings,
		queue: queue, notes: notes,
		noteStores: make(map[string]*notestore.Store),
	}
}

// Handle executes one service.request envelope synchronously (the
// caller is expected to run this on a worker-pool goroutine per §4.3's
// "never blocks the event loop" execution model) and returns the
// response envelope to send back — service.response on success,
// service.error on failure.
func (d *Dispatcher) Handle(ctx context.Context, req envelope.Envelope) envelope.Envelope {
	service, _ := req.Payload["service"].(string)
	action, _ := req.Payload["action"].(string)
	params, _ := req.Payload["params"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}

	result, err := d.dispatch(ctx, req.Sender, service, action, params)
	if err != nil {
		errResp := envelope.Reply(req, "core", map[string]any{"error": err.Error()})
		errResp.Type = envelope.TypeServiceError
		return errResp
	}
	resp := envelope.Reply(req, "core", map[string]any{"result": result})
	resp.Type = envelope.TypeServiceResponse
	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, requester, service, action string, params map[string]any) (any, error) {
	switch service {
	case "tasks":
		return d.dispatchTasks(action, params)
	case "events":
		return d.dispatchEvents(action, params)
	case "articles":
		return d.dispatchArticles(action, params)
	case "settings":
		return d.dispatchSettings(action, params)
	case "storage":
		return d.dispatchStorage(requester, action, params)
	case "llm":
		return d.dispatchLLM(ctx, requester, action, params)
	default:
		return nil, fmt.Errorf("unknown service: %s", service)
	}
}

func (d *Dispatcher) noteStoreFor(agentID string) (*notestore.Store, error) {
	d.noteStoresMu.Lock()
	defer d.noteStoresMu.Unlock()
	if s, ok := d.noteStores[agentID]; ok {
		return s, nil
	}
	s, err := d.notes(agentID)
	if err != nil {
		return nil, err
	}
	d.noteStores[agentID] = s
	return s, nil
}
