// Package router is the dispatch spine of the core (§4.4): it decides
// what to do with each envelope type, tracks pending commands so
// replies can find their way back to the right connection, and
// delegates service.request envelopes to the dispatcher.
//
// Grounded on the teacher's broker.Service.handleMessage switch-by-type
// dispatch, generalized from cellorg's fixed message set to this
// protocol's lifecycle/command/service/peer type vocabulary.
//
// Called by: transport, for every decoded envelope.
package router

import (
	"context"
	"log"
	"sync"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/registry"
)

// Dispatcher is the subset of dispatcher.Dispatcher the router needs:
// handling one service.request synchronously on the caller's (worker
// pool) goroutine.
type Dispatcher interface {
	Handle(ctx context.Context, req envelope.Envelope) envelope.Envelope
}

// AdminHandler is the in-process privileged agent. Responses are
// delivered through respond rather than returned directly, since the
// free-text path (§4.5.3) sends more than one reply over time — a
// reflection followed by an extraction summary.
type AdminHandler interface {
	AgentID() string
	Handle(ctx context.Context, cmd envelope.Envelope, conn registry.Conn, respond func(envelope.Envelope))
}

// pendingCommand is recorded for every command forwarded to a real
// (non-admin) agent connection, so a reply or a disconnect can be
// resolved back to the command's origin.
type pendingCommand struct {
	origin   registry.Conn
	targetID string
}

// Router is the core's single dispatch point. Handle is called from
// one goroutine per connection, and the admin agent calls
// ForwardCommand from its own goroutine, so the pending map is guarded
// by mu; the actual blocking work (dispatcher calls, admin's LLM round
// trips) runs on separate goroutines and reports back asynchronously.
type Router struct {
	registry   *registry.Registry
	dispatcher Dispatcher
	admin      AdminHandler

	mu      sync.Mutex
	pending map[string]pendingCommand
}

// New builds a Router. admin may be nil until SetAdmin is called,
// accommodating boot sequences that register the admin agent after
// constructing the router.
func New(reg *registry.Registry, dispatcher Dispatcher) *Router {
	return &Router{
		registry:   reg,
		dispatcher: dispatcher,
		pending:    make(map[string]pendingCommand),
	}
}

// SetAdmin wires the in-process admin handler, set once during boot.
func (r *Router) SetAdmin(admin AdminHandler) {
	r.admin = admin
}

// Handle implements transport.Handler: it is called once per decoded
// envelope, with the connection it arrived on.
func (r *Router) Handle(env envelope.Envelope, conn registry.Conn) {
	switch env.Type {
	case envelope.TypeAgentRegister:
		r.handleRegister(env, conn)
	case envelope.TypeAgentDisconnect:
		r.handleDisconnect(conn)
	case envelope.TypeAgentList:
		r.handleList(env, conn)
	case envelope.TypeCommand:
		r.handleCommand(env, conn)
	case envelope.TypeResponse:
		r.handleResponse(env)
	case envelope.TypeServiceRequest:
		r.handleServiceRequest(env, conn)
	case envelope.TypeAgentMessage:
		r.handlePeerMessage(env, conn)
	case envelope.TypeAgentBroadcast:
		r.handleBroadcast(env)
	case envelope.TypeResponseChunk, envelope.TypeResponseEnd:
		// Reserved streaming variants: forward like a response even
		// though nothing in this core produces or reassembles them.
		r.handleResponse(env)
	default:
		r.sendError(conn, "unknown message type: "+string(env.Type))
	}
}

func (r *Router) handleRegister(env envelope.Envelope, conn registry.Conn) {
	manifest := manifestFromPayload(env.Payload)
	entry := r.registry.Register(conn, manifest, false)
	reply := envelope.New(envelope.TypeAgentReady, "core", env.Sender, map[string]any{"agent_id": entry.AgentID})
	if err := conn.Send(reply); err != nil {
		log.Printf("router: send agent.ready failed: %v", err)
	}
}

func (r *Router) handleDisconnect(conn registry.Conn) {
	entry := r.registry.UnregisterByConn(conn)
	if entry == nil {
		return
	}
	r.purgePendingFor(entry.AgentID)
}

func (r *Router) handleList(env envelope.Envelope, conn registry.Conn) {
	catalog := r.registry.BuildCatalog()
	reply := envelope.New(envelope.TypeAgentCatalog, "core", env.Sender, map[string]any{"agents": catalog})
	if err := conn.Send(reply); err != nil {
		log.Printf("router: send agent.catalog failed: %v", err)
	}
}

func (r *Router) handleCommand(env envelope.Envelope, conn registry.Conn) {
	target := r.registry.GetByID(env.To)
	if target == nil {
		r.sendError(conn, "unknown agent: "+env.To)
		return
	}

	if target.Privileged && target.Connection == nil {
		if r.admin == nil {
			r.sendError(conn, "admin agent not available")
			return
		}
		go r.admin.Handle(context.Background(), env, conn, func(resp envelope.Envelope) {
			if err := conn.Send(resp); err != nil {
				log.Printf("router: send admin response failed: %v", err)
			}
		})
		return
	}

	r.ForwardCommand(env, conn)
}

// ForwardCommand sends env to the agent named by env.To, recording a
// pending entry so the eventual response is routed back to conn. It is
// exported so the admin agent can forward a command it decided (via
// @mention or find_command_owner) belongs to a different agent, reusing
// the same pending-tracking and disconnect-cleanup path as a
// router-dispatched command.
func (r *Router) ForwardCommand(env envelope.Envelope, conn registry.Conn) {
	target := r.registry.GetByID(env.To)
	if target == nil {
		r.sendError(conn, "unknown agent: "+env.To)
		return
	}
	if target.Connection == nil {
		r.sendError(conn, "agent has no connection: "+env.To)
		return
	}

	r.mu.Lock()
	r.pending[env.ID] = pendingCommand{origin: conn, targetID: target.AgentID}
	r.mu.Unlock()

	if err := target.Connection.Send(env); err != nil {
		r.mu.Lock()
		delete(r.pending, env.ID)
		r.mu.Unlock()

		r.registry.UnregisterByConn(target.Connection)
		r.purgePendingFor(target.AgentID)
		r.sendError(conn, "agent disconnected: "+target.AgentID)
	}
}

func (r *Router) handleResponse(env envelope.Envelope) {
	r.mu.Lock()
	pc, ok := r.pending[env.ReplyTo]
	if ok {
		delete(r.pending, env.ReplyTo)
	}
	r.mu.Unlock()

	if !ok {
		log.Printf("router: dropping response with no matching pending command: reply_to=%s", env.ReplyTo)
		return
	}
	if err := pc.origin.Send(env); err != nil {
		log.Printf("router: forward response failed: %v", err)
	}
}

func (r *Router) handleServiceRequest(env envelope.Envelope, conn registry.Conn) {
	go func() {
		resp := r.dispatcher.Handle(context.Background(), env)
		if err := conn.Send(resp); err != nil {
			log.Printf("router: send service response failed: %v", err)
		}
	}()
}

func (r *Router) handlePeerMessage(env envelope.Envelope, conn registry.Conn) {
	target := r.registry.GetByID(env.To)
	if target == nil {
		r.sendError(conn, "unknown agent: "+env.To)
		return
	}
	if target.Connection == nil {
		return // privileged in-process agent has no mailbox of its own for peer messages.
	}
	if err := target.Connection.Send(env); err != nil {
		log.Printf("router: forward agent.message failed: %v", err)
	}
}

func (r *Router) handleBroadcast(env envelope.Envelope) {
	for _, entry := range r.registry.AllAgents() {
		if entry.Name == env.Sender || entry.AgentID == env.Sender {
			continue
		}
		if entry.Connection == nil {
			if entry.Privileged && r.admin != nil {
				go r.admin.Handle(context.Background(), env, nil, func(envelope.Envelope) {})
			}
			continue
		}
		if err := entry.Connection.Send(env); err != nil {
			log.Printf("router: broadcast to %s failed: %v", entry.AgentID, err)
		}
	}
}

// purgePendingFor removes every pending command targeting agentID and
// responds `error` to each origin, per §4.4's disconnect cascade.
func (r *Router) purgePendingFor(agentID string) {
	r.mu.Lock()
	var stale []pendingCommand
	for id, pc := range r.pending {
		if pc.targetID == agentID {
			stale = append(stale, pc)
			delete(r.pending, id)
		}
	}
	r.mu.Unlock()

	for _, pc := range stale {
		r.sendError(pc.origin, "agent disconnected")
	}
}

func (r *Router) sendError(conn registry.Conn, reason string) {
	if conn == nil {
		return
	}
	if err := conn.Send(envelope.ErrorEnvelope("unknown", reason)); err != nil {
		log.Printf("router: send error envelope failed: %v", err)
	}
}

func manifestFromPayload(payload map[string]any) registry.Manifest {
	m := registry.Manifest{}
	if name, ok := payload["name"].(string); ok {
		m.Name = name
	}
	if desc, ok := payload["description"].(string); ok {
		m.Description = desc
	}
	if raw, ok := payload["commands"].([]any); ok {
		for _, item := range raw {
			switch v := item.(type) {
			case string:
				m.Commands = append(m.Commands, registry.Command{Name: v})
			case map[string]any:
				cmd := registry.Command{}
				cmd.Name, _ = v["name"].(string)
				cmd.Description, _ = v["description"].(string)
				if args, ok := v["args"].([]any); ok {
					for _, a := range args {
						if s, ok := a.(string); ok {
							cmd.Args = append(cmd.Args, s)
						}
					}
				}
				if cmd.Name != "" {
					m.Commands = append(m.Commands, cmd)
				}
			}
		}
	}
	if raw, ok := payload["panels"].([]any); ok {
		for _, item := range raw {
			if p, ok := item.(map[string]any); ok {
				m.Panels = append(m.Panels, p)
			}
		}
	}
	return m
}
