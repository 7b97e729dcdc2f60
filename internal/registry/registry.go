// Package registry tracks connected agents: assigning identifiers,
// mapping connections to agents, answering catalog queries, and
// locating which agent owns a given command name.
//
// Called by: router (register/unregister on lifecycle envelopes,
// find_command_owner/get_default_agent on command routing),
// admin (@mention lookup, command-owner routing, agent listings).
package registry

import (
	"strconv"
	"sync"

	"github.com/inkwell/core/internal/envelope"
)

// Command describes one entry in a manifest's command list. Name is
// the only field routing depends on; Description and Args are UI hints
// passed through opaquely.
type Command struct {
	Name        string
	Description string
	Args        []string
}

// Manifest is an agent's registration payload.
type Manifest struct {
	Name        string
	Description string
	Commands    []Command
	Panels      []map[string]any
}

// HasCommand reports whether name is in this manifest's command list.
func (m Manifest) HasCommand(name string) bool {
	for _, c := range m.Commands {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Conn is the minimal connection-handle surface the registry and
// router need: something addressable and comparable by identity.
// Transport implementations (Unix socket, WebSocket) satisfy this;
// the in-process admin agent has none, represented by a nil Conn.
type Conn interface {
	Send(env envelope.Envelope) error
	RemoteAddr() string
}

// AgentEntry is a connected agent's registry record. Connection is nil
// for the in-process admin agent. Seq is the entry's position in the
// registry's global registration order (not its per-name id counter),
// used to break find-command-owner ties by "first registration wins"
// regardless of name.
type AgentEntry struct {
	AgentID    string
	Name       string
	Manifest   Manifest
	Connection Conn
	Privileged bool
	Seq        int
}

// Registry holds all currently connected agents. The router reaches it
// from one goroutine per connection (and the admin agent from its own),
// so every method takes the internal mutex.
type Registry struct {
	mu       sync.RWMutex
	byID     map[string]*AgentEntry
	byConn   map[Conn]*AgentEntry
	counters map[string]int
	nextSeq  int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		byID:     make(map[string]*AgentEntry),
		byConn:   make(map[Conn]*AgentEntry),
		counters: make(map[string]int),
	}
}

// Register assigns a new agent id of the form "<name>-<n>", where n is
// a per-name counter starting at 0 and never decremented, and stores
// the resulting entry. conn may be nil for the in-process admin agent.
func (r *Registry) Register(conn Conn, manifest Manifest, privileged bool) *AgentEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.counters[manifest.Name]
	r.counters[manifest.Name] = n + 1

	seq := r.nextSeq
	r.nextSeq++

	entry := &AgentEntry{
		AgentID:    agentID(manifest.Name, n),
		Name:       manifest.Name,
		Manifest:   manifest,
		Connection: conn,
		Privileged: privileged,
		Seq:        seq,
	}

	r.byID[entry.AgentID] = entry
	if conn != nil {
		r.byConn[conn] = entry
	}
	return entry
}

func agentID(name string, n int) string {
	return name + "-" + strconv.Itoa(n)
}

// Unregister removes and returns the entry for agentID, or nil if
// absent.
func (r *Registry) Unregister(agentID string) *AgentEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byID[agentID]
	if !ok {
		return nil
	}
	delete(r.byID, agentID)
	if entry.Connection != nil {
		delete(r.byConn, entry.Connection)
	}
	return entry
}

// UnregisterByConn removes and returns the entry associated with conn,
// or nil if none is registered for it.
func (r *Registry) UnregisterByConn(conn Conn) *AgentEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.byConn[conn]
	if !ok {
		return nil
	}
	delete(r.byConn, conn)
	delete(r.byID, entry.AgentID)
	return entry
}

// GetByID returns the entry for agentID, or nil.
func (r *Registry) GetByID(agentID string) *AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[agentID]
}

// GetByConn returns the entry registered for conn, or nil.
func (r *Registry) GetByConn(conn Conn) *AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byConn[conn]
}

// AllAgents returns every registered entry. Order is unspecified.
func (r *Registry) AllAgents() []*AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*AgentEntry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, e)
	}
	return out
}

// GetDefaultAgent returns the first privileged entry found, or nil.
// This implements "unaddressed commands go to admin".
func (r *Registry) GetDefaultAgent() *AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byID {
		if e.Privileged {
			return e
		}
	}
	return nil
}

// FindCommandOwner returns the agent that registered earliest among
// those whose manifest advertises name ("first registration wins", per
// §4.2), breaking map-iteration randomness by comparing each entry's
// Seq rather than any part of its id. Returns nil if no agent owns it.
func (r *Registry) FindCommandOwner(name string) *AgentEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var winner *AgentEntry
	for _, e := range r.byID {
		if e.Manifest.HasCommand(name) {
			if winner == nil || e.Seq < winner.Seq {
				winner = e
			}
		}
	}
	return winner
}

// CatalogEntry is one row of the UI-facing agent catalog.
type CatalogEntry struct {
	AgentID     string
	Name        string
	Commands    []Command
	Description string
	Panels      []map[string]any
}

// BuildCatalog produces the UI's view of every connected agent.
func (r *Registry) BuildCatalog() []CatalogEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CatalogEntry, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, CatalogEntry{
			AgentID:     e.AgentID,
			Name:        e.Name,
			Commands:    e.Manifest.Commands,
			Description: e.Manifest.Description,
			Panels:      e.Manifest.Panels,
		})
	}
	return out
}
