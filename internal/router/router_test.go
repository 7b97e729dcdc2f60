package router

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/registry"
)

type fakeConn struct {
	mu  sync.Mutex
	sent []envelope.Envelope
	fail bool
}

func (c *fakeConn) Send(env envelope.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return assert.AnError
	}
	c.sent = append(c.sent, env)
	return nil
}

func (c *fakeConn) RemoteAddr() string { return "fake" }

func (c *fakeConn) last() envelope.Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return envelope.Envelope{}
	}
	return c.sent[len(c.sent)-1]
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type fakeDispatcher struct {
	fn func(env envelope.Envelope) envelope.Envelope
}

func (d *fakeDispatcher) Handle(ctx context.Context, req envelope.Envelope) envelope.Envelope {
	return d.fn(req)
}

type fakeAdmin struct {
	agentID string
	fn      func(cmd envelope.Envelope, conn registry.Conn, respond func(envelope.Envelope))
}

func (a *fakeAdmin) AgentID() string { return a.agentID }

func (a *fakeAdmin) Handle(ctx context.Context, cmd envelope.Envelope, conn registry.Conn, respond func(envelope.Envelope)) {
	a.fn(cmd, conn, respond)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestHandleRegisterAssignsIDAndReplies(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})
	conn := &fakeConn{}

	env := envelope.New(envelope.TypeAgentRegister, "notes", "core", map[string]any{"name": "notes", "commands": []any{"save"}})
	r.Handle(env, conn)

	reply := conn.last()
	assert.Equal(t, envelope.TypeAgentReady, reply.Type)
	assert.Equal(t, "notes-0", reply.Payload["agent_id"])
}

func TestHandleCommandForwardsToTargetConnection(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})

	targetConn := &fakeConn{}
	reg.Register(targetConn, registry.Manifest{Name: "notes", Commands: []registry.Command{{Name: "save"}}}, false)

	originConn := &fakeConn{}
	cmd := envelope.New(envelope.TypeCommand, "ui", "notes-0", map[string]any{"command": "save"})
	r.Handle(cmd, originConn)

	require.Equal(t, 1, targetConn.count())
	assert.Equal(t, cmd.ID, targetConn.last().ID)
}

func TestHandleCommandUnknownAgentRepliesError(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})
	conn := &fakeConn{}

	cmd := envelope.New(envelope.TypeCommand, "ui", "ghost-0", map[string]any{"command": "x"})
	r.Handle(cmd, conn)

	reply := conn.last()
	assert.Equal(t, envelope.TypeError, reply.Type)
}

func TestHandleResponseForwardsToOrigin(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})

	targetConn := &fakeConn{}
	reg.Register(targetConn, registry.Manifest{Name: "notes", Commands: []registry.Command{{Name: "save"}}}, false)

	originConn := &fakeConn{}
	cmd := envelope.New(envelope.TypeCommand, "ui", "notes-0", map[string]any{"command": "save"})
	r.Handle(cmd, originConn)

	resp := envelope.Reply(cmd, "notes-0", map[string]any{"ok": true})
	r.Handle(resp, targetConn)

	reply := originConn.last()
	assert.Equal(t, cmd.ID, reply.ReplyTo)
	assert.Equal(t, true, reply.Payload["ok"])
}

func TestHandleResponseWithUnknownReplyToIsDropped(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})
	conn := &fakeConn{}

	resp := envelope.Envelope{Type: envelope.TypeResponse, ID: "x", Sender: "a", To: "b", ReplyTo: "nonexistent", Payload: map[string]any{}}
	r.Handle(resp, conn) // must not panic
	assert.Equal(t, 0, conn.count())
}

func TestDisconnectPurgesPendingAndRepliesError(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})

	targetConn := &fakeConn{}
	reg.Register(targetConn, registry.Manifest{Name: "notes", Commands: []registry.Command{{Name: "save"}}}, false)

	originConn := &fakeConn{}
	cmd := envelope.New(envelope.TypeCommand, "ui", "notes-0", map[string]any{"command": "save"})
	r.Handle(cmd, originConn)

	r.Handle(envelope.New(envelope.TypeAgentDisconnect, "", "", nil), targetConn)

	reply := originConn.last()
	assert.Equal(t, envelope.TypeError, reply.Type)
	assert.Contains(t, reply.Payload["error"], "agent disconnected")
}

func TestHandleCommandRoutesToAdminDirectly(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})
	reg.Register(nil, registry.Manifest{Name: "admin", Commands: []registry.Command{{Name: "status"}}}, true)

	admin := &fakeAdmin{
		agentID: "admin-0",
		fn: func(cmd envelope.Envelope, conn registry.Conn, respond func(envelope.Envelope)) {
			respond(envelope.Reply(cmd, "admin-0", map[string]any{"type": "text", "content": map[string]any{"text": "ok"}}))
		},
	}
	r.SetAdmin(admin)

	conn := &fakeConn{}
	cmd := envelope.New(envelope.TypeCommand, "ui", "admin-0", map[string]any{"command": "status"})
	r.Handle(cmd, conn)

	waitUntil(t, func() bool { return conn.count() == 1 })
	assert.Equal(t, cmd.ID, conn.last().ReplyTo)
}

func TestHandleServiceRequestDelegatesToDispatcher(t *testing.T) {
	reg := registry.New()
	dispatcher := &fakeDispatcher{fn: func(env envelope.Envelope) envelope.Envelope {
		resp := envelope.Reply(env, "core", map[string]any{"result": "done"})
		resp.Type = envelope.TypeServiceResponse
		return resp
	}}
	r := New(reg, dispatcher)
	conn := &fakeConn{}

	req := envelope.New(envelope.TypeServiceRequest, "notes-0", "core", map[string]any{"service": "tasks", "action": "list"})
	r.Handle(req, conn)

	waitUntil(t, func() bool { return conn.count() == 1 })
	assert.Equal(t, "done", conn.last().Payload["result"])
}

func TestForwardCommandRecordsPendingAndRoutesResponse(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})

	targetConn := &fakeConn{}
	reg.Register(targetConn, registry.Manifest{Name: "notes", Commands: []registry.Command{{Name: "save"}}}, false)

	originConn := &fakeConn{}
	cmd := envelope.New(envelope.TypeCommand, "admin-0", "notes-0", map[string]any{"command": "save"})
	r.ForwardCommand(cmd, originConn)

	require.Equal(t, 1, targetConn.count())
	assert.Equal(t, cmd.ID, targetConn.last().ID)

	resp := envelope.Reply(cmd, "notes-0", map[string]any{"ok": true})
	r.Handle(resp, targetConn)

	reply := originConn.last()
	assert.Equal(t, cmd.ID, reply.ReplyTo)
}

func TestForwardCommandUnknownAgentRepliesError(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})
	conn := &fakeConn{}

	cmd := envelope.New(envelope.TypeCommand, "admin-0", "ghost-0", map[string]any{"command": "x"})
	r.ForwardCommand(cmd, conn)

	assert.Equal(t, envelope.TypeError, conn.last().Type)
}

func TestHandleUnknownTypeRepliesError(t *testing.T) {
	reg := registry.New()
	r := New(reg, &fakeDispatcher{})
	conn := &fakeConn{}

	env := envelope.Envelope{Type: "bogus.type", ID: "1", Sender: "x", To: "y", Payload: map[string]any{}}
	r.Handle(env, conn)

	assert.Equal(t, envelope.TypeError, conn.last().Type)
}
