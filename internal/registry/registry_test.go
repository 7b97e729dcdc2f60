package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/core/internal/envelope"
)

type fakeConn struct{ id string }

func (f *fakeConn) Send(env envelope.Envelope) error { return nil }
func (f *fakeConn) RemoteAddr() string               { return f.id }

func TestRegisterAssignsSequentialIDs(t *testing.T) {
	r := New()

	c1, c2 := &fakeConn{"a"}, &fakeConn{"b"}
	e1 := r.Register(c1, Manifest{Name: "mist"}, false)
	e2 := r.Register(c2, Manifest{Name: "mist"}, false)

	assert.Equal(t, "mist-0", e1.AgentID)
	assert.Equal(t, "mist-1", e2.AgentID)
	assert.NotEqual(t, e1.AgentID, e2.AgentID)
}

func TestCounterNeverDecrements(t *testing.T) {
	r := New()
	c1 := &fakeConn{"a"}

	e1 := r.Register(c1, Manifest{Name: "x"}, false)
	require.Equal(t, "x-0", e1.AgentID)

	r.Unregister(e1.AgentID)

	c2 := &fakeConn{"b"}
	e2 := r.Register(c2, Manifest{Name: "x"}, false)
	assert.Equal(t, "x-1", e2.AgentID, "counter must not reuse ids after unregister")
}

func TestUnregisterByConnPurgesBothIndexes(t *testing.T) {
	r := New()
	c := &fakeConn{"a"}
	e := r.Register(c, Manifest{Name: "mist"}, false)

	removed := r.UnregisterByConn(c)
	require.NotNil(t, removed)
	assert.Equal(t, e.AgentID, removed.AgentID)
	assert.Nil(t, r.GetByID(e.AgentID))
	assert.Nil(t, r.GetByConn(c))
}

func TestGetDefaultAgentReturnsPrivileged(t *testing.T) {
	r := New()
	r.Register(&fakeConn{"a"}, Manifest{Name: "notes"}, false)
	admin := r.Register(nil, Manifest{Name: "admin"}, true)

	got := r.GetDefaultAgent()
	require.NotNil(t, got)
	assert.Equal(t, admin.AgentID, got.AgentID)
}

func TestFindCommandOwnerFirstRegistrationWins(t *testing.T) {
	r := New()
	first := r.Register(&fakeConn{"a"}, Manifest{Name: "notes", Commands: []Command{{Name: "list"}}}, false)
	r.Register(&fakeConn{"b"}, Manifest{Name: "science", Commands: []Command{{Name: "list"}}}, false)

	owner := r.FindCommandOwner("list")
	require.NotNil(t, owner)
	assert.Equal(t, first.AgentID, owner.AgentID)
}

func TestFindCommandOwnerUnknown(t *testing.T) {
	r := New()
	r.Register(&fakeConn{"a"}, Manifest{Name: "notes", Commands: []Command{{Name: "list"}}}, false)
	assert.Nil(t, r.FindCommandOwner("nope"))
}

func TestBuildCatalog(t *testing.T) {
	r := New()
	r.Register(&fakeConn{"a"}, Manifest{Name: "mist", Description: "notes agent"}, false)

	cat := r.BuildCatalog()
	require.Len(t, cat, 1)
	assert.Equal(t, "mist-0", cat[0].AgentID)
}
