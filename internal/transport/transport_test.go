package transport

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/registry"
)

// echoHandler replies to every command with "echoed: <text>" and
// ignores every other envelope; malformed lines never reach it, since
// the transport answers those itself. That is enough to exercise the
// transport framing independent of the real router.
type echoHandler struct{}

func (echoHandler) Handle(env envelope.Envelope, conn registry.Conn) {
	if env.Type != envelope.TypeCommand {
		return
	}
	text, _ := env.Payload["text"].(string)
	reply := envelope.Reply(env, "echo-0", map[string]any{"text": "echoed: " + text})
	conn.Send(reply)
}

func freePort(t *testing.T) string {
	t.Helper()
	return "19345"
}

func TestUnixSocketRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "core.sock")
	srv := NewServer(echoHandler{}, socketPath, "127.0.0.1", freePort(t), false)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	time.Sleep(20 * time.Millisecond)

	client, err := Dial(socketPath)
	require.NoError(t, err)
	defer client.Close()

	req := envelope.New(envelope.TypeCommand, "ui-0", "echo-0", map[string]any{"text": "hello"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Request(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, req.ID, resp.ReplyTo)
	assert.Equal(t, "echoed: hello", resp.Payload["text"])
}

func TestUnixSocketMalformedLineDoesNotDropConnection(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "core2.sock")
	srv := NewServer(echoHandler{}, socketPath, "127.0.0.1", "19346", false)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	time.Sleep(20 * time.Millisecond)

	client, err := Dial(socketPath)
	require.NoError(t, err)
	defer client.Close()

	// Malformed line: not valid JSON at all.
	_, werr := client.conn.Write([]byte("not json\n"))
	require.NoError(t, werr)

	// Connection must still be usable afterwards.
	req := envelope.New(envelope.TypeCommand, "ui-0", "echo-0", map[string]any{"text": "still alive"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := client.Request(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "echoed: still alive", resp.Payload["text"])
}
