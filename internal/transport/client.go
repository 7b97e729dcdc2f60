package transport

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/inkwell/core/internal/envelope"
)

// Client is the symmetric client-side counterpart to Server: agents
// and UI clients use it to connect to the core over its Unix socket,
// send and receive envelopes, and correlate request/response pairs by
// reply_to. Mirrors the teacher's BrokerClient.call/messageListener
// request-correlation pattern.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	mu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan envelope.Envelope

	incoming chan envelope.Envelope
}

// Dial connects to a core instance listening on a Unix socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", socketPath, err)
	}
	c := &Client{
		conn:     conn,
		reader:   bufio.NewReaderSize(conn, MaxLineSize),
		pending:  make(map[string]chan envelope.Envelope),
		incoming: make(chan envelope.Envelope, 64),
	}
	go c.readLoop()
	return c, nil
}

// Send writes one envelope to the connection.
func (c *Client) Send(env envelope.Envelope) error {
	line, err := env.ToLine()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.conn.Write(line)
	return err
}

// Recv blocks for the next envelope not claimed by a pending Request
// call.
func (c *Client) Recv() (envelope.Envelope, error) {
	env, ok := <-c.incoming
	if !ok {
		return envelope.Envelope{}, fmt.Errorf("transport: connection closed")
	}
	return env, nil
}

// Envelopes returns a channel of every envelope not claimed by a
// pending Request call, for callers that prefer an iterator style over
// Recv's blocking call.
func (c *Client) Envelopes() <-chan envelope.Envelope {
	return c.incoming
}

// Request sends msg and waits for the reply whose ReplyTo equals
// msg.ID, buffering or discarding any intermediate envelopes that do
// not match.
func (c *Client) Request(ctx context.Context, msg envelope.Envelope) (envelope.Envelope, error) {
	ch := make(chan envelope.Envelope, 1)
	c.pendingMu.Lock()
	c.pending[msg.ID] = ch
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, msg.ID)
		c.pendingMu.Unlock()
	}()

	if err := c.Send(msg); err != nil {
		return envelope.Envelope{}, err
	}

	select {
	case env := <-ch:
		return env, nil
	case <-ctx.Done():
		return envelope.Envelope{}, ctx.Err()
	}
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) readLoop() {
	defer close(c.incoming)
	for {
		line, err := c.reader.ReadBytes('\n')
		if len(line) > 0 {
			env, decodeErr := envelope.FromBytes(line)
			if decodeErr == nil {
				if c.routeToRequest(env) {
					continue
				}
				c.incoming <- env
			}
		}
		if err != nil {
			return
		}
	}
}

// routeToRequest delivers env to a pending Request call if its
// ReplyTo matches, returning true if it was claimed.
func (c *Client) routeToRequest(env envelope.Envelope) bool {
	if env.ReplyTo == "" {
		return false
	}
	c.pendingMu.Lock()
	ch, ok := c.pending[env.ReplyTo]
	if ok {
		delete(c.pending, env.ReplyTo)
	}
	c.pendingMu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- env:
	case <-time.After(time.Second):
	}
	return true
}
