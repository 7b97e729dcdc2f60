// Package transport accepts framed envelopes on a Unix-domain socket
// and a WebSocket listener and hands each one to a shared Handler. It
// is deliberately ignorant of routing semantics: its only job is
// "decode one envelope, call the handler with (envelope, connection),
// repeat".
//
// Called by: cmd/core (wiring at startup). Calls: router.Router.Handle
// for every decoded envelope.
package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"sync"

	"github.com/inkwell/core/internal/envelope"
	"github.com/inkwell/core/internal/registry"
)

// MaxLineSize is the read-buffer size of the Unix-socket readers,
// comfortably above the 1 MiB floor spec.md names. It is not a cap:
// ReadBytes keeps growing past it, so longer lines are still read.
const MaxLineSize = 4 * 1024 * 1024

// Handler is called once per decoded envelope, with the connection it
// arrived on. Implemented by router.Router.
type Handler interface {
	Handle(env envelope.Envelope, conn registry.Conn)
}

// Server owns both listeners (Unix socket and WebSocket) and funnels
// every accepted connection into the same Handler, mirroring the
// teacher's broker.Service.Start/handleConnection split between
// accept-loop and per-connection processing.
type Server struct {
	handler Handler
	debug   bool

	socketPath string
	unixLn     net.Listener

	wsHost string
	wsPort string
	wsSrv  *webSocketListener

	wg sync.WaitGroup
}

// NewServer creates a transport server. socketPath is the Unix-socket
// path to bind; wsHost/wsPort configure the WebSocket listener.
func NewServer(handler Handler, socketPath, wsHost, wsPort string, debug bool) *Server {
	return &Server{
		handler:    handler,
		debug:      debug,
		socketPath: socketPath,
		wsHost:     wsHost,
		wsPort:     wsPort,
	}
}

// Start binds both listeners and begins accepting connections in
// background goroutines. It returns once both listeners are bound, or
// an error if either bind fails.
func (s *Server) Start() error {
	if err := s.startUnix(); err != nil {
		return fmt.Errorf("transport: unix socket: %w", err)
	}
	if err := s.startWebSocket(); err != nil {
		return fmt.Errorf("transport: websocket: %w", err)
	}
	return nil
}

// Stop closes both listeners and unlinks the Unix socket file.
func (s *Server) Stop() {
	if s.unixLn != nil {
		s.unixLn.Close()
	}
	if s.wsSrv != nil {
		s.wsSrv.close()
	}
	os.Remove(s.socketPath)
	s.wg.Wait()
}

func (s *Server) startUnix() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o755); err != nil {
		return fmt.Errorf("create socket directory: %w", err)
	}
	// A stale socket file from a previous unclean shutdown must be
	// removed before binding, or the listen call fails with
	// "address already in use".
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return err
	}
	s.unixLn = ln

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				if s.debug {
					log.Printf("transport: unix accept ended: %v", err)
				}
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serveUnixConn(conn)
			}()
		}
	}()

	if s.debug {
		log.Printf("transport: unix socket listening at %s", s.socketPath)
	}
	return nil
}

// serveUnixConn reads newline-framed envelopes from conn until EOF or
// a connection error, handing each decoded envelope to the Handler. A
// malformed line produces a single error envelope addressed to
// "unknown" and the loop continues — it does not drop the connection.
func (s *Server) serveUnixConn(netConn net.Conn) {
	defer netConn.Close()

	uc := &unixConn{conn: netConn, enc: json.NewEncoder(netConn)}
	defer func() {
		s.handler.Handle(envelope.New(envelope.TypeAgentDisconnect, "", "", nil), uc)
	}()

	reader := bufio.NewReaderSize(netConn, MaxLineSize)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			s.dispatchLine(line, uc)
		}
		if err != nil {
			return // EOF or read error: end the per-connection loop.
		}
	}
}

func (s *Server) dispatchLine(line []byte, conn registry.Conn) {
	env, err := envelope.FromBytes(line)
	if err != nil {
		errEnv := envelope.ErrorEnvelope("unknown", err.Error())
		if sendErr := conn.Send(errEnv); sendErr != nil && s.debug {
			log.Printf("transport: failed to send decode error: %v", sendErr)
		}
		return
	}
	s.handler.Handle(env, conn)
}

// unixConn adapts a net.Conn to registry.Conn.
type unixConn struct {
	conn net.Conn
	mu   sync.Mutex
	enc  *json.Encoder
}

func (c *unixConn) Send(env envelope.Envelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc.Encode(env)
}

func (c *unixConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
