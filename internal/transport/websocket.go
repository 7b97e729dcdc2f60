package transport

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/inkwell/core/internal/envelope"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The core is a local, single-user substrate; WebSocket clients
	// are the terminal UI and agents on the same machine, not browser
	// pages from arbitrary origins, so the origin check is a no-op.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// webSocketListener wraps the raw net.Listener backing the WebSocket
// HTTP server so Server.Stop can close it without tearing down the
// whole http.Server machinery.
type webSocketListener struct {
	ln  net.Listener
	srv *http.Server
}

func (s *Server) startWebSocket() error {
	addr := net.JoinHostPort(s.wsHost, s.wsPort)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleWebSocket)
	httpSrv := &http.Server{Handler: mux}

	s.wsSrv = &webSocketListener{ln: ln, srv: httpSrv}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := httpSrv.Serve(ln); err != nil && s.debug {
			log.Printf("transport: websocket server ended: %v", err)
		}
	}()

	if s.debug {
		log.Printf("transport: websocket listening at %s", addr)
	}
	return nil
}

func (w *webSocketListener) close() {
	w.srv.Close()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.debug {
			log.Printf("transport: websocket upgrade failed: %v", err)
		}
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}
	defer func() {
		s.handler.Handle(envelope.New(envelope.TypeAgentDisconnect, "", "", nil), wc)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		s.dispatchLine(data, wc)
	}
}

// wsConn adapts a gorilla/websocket connection to registry.Conn. Each
// envelope is sent as one text message, matching the "one envelope per
// message" framing spec.md requires for the WebSocket surface.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) Send(env envelope.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
