// Package envelope defines the wire message wrapping every piece of
// communication that crosses the core: agent registration, commands,
// service calls, and peer messages. Envelopes are the only thing that
// travels between a connection and the router.
//
// Wire form is a single-line JSON object per envelope (see ToLine /
// FromBytes). The in-memory field holding the originator is named
// Sender, but it is serialized as "from" on the wire to match the
// protocol's external vocabulary.
//
// Called by: transport (decode on read, encode on write), router
// (dispatch and forward), dispatcher (service.request/response),
// admin (command/response construction).
package envelope

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Type is the closed set of message type tags defined by the protocol.
type Type string

const (
	TypeAgentRegister   Type = "agent.register"
	TypeAgentReady      Type = "agent.ready"
	TypeAgentDisconnect Type = "agent.disconnect"
	TypeAgentList       Type = "agent.list"
	TypeAgentCatalog    Type = "agent.catalog"

	TypeCommand  Type = "command"
	TypeResponse Type = "response"

	TypeServiceRequest  Type = "service.request"
	TypeServiceResponse Type = "service.response"
	TypeServiceError    Type = "service.error"

	TypeAgentMessage   Type = "agent.message"
	TypeAgentBroadcast Type = "agent.broadcast"

	TypeError Type = "error"

	// Reserved streaming variants: no component in this core emits
	// them, but the router forwards them like any other reply so a
	// future streaming agent can adopt them without a protocol change.
	TypeResponseChunk Type = "response.chunk"
	TypeResponseEnd   Type = "response.end"
)

// Envelope is the immutable unit of communication. Two envelopes with
// identical fields are indistinguishable; mutation methods are not
// provided on purpose — callers build a new Envelope for each send.
type Envelope struct {
	Type      Type           `json:"type"`
	ID        string         `json:"id"`
	Sender    string         `json:"from"`
	To        string         `json:"to"`
	Payload   map[string]any `json:"payload"`
	ReplyTo   string         `json:"reply_to,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// New builds an envelope with a freshly generated ID. Payload may be
// nil, in which case an empty map is substituted so callers can always
// index into it without a nil check.
func New(typ Type, sender, to string, payload map[string]any) Envelope {
	if payload == nil {
		payload = map[string]any{}
	}
	return Envelope{
		Type:    typ,
		ID:      uuid.New().String(),
		Sender:  sender,
		To:      to,
		Payload: payload,
	}
}

// Reply builds a response envelope addressed back to the sender of
// orig, correlated via ReplyTo.
func Reply(orig Envelope, sender string, payload map[string]any) Envelope {
	env := New(TypeResponse, sender, orig.Sender, payload)
	env.ReplyTo = orig.ID
	return env
}

// ErrorEnvelope builds a protocol-level error envelope addressed to to.
func ErrorEnvelope(to, reason string) Envelope {
	return New(TypeError, "", to, map[string]any{"error": reason})
}

// ProtocolError indicates a malformed envelope: missing required
// fields or a non-object top-level JSON value.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string { return e.Reason }

// ToLine serializes the envelope to a single newline-terminated JSON
// line, the wire form used by the Unix-socket transport. WebSocket
// connections send the same bytes minus the trailing newline, one
// per message.
func (e Envelope) ToLine() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("envelope: marshal: %w", err)
	}
	return append(data, '\n'), nil
}

// FromBytes decodes one envelope from a JSON object, tolerating
// unknown keys and rejecting non-object top-levels or missing
// required fields.
func FromBytes(data []byte) (Envelope, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Envelope{}, &ProtocolError{Reason: fmt.Sprintf("not a JSON object: %v", err)}
	}

	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, &ProtocolError{Reason: fmt.Sprintf("decode failed: %v", err)}
	}

	for _, field := range []string{"type", "id", "from", "to", "payload"} {
		if _, ok := raw[field]; !ok {
			return Envelope{}, &ProtocolError{Reason: fmt.Sprintf("missing required field %q", field)}
		}
	}
	if e.Payload == nil {
		e.Payload = map[string]any{}
	}
	return e, nil
}
