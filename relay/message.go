// Package relay routes capture messages between the popup controller and
// the selector engine running in the active tab.
//
// The relay is a stateless forwarder: it never originates payloads and never
// interprets them. It exists because the two endpoints are isolated: they
// share no memory and no call stack, so every exchange crosses the relay as
// an asynchronous request/reply pair correlated by message ID.
package relay

import (
	"context"
	"encoding/json"

	"github.com/hazyhaar/jobclip/idgen"
)

// Sender identifies which kind of process originated a message.
type Sender int

const (
	// SenderPopup marks messages originated by the popup controller.
	SenderPopup Sender = iota
	// SenderContent marks messages originated by a tab's selector engine.
	SenderContent
)

func (s Sender) String() string {
	switch s {
	case SenderPopup:
		return "popup"
	case SenderContent:
		return "content"
	default:
		return "unknown"
	}
}

// Well-known message actions. The wire vocabulary is fixed: the relay
// forwards anything, but the endpoints only speak these.
const (
	ActionStart    = "startScraping"
	ActionCancel   = "cancelScraping"
	ActionSelected = "elementSelected"
	ActionCanceled = "selectionCanceled"
)

// Envelope is a routable message. Data is opaque to the relay.
type Envelope struct {
	ID     string          `json:"id"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope builds an Envelope with a fresh correlation ID, marshalling
// data if non-nil.
func NewEnvelope(action string, data any) (Envelope, error) {
	env := Envelope{ID: idgen.Message(), Action: action}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return Envelope{}, err
		}
		env.Data = raw
	}
	return env, nil
}

// Reply is the canonical reply payload shape. Exactly one of Status or
// Error is set.
type Reply struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ReplyFunc delivers a reply payload back to a message's original sender.
// It is invoked at most once, always asynchronously with respect to the
// send.
type ReplyFunc func(payload []byte)

// Handler is a transport-agnostic endpoint function: bytes in, bytes out.
// A tab's selector engine registers one with the Forwarder.
type Handler func(ctx context.Context, payload []byte) ([]byte, error)

// Listener receives published messages. HandleMessage returns true when
// the listener takes ownership of respond and will invoke it; false when
// the message is not for this listener.
type Listener interface {
	HandleMessage(ctx context.Context, from Sender, env Envelope, respond ReplyFunc) bool
}

// StatusPayload marshals a {"status": ...} reply.
func StatusPayload(status string) []byte {
	b, _ := json.Marshal(Reply{Status: status})
	return b
}

// ErrorPayload marshals an {"error": ...} reply.
func ErrorPayload(msg string) []byte {
	b, _ := json.Marshal(Reply{Error: msg})
	return b
}
