package relay

import "errors"

// Error payload texts synthesized by the relay. These cross the message
// boundary as data, never as Go errors: a fault inside one endpoint must
// not surface as a language-level fault in another.
const (
	// MsgNoActiveTab is sent when no tab is available to receive a message.
	MsgNoActiveTab = "No active tab found."
	// MsgContentUnavailable is sent when the active tab has no listening
	// selector engine, or its engine failed while handling the message.
	MsgContentUnavailable = "Content script not available or not listening."
)

// ErrClosed is returned by pending-table operations after Close.
var ErrClosed = errors.New("relay: closed")

// ErrDuplicateID is returned when a correlation ID is already pending.
var ErrDuplicateID = errors.New("relay: duplicate correlation id")
