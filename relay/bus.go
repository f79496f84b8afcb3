package relay

import (
	"context"
	"log/slog"
	"sync"
)

// Bus delivers a published message to subscribed listeners in order until
// one claims it. This mirrors a broadcast message channel with
// first-responder semantics: the forwarder and the popup controller both
// subscribe, and each ignores messages that are not addressed to its kind
// of process.
type Bus struct {
	mu        sync.RWMutex
	listeners []Listener
	logger    *slog.Logger
}

// NewBus creates an empty Bus.
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Subscribe adds a listener. Listeners are offered messages in subscription
// order.
func (b *Bus) Subscribe(l Listener) {
	b.mu.Lock()
	b.listeners = append(b.listeners, l)
	b.mu.Unlock()
}

// Publish offers env to each listener until one takes ownership of respond.
// It reports whether any listener claimed the message; unclaimed messages
// are logged and discarded, never an error; a process may legitimately
// have nothing listening.
func (b *Bus) Publish(ctx context.Context, from Sender, env Envelope, respond ReplyFunc) bool {
	b.mu.RLock()
	listeners := b.listeners
	b.mu.RUnlock()

	for _, l := range listeners {
		if l.HandleMessage(ctx, from, env, respond) {
			return true
		}
	}
	b.logger.Debug("relay: message unclaimed",
		"from", from.String(), "action", env.Action, "id", env.ID)
	return false
}
