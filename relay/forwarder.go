package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

// TabDirectory resolves the currently active tab. Implemented by the
// browser manager; faked in tests.
type TabDirectory interface {
	// ActiveTab returns the ID of the focused tab, or false when no tab
	// exists.
	ActiveTab() (string, bool)
}

// Forwarder is the relay proper: it forwards popup-originated messages to
// the active tab's engine and relays the engine's reply verbatim back to
// the sender. Content-originated messages are dropped; only popup
// requests travel outward, which is what prevents feedback loops.
//
// All replies are asynchronous: HandleMessage returns true ("will respond
// later") before the engine's reply exists, and respond fires once the
// pending slot resolves.
type Forwarder struct {
	dir     TabDirectory
	mu      sync.RWMutex
	content map[string]Handler // tab ID -> engine handler
	pending *pending
	logger  *slog.Logger
}

// Option configures a Forwarder.
type Option func(*Forwarder)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(f *Forwarder) { f.logger = l }
}

// NewForwarder creates a Forwarder that resolves the active tab through dir.
func NewForwarder(dir TabDirectory, opts ...Option) *Forwarder {
	f := &Forwarder{
		dir:     dir,
		content: make(map[string]Handler),
		pending: newPending(),
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// RegisterContent registers a tab's engine handler. Messages routed to this
// tab are delivered by invoking h.
func (f *Forwarder) RegisterContent(tabID string, h Handler) {
	f.mu.Lock()
	f.content[tabID] = h
	f.mu.Unlock()
}

// UnregisterContent removes a tab's engine handler (tab closed or engine
// stopped). Subsequent messages for this tab get the content-unavailable
// error.
func (f *Forwarder) UnregisterContent(tabID string) {
	f.mu.Lock()
	delete(f.content, tabID)
	f.mu.Unlock()
}

// HandleMessage implements Listener.
//
// Contract:
//   - content-originated messages are dropped (returns false, respond is
//     never called);
//   - no active tab: respond gets {"error": "No active tab found."};
//   - active tab without a listening engine: respond gets
//     {"error": "Content script not available or not listening."};
//   - otherwise the envelope is forwarded and the engine's reply is relayed
//     verbatim.
//
// Routing failures are converted to error payloads; they never escape as
// faults, so the forwarder stays available for subsequent requests.
func (f *Forwarder) HandleMessage(ctx context.Context, from Sender, env Envelope, respond ReplyFunc) bool {
	if from == SenderContent {
		f.logger.Debug("relay: dropping content-originated message",
			"action", env.Action, "id", env.ID)
		return false
	}

	tabID, ok := f.dir.ActiveTab()
	if !ok {
		f.logger.Debug("relay: no active tab", "action", env.Action, "id", env.ID)
		go respond(ErrorPayload(MsgNoActiveTab))
		return true
	}

	f.mu.RLock()
	h := f.content[tabID]
	f.mu.RUnlock()
	if h == nil {
		f.logger.Debug("relay: no engine listening", "tab", tabID, "id", env.ID)
		go respond(ErrorPayload(MsgContentUnavailable))
		return true
	}

	ch, err := f.pending.add(env.ID)
	if err != nil {
		f.logger.Warn("relay: pending registration failed", "id", env.ID, "error", err)
		go respond(ErrorPayload(err.Error()))
		return true
	}

	// Forward to the engine; whatever comes back resolves the pending slot.
	go func() {
		raw, err := json.Marshal(env)
		if err != nil {
			f.pending.resolve(env.ID, ErrorPayload(MsgContentUnavailable))
			return
		}
		reply, err := h(ctx, raw)
		if err != nil {
			f.logger.Warn("relay: engine handler failed",
				"tab", tabID, "action", env.Action, "error", err)
			f.pending.resolve(env.ID, ErrorPayload(MsgContentUnavailable))
			return
		}
		f.pending.resolve(env.ID, reply)
	}()

	// Keep the reply channel open until the slot resolves.
	go func() {
		select {
		case payload := <-ch:
			respond(payload)
		case <-ctx.Done():
			f.pending.drop(env.ID)
		}
	}()

	return true
}

// InFlight reports the number of requests awaiting replies.
func (f *Forwarder) InFlight() int {
	return f.pending.size()
}

// Close clears the pending table. In-flight respond callbacks are
// abandoned; subsequent messages still get explicit error replies.
func (f *Forwarder) Close() {
	f.pending.close()
}
