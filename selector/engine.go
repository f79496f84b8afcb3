package selector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/jobclip/relay"
)

type cmdKind int

const (
	cmdStart cmdKind = iota
	cmdCancel
)

type command struct {
	kind cmdKind
	ack  chan []byte
}

// Engine runs the capture state machine for one page. Commands arrive over
// the relay as JSON envelopes; interaction events arrive from the page
// surface. A single goroutine (Run) owns the state, so transitions are
// serialised without locks; the engine is cooperatively scheduled like
// the page process it models.
type Engine struct {
	page   Page
	sink   Sink
	logger *slog.Logger
	cmds   chan command
	done   chan struct{}
}

// EngineConfig configures an Engine.
type EngineConfig struct {
	Page   Page
	Sink   Sink
	Logger *slog.Logger
}

// NewEngine creates an Engine. Call Run to start the state machine loop.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		page:   cfg.Page,
		sink:   cfg.Sink,
		logger: cfg.Logger,
		cmds:   make(chan command),
		done:   make(chan struct{}),
	}
}

// Handle is the engine's relay endpoint: it accepts startScraping and
// cancelScraping envelopes and replies with a status payload. Both
// commands are acknowledged from inside the state machine loop, so the
// acknowledgment for a start is always observed before any result of the
// cycle it created.
func (e *Engine) Handle(ctx context.Context, payload []byte) ([]byte, error) {
	var env relay.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("selector: decode envelope: %w", err)
	}

	var kind cmdKind
	switch env.Action {
	case relay.ActionStart:
		kind = cmdStart
	case relay.ActionCancel:
		kind = cmdCancel
	default:
		return nil, fmt.Errorf("selector: unknown action %q", env.Action)
	}

	cmd := command{kind: kind, ack: make(chan []byte, 1)}
	select {
	case e.cmds <- cmd:
	case <-e.done:
		return nil, fmt.Errorf("selector: engine stopped")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case reply := <-cmd.ack:
		return reply, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Run executes the state machine loop until ctx is canceled or the page's
// event stream closes. It always leaves the page in its pre-selection
// condition: any active cycle is torn down on the way out.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.done)

	st := State{} // Idle

	for {
		select {
		case <-ctx.Done():
			// The engine is being stopped (tab closing, shutdown). The page
			// may outlive this cycle; tell the popup so its waiting state
			// clears.
			if st.Active {
				bg := context.WithoutCancel(ctx)
				e.teardown(bg, st)
				e.sink.Canceled(bg, ReasonNavigation)
			}
			return

		case cmd := <-e.cmds:
			st = e.handleCommand(ctx, st, cmd)

		case ev, ok := <-e.page.Events():
			if !ok {
				// Page surface is gone. Listeners died with it; tell the
				// popup so its waiting state does not hang forever.
				if st.Active {
					e.teardown(context.WithoutCancel(ctx), st)
					e.sink.Canceled(ctx, ReasonNavigation)
				}
				return
			}
			st = e.handleEvent(ctx, st, ev)
		}
	}
}

func (e *Engine) handleCommand(ctx context.Context, st State, cmd command) State {
	switch cmd.kind {
	case cmdStart:
		if st.Active {
			// Duplicate start: idempotent no-op, still acknowledged.
			cmd.ack <- relay.StatusPayload(StatusStarted)
			return st
		}
		overlay, err := e.page.ShowOverlay(ctx)
		if err != nil {
			e.logger.Warn("selector: show overlay failed", "error", err)
			cmd.ack <- relay.ErrorPayload("selection could not start")
			return State{}
		}
		cmd.ack <- relay.StatusPayload(StatusStarted)
		return State{Active: true, Overlay: overlay}

	case cmdCancel:
		if st.Active {
			e.teardown(ctx, st)
		}
		cmd.ack <- relay.StatusPayload(StatusCanceled)
		return State{}

	default:
		cmd.ack <- relay.ErrorPayload("unknown command")
		return st
	}
}

func (e *Engine) handleEvent(ctx context.Context, st State, ev Event) State {
	if !st.Active {
		// Idle: no listeners are conceptually attached.
		return st
	}

	switch ev.Kind {
	case EventPointerMove:
		return e.highlight(ctx, st, ev.Target)

	case EventClick:
		res := e.capture(ctx, ev.Target)
		e.teardown(ctx, st)
		// isActive is false from here on; the result is emitted after the
		// transition, exactly once.
		e.sink.Selected(ctx, res)
		return State{}

	case EventEscape:
		e.teardown(ctx, st)
		e.sink.Canceled(ctx, ReasonEscape)
		return State{}

	case EventNavigate:
		e.teardown(ctx, st)
		e.sink.Canceled(ctx, ReasonNavigation)
		return State{}

	default:
		return st
	}
}

// highlight moves the outline to target. At most one element carries the
// outline at any instant: the previous one is cleared first.
func (e *Engine) highlight(ctx context.Context, st State, target ElementRef) State {
	if st.Highlighted != nil && *st.Highlighted == target {
		return st
	}
	if st.Highlighted != nil {
		if err := e.page.ClearOutline(ctx, *st.Highlighted); err != nil {
			e.logger.Debug("selector: clear outline failed", "error", err)
		}
	}
	if err := e.page.Outline(ctx, target); err != nil {
		e.logger.Debug("selector: outline failed", "error", err)
		return State{Active: true, Overlay: st.Overlay}
	}
	return State{Active: true, Overlay: st.Overlay, Highlighted: &target}
}

// capture resolves the clicked element and builds the result. A detached
// element resolves to empty values rather than a fault; the cleanup that
// follows must run regardless.
func (e *Engine) capture(ctx context.Context, ref ElementRef) Result {
	el, err := e.page.Element(ctx, ref)
	if err != nil {
		e.logger.Warn("selector: element unreachable", "ref", string(ref), "error", err)
		return Result{}
	}
	return Result{
		Selector: Locator(el),
		Text:     strings.TrimSpace(el.Text()),
		HTML:     el.HTML(),
	}
}

// teardown is the single cleanup routine invoked from every exit path:
// outline cleared, overlay removed, cursor restored. Failures are logged,
// never propagated; no error may leave the page Active.
func (e *Engine) teardown(ctx context.Context, st State) {
	if st.Highlighted != nil {
		if err := e.page.ClearOutline(ctx, *st.Highlighted); err != nil {
			e.logger.Debug("selector: teardown clear outline", "error", err)
		}
	}
	if err := e.page.RemoveOverlay(ctx, st.Overlay); err != nil {
		e.logger.Warn("selector: teardown remove overlay", "error", err)
	}
}
