package browser

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/jobclip/selector"
	"github.com/hazyhaar/jobclip/selector/dompage"
)

//go:embed picker.js
var pickerJS []byte

const bindingName = "__jobclip_binding"

// Session drives one tab as a capture surface. It injects the picker
// script, receives its events over a CDP binding, and resolves element refs
// against a DOM snapshot taken at capture time.
type Session struct {
	tab    *Tab
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	events chan selector.Event

	mu     sync.Mutex
	closed bool
}

// NewSession creates a Session for a tab. Call Start before handing it to
// an engine.
func NewSession(tab *Tab, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		tab:    tab,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan selector.Event, 64),
	}
}

// Start registers the binding, injects the picker script, and begins
// listening for picker and navigation events.
func (s *Session) Start() error {
	page := s.tab.Page

	err := proto.RuntimeAddBinding{Name: bindingName}.Call(page)
	if err != nil {
		s.logger.Warn("browser: addBinding failed (may already exist)", "error", err)
	}

	go s.listen()

	if _, err := page.Eval(string(pickerJS)); err != nil {
		return fmt.Errorf("browser: inject picker: %w", err)
	}
	s.logger.Debug("browser: picker injected", "tab", s.tab.ID, "url", s.tab.URL)
	return nil
}

// listen translates binding calls and frame navigations into engine events.
func (s *Session) listen() {
	defer s.closeEvents()

	page := s.tab.Page
	page.Context(s.ctx).EachEvent(
		func(e *proto.RuntimeBindingCalled) {
			if e.Name != bindingName {
				return
			}
			var msg struct {
				Event string `json:"event"`
				Path  string `json:"path"`
			}
			if err := json.Unmarshal([]byte(e.Payload), &msg); err != nil {
				s.logger.Warn("browser: parse picker payload", "error", err)
				return
			}
			switch msg.Event {
			case "move":
				s.push(selector.Event{Kind: selector.EventPointerMove, Target: selector.ElementRef(msg.Path)})
			case "click":
				s.push(selector.Event{Kind: selector.EventClick, Target: selector.ElementRef(msg.Path)})
			case "escape":
				s.push(selector.Event{Kind: selector.EventEscape})
			}
		},
		func(e *proto.PageFrameNavigated) {
			// Navigation tears down the injected picker with the page.
			if e.Frame.ParentID == "" {
				s.push(selector.Event{Kind: selector.EventNavigate})
			}
		},
	)()
}

func (s *Session) push(ev selector.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- ev:
	default:
		s.logger.Warn("browser: event buffer full, dropping", "kind", ev.Kind)
	}
}

func (s *Session) closeEvents() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}

// Stop detaches the session from the tab. The event channel closes.
func (s *Session) Stop() {
	s.cancel()
	s.closeEvents()
}

// ShowOverlay arms the picker: instruction banner, crosshair cursor, and
// capture-phase listeners.
func (s *Session) ShowOverlay(ctx context.Context) (selector.OverlayHandle, error) {
	if _, err := s.tab.Page.Context(ctx).Eval(`() => window.__jobclipPicker.arm()`); err != nil {
		return "", fmt.Errorf("browser: arm picker: %w", err)
	}
	return selector.OverlayHandle(s.tab.ID), nil
}

// RemoveOverlay disarms the picker and restores the page.
func (s *Session) RemoveOverlay(ctx context.Context, h selector.OverlayHandle) error {
	if _, err := s.tab.Page.Context(ctx).Eval(`() => window.__jobclipPicker.disarm()`); err != nil {
		return fmt.Errorf("browser: disarm picker: %w", err)
	}
	return nil
}

// Outline draws the highlight outline on the referenced element.
func (s *Session) Outline(ctx context.Context, ref selector.ElementRef) error {
	res, err := s.tab.Page.Context(ctx).Eval(`p => window.__jobclipPicker.outline(p)`, string(ref))
	if err != nil {
		return fmt.Errorf("browser: outline: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: outline: element %q not found", ref)
	}
	return nil
}

// ClearOutline removes the highlight outline from the referenced element.
func (s *Session) ClearOutline(ctx context.Context, ref selector.ElementRef) error {
	res, err := s.tab.Page.Context(ctx).Eval(`p => window.__jobclipPicker.clearOutline(p)`, string(ref))
	if err != nil {
		return fmt.Errorf("browser: clear outline: %w", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("browser: clear outline: element %q not found", ref)
	}
	return nil
}

// Events streams picker events.
func (s *Session) Events() <-chan selector.Event {
	return s.events
}

// Element resolves a ref against a fresh DOM snapshot.
func (s *Session) Element(ctx context.Context, ref selector.ElementRef) (selector.Element, error) {
	res, err := s.tab.Page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: snapshot DOM: %w", err)
	}
	doc, err := dompage.ParseString(res.Value.Str())
	if err != nil {
		return nil, fmt.Errorf("browser: parse snapshot: %w", err)
	}
	return doc.ElementAt(ref)
}
