package dompage

import (
	"context"
	"fmt"
	"sync"

	"github.com/hazyhaar/jobclip/selector"
)

// Page is a scriptable selector.Page over a parsed document. It tracks the
// overlay, outlines, and cursor the way a real page would, and exposes
// Move/Click/Escape/Navigate to simulate user interaction. Used by engine
// and controller tests; no browser involved.
type Page struct {
	doc    *Doc
	events chan selector.Event

	mu         sync.Mutex
	overlaySeq int
	overlays   map[selector.OverlayHandle]bool
	outlined   map[selector.ElementRef]bool
	cursor     string
	detached   map[selector.ElementRef]bool
	closed     bool
}

// NewPage wraps a document in a scriptable page surface.
func NewPage(doc *Doc) *Page {
	return &Page{
		doc:      doc,
		events:   make(chan selector.Event, 64),
		overlays: make(map[selector.OverlayHandle]bool),
		outlined: make(map[selector.ElementRef]bool),
		cursor:   "default",
		detached: make(map[selector.ElementRef]bool),
	}
}

func (p *Page) ShowOverlay(ctx context.Context) (selector.OverlayHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.overlaySeq++
	h := selector.OverlayHandle(fmt.Sprintf("overlay-%d", p.overlaySeq))
	p.overlays[h] = true
	p.cursor = "crosshair"
	return h, nil
}

func (p *Page) RemoveOverlay(ctx context.Context, h selector.OverlayHandle) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.overlays, h)
	p.cursor = "default"
	return nil
}

func (p *Page) Outline(ctx context.Context, ref selector.ElementRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outlined[ref] = true
	return nil
}

func (p *Page) ClearOutline(ctx context.Context, ref selector.ElementRef) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.outlined, ref)
	return nil
}

func (p *Page) Events() <-chan selector.Event {
	return p.events
}

func (p *Page) Element(ctx context.Context, ref selector.ElementRef) (selector.Element, error) {
	p.mu.Lock()
	gone := p.detached[ref]
	p.mu.Unlock()
	if gone {
		return nil, fmt.Errorf("%w: ref %q detached", ErrNotFound, ref)
	}
	return p.doc.ElementAt(ref)
}

// Move simulates pointer movement over the referenced element.
func (p *Page) Move(ref selector.ElementRef) { p.push(selector.Event{Kind: selector.EventPointerMove, Target: ref}) }

// Click simulates a click on the referenced element.
func (p *Page) Click(ref selector.ElementRef) { p.push(selector.Event{Kind: selector.EventClick, Target: ref}) }

// Escape simulates an Escape key press.
func (p *Page) Escape() { p.push(selector.Event{Kind: selector.EventEscape}) }

// Navigate simulates the page navigating away.
func (p *Page) Navigate() { p.push(selector.Event{Kind: selector.EventNavigate}) }

// Close ends the event stream, simulating the page surface going away.
func (p *Page) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		close(p.events)
	}
}

// Detach marks a ref unreachable, simulating an element removed by page
// scripts between click and extraction.
func (p *Page) Detach(ref selector.ElementRef) {
	p.mu.Lock()
	p.detached[ref] = true
	p.mu.Unlock()
}

// OverlayCount reports how many overlay nodes are mounted.
func (p *Page) OverlayCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.overlays)
}

// OutlinedCount reports how many elements currently carry an outline.
func (p *Page) OutlinedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outlined)
}

// IsOutlined reports whether the ref currently carries the outline.
func (p *Page) IsOutlined(ref selector.ElementRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outlined[ref]
}

// Cursor reports the current cursor style.
func (p *Page) Cursor() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cursor
}

// push delivers an event unless the stream is closed. The lock is held
// through the send so Close cannot close the channel mid-send.
func (p *Page) push(ev selector.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- ev:
	default:
	}
}
