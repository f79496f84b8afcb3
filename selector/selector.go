// Package selector implements the interactive element-capture state machine.
//
// An Engine attaches to one page surface and cycles between two states:
// Idle (no overlay, events ignored) and Active (overlay shown, pointer
// movement highlights elements, a click captures one). Every cycle ends in
// Idle with a single atomic cleanup, whatever the exit path: click,
// cancel, navigation, or error.
package selector

import "context"

// ElementRef identifies an element on a page surface. It is a
// slash-separated sequence of element-child indices starting at the root
// element; the empty ref is the root element itself. Refs are opaque to the
// engine; only the Page implementation interprets them.
type ElementRef string

// OverlayHandle identifies a mounted instruction overlay.
type OverlayHandle string

// EventKind classifies an interaction event.
type EventKind int

const (
	// EventPointerMove fires when the pointer moves over an element.
	EventPointerMove EventKind = iota
	// EventClick fires when an element is clicked; the page surface has
	// already suppressed the element's default action.
	EventClick
	// EventEscape fires when the Escape key is pressed.
	EventEscape
	// EventNavigate fires when the page navigates away mid-session.
	EventNavigate
)

// Event is one interaction event from the page surface.
type Event struct {
	Kind   EventKind
	Target ElementRef
}

// Element is a resolved DOM element, positioned in its document.
// Implementations wrap a parsed snapshot taken at capture time.
type Element interface {
	// Tag returns the lowercase tag name.
	Tag() string
	// ID returns the id attribute, or "" when absent.
	ID() string
	// Classes returns the class names in attribute order.
	Classes() []string
	// Parent returns the parent element, or nil at the document root.
	Parent() Element
	// TagIndex returns the element's 1-based position among same-tag
	// siblings and the total number of those siblings.
	TagIndex() (pos, total int)
	// Text returns the element's raw text content.
	Text() string
	// HTML returns the element's outer HTML.
	HTML() string
}

// Page is the surface an Engine drives. Implementations: a CDP-backed live
// browser tab, or an in-memory parsed document for tests.
type Page interface {
	// ShowOverlay mounts the instruction overlay and switches the cursor.
	// The overlay must not intercept pointer or click events.
	ShowOverlay(ctx context.Context) (OverlayHandle, error)
	// RemoveOverlay unmounts the overlay and restores the default cursor.
	RemoveOverlay(ctx context.Context, h OverlayHandle) error
	// Outline draws the highlight outline on the referenced element.
	Outline(ctx context.Context, ref ElementRef) error
	// ClearOutline removes the highlight outline from the referenced element.
	ClearOutline(ctx context.Context, ref ElementRef) error
	// Events streams interaction events. The channel closes when the page
	// surface goes away.
	Events() <-chan Event
	// Element resolves a ref against the page's current structure. It
	// fails when the element has been detached since the event fired.
	Element(ctx context.Context, ref ElementRef) (Element, error)
}

// Result is the outcome of one completed capture cycle. Immutable once
// emitted; produced exactly once per cycle.
type Result struct {
	Selector string `json:"selector"`
	Text     string `json:"textContent"`
	HTML     string `json:"html,omitempty"`
}

// Cancellation is the wire shape of a canceled-cycle notice.
type Cancellation struct {
	Reason string `json:"reason"`
}

// Sink receives capture outcomes. Wired to the message bus so results
// travel to the popup as data, never as a call.
type Sink interface {
	// Selected delivers the cycle's result.
	Selected(ctx context.Context, res Result)
	// Canceled reports a cycle that ended without a result.
	// Reason is "escape" or "navigation".
	Canceled(ctx context.Context, reason string)
}

// State is the engine's machine value: constructed fresh at Idle and
// replaced wholesale on every transition, never field-mutated, so no stale
// reference survives a cleanup.
type State struct {
	Active      bool
	Overlay     OverlayHandle
	Highlighted *ElementRef
}

// Reply status texts for the capture commands.
const (
	StatusStarted  = "Scraping started"
	StatusCanceled = "Scraping canceled"
)

// Cancellation reasons reported through Sink.Canceled.
const (
	ReasonEscape     = "escape"
	ReasonNavigation = "navigation"
)
