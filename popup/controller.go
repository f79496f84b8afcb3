// Package popup implements the capture controller: the user-facing side of
// the clipper that assembles a job record field by field.
//
// The controller never touches the page. It asks for a capture over the
// message bus, and the selected element comes back the same way. At most one
// field capture is pending at a time.
package popup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/hazyhaar/jobclip/clean"
	"github.com/hazyhaar/jobclip/relay"
	"github.com/hazyhaar/jobclip/selector"
)

// Field names a slot in the job record under assembly.
type Field string

const (
	FieldTitle       Field = "jobTitle"
	FieldCompany     Field = "companyName"
	FieldURL         Field = "jobUrl"
	FieldDescription Field = "jobDescription"
)

// ParseField maps a wire name to a Field.
func ParseField(s string) (Field, error) {
	switch Field(s) {
	case FieldTitle, FieldCompany, FieldURL, FieldDescription:
		return Field(s), nil
	}
	return "", fmt.Errorf("popup: unknown field %q", s)
}

// Record is the job record under assembly.
type Record struct {
	JobTitle       string `json:"jobTitle"`
	CompanyName    string `json:"companyName"`
	JobURL         string `json:"jobUrl"`
	JobDescription string `json:"jobDescription"`
}

// Empty reports whether no field has a value yet.
func (r Record) Empty() bool {
	return r.JobTitle == "" && r.CompanyName == "" && r.JobURL == "" && r.JobDescription == ""
}

// Saver persists a completed record. The store adapter implements this.
type Saver interface {
	SaveRecord(ctx context.Context, rec Record) error
}

// TabInfo reports the address of the page captures run against.
type TabInfo interface {
	// ActiveURL returns the active tab's URL, or false when no tab is open.
	ActiveURL() (string, bool)
}

// Controller errors.
var (
	ErrCapturePending = errors.New("popup: a capture is already pending")
	ErrNothingToSave  = errors.New("popup: record is empty")
	ErrURLNotCaptured = errors.New("popup: jobUrl is taken from the page address, not from an element")
)

// Controller drives field captures and holds the record under assembly.
type Controller struct {
	bus     *relay.Bus
	cleaner *clean.Cleaner
	saver   Saver
	tabs    TabInfo
	logger  *slog.Logger

	mu      sync.Mutex
	pending Field // "" when no capture is in flight
	rec     Record
}

// Config assembles a Controller.
type Config struct {
	Bus     *relay.Bus
	Cleaner *clean.Cleaner
	Saver   Saver
	Tabs    TabInfo
	Logger  *slog.Logger
}

// NewController creates a Controller. It does not subscribe itself to the
// bus; the caller wires subscriptions so assembly order stays in one place.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cleaner := cfg.Cleaner
	if cleaner == nil {
		cleaner = clean.New()
	}
	return &Controller{
		bus:     cfg.Bus,
		cleaner: cleaner,
		saver:   cfg.Saver,
		tabs:    cfg.Tabs,
		logger:  logger,
	}
}

// StartCapture begins capturing a field from the page. It sends the start
// command through the bus and blocks until the page acknowledges or ctx
// expires. While a capture is pending further starts fail with
// ErrCapturePending.
func (c *Controller) StartCapture(ctx context.Context, field Field) error {
	if _, err := ParseField(string(field)); err != nil {
		return err
	}
	if field == FieldURL {
		return ErrURLNotCaptured
	}

	c.mu.Lock()
	if c.pending != "" {
		c.mu.Unlock()
		return ErrCapturePending
	}
	c.pending = field
	c.mu.Unlock()

	if err := c.command(ctx, relay.ActionStart, selector.StatusStarted); err != nil {
		c.clearPending()
		return err
	}
	c.logger.Info("popup: capture started", "field", string(field))
	return nil
}

// CancelCapture aborts the pending capture, if any. Canceling with nothing
// pending is a no-op.
func (c *Controller) CancelCapture(ctx context.Context) error {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if pending == "" {
		return nil
	}

	err := c.command(ctx, relay.ActionCancel, selector.StatusCanceled)
	// The field is released even when the page is gone: there is nothing
	// left for a stale capture to complete against.
	c.clearPending()
	if err != nil {
		return err
	}
	c.logger.Info("popup: capture canceled", "field", string(pending))
	return nil
}

// command publishes a popup command and waits for the reply.
func (c *Controller) command(ctx context.Context, action, wantStatus string) error {
	env, err := relay.NewEnvelope(action, nil)
	if err != nil {
		return err
	}

	replies := make(chan []byte, 1)
	claimed := c.bus.Publish(ctx, relay.SenderPopup, env, func(payload []byte) {
		select {
		case replies <- payload:
		default:
		}
	})
	if !claimed {
		return errors.New(relay.MsgContentUnavailable)
	}

	select {
	case payload := <-replies:
		var r relay.Reply
		if err := json.Unmarshal(payload, &r); err != nil {
			return fmt.Errorf("popup: malformed reply: %w", err)
		}
		if r.Error != "" {
			return errors.New(r.Error)
		}
		if r.Status != wantStatus {
			return fmt.Errorf("popup: unexpected reply status %q", r.Status)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleMessage claims content-originated capture outcomes. Everything else
// passes through untouched.
func (c *Controller) HandleMessage(ctx context.Context, from relay.Sender, env relay.Envelope, respond relay.ReplyFunc) bool {
	if from != relay.SenderContent {
		return false
	}
	switch env.Action {
	case relay.ActionSelected:
		var res selector.Result
		if err := json.Unmarshal(env.Data, &res); err != nil {
			c.logger.Warn("popup: malformed selection result", "id", env.ID, "error", err)
			go respond(relay.ErrorPayload("malformed result"))
			return true
		}
		c.applyResult(res)
		go respond(relay.StatusPayload("success"))
		return true

	case relay.ActionCanceled:
		var can selector.Cancellation
		if err := json.Unmarshal(env.Data, &can); err == nil && can.Reason != "" {
			c.logger.Info("popup: capture canceled by page", "reason", can.Reason)
		}
		c.clearPending()
		go respond(relay.StatusPayload("success"))
		return true
	}
	return false
}

// applyResult merges a capture outcome into the pending field. A result
// with no pending field is stale (the user already canceled) and is
// dropped.
func (c *Controller) applyResult(res selector.Result) {
	pageURL := ""
	if c.tabs != nil {
		pageURL, _ = c.tabs.ActiveURL()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == "" {
		c.logger.Debug("popup: dropping result with no pending field",
			"selector", res.Selector)
		return
	}

	switch c.pending {
	case FieldTitle:
		c.rec.JobTitle = c.cleaner.Text(res.Text)
	case FieldCompany:
		c.rec.CompanyName = c.cleaner.Text(res.Text)
	case FieldDescription:
		c.rec.JobDescription = c.cleaner.Markdown(res.HTML, pageURL, res.Text)
	}
	if c.rec.JobURL == "" && pageURL != "" {
		c.rec.JobURL = pageURL
	}
	c.logger.Info("popup: field captured",
		"field", string(c.pending), "selector", res.Selector)
	c.pending = ""
}

// SetField applies a free-text edit to the record.
func (c *Controller) SetField(field Field, value string) error {
	if _, err := ParseField(string(field)); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	switch field {
	case FieldTitle:
		c.rec.JobTitle = strings.TrimSpace(value)
	case FieldCompany:
		c.rec.CompanyName = strings.TrimSpace(value)
	case FieldURL:
		c.rec.JobURL = strings.TrimSpace(value)
	case FieldDescription:
		c.rec.JobDescription = value
	}
	return nil
}

// SetRecord replaces the whole record under assembly.
func (c *Controller) SetRecord(rec Record) {
	c.mu.Lock()
	c.rec = rec
	c.mu.Unlock()
}

// Save persists the assembled record and resets the controller for the next
// one. On failure the record is kept so the user can retry.
func (c *Controller) Save(ctx context.Context) error {
	if c.saver == nil {
		return errors.New("popup: no saver configured")
	}

	c.mu.Lock()
	rec := c.rec
	c.mu.Unlock()
	if rec.Empty() {
		return ErrNothingToSave
	}

	if err := c.saver.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("save record: %w", err)
	}

	c.mu.Lock()
	c.rec = Record{}
	c.mu.Unlock()
	c.logger.Info("popup: record saved", "title", rec.JobTitle, "company", rec.CompanyName)
	return nil
}

// Snapshot returns a copy of the record under assembly.
func (c *Controller) Snapshot() Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rec
}

// Pending returns the field a capture is in flight for, or "".
func (c *Controller) Pending() Field {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) clearPending() {
	c.mu.Lock()
	c.pending = ""
	c.mu.Unlock()
}
