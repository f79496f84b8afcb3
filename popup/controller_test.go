package popup_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hazyhaar/jobclip/popup"
	"github.com/hazyhaar/jobclip/relay"
	"github.com/hazyhaar/jobclip/selector"
	"github.com/hazyhaar/jobclip/selector/dompage"
)

// fakeEngine acts as the content side of the bus: it acknowledges popup
// commands the way a selector engine would.
type fakeEngine struct {
	mu       sync.Mutex
	started  int
	canceled int
	fail     string // when set, commands are answered with this error
}

func (f *fakeEngine) HandleMessage(ctx context.Context, from relay.Sender, env relay.Envelope, respond relay.ReplyFunc) bool {
	if from != relay.SenderPopup {
		return false
	}
	f.mu.Lock()
	fail := f.fail
	switch env.Action {
	case relay.ActionStart:
		f.started++
	case relay.ActionCancel:
		f.canceled++
	default:
		f.mu.Unlock()
		return false
	}
	f.mu.Unlock()

	if fail != "" {
		go respond(relay.ErrorPayload(fail))
		return true
	}
	switch env.Action {
	case relay.ActionStart:
		go respond(relay.StatusPayload(selector.StatusStarted))
	case relay.ActionCancel:
		go respond(relay.StatusPayload(selector.StatusCanceled))
	}
	return true
}

func (f *fakeEngine) counts() (started, canceled int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.canceled
}

type fakeTabs struct {
	url string
	ok  bool
}

func (f fakeTabs) ActiveURL() (string, bool) { return f.url, f.ok }

type fakeSaver struct {
	mu    sync.Mutex
	saved []popup.Record
	err   error
}

func (f *fakeSaver) SaveRecord(ctx context.Context, rec popup.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

// newController wires a controller, a fake engine, and a bus.
func newController(t *testing.T) (*popup.Controller, *fakeEngine, *relay.Bus) {
	t.Helper()
	bus := relay.NewBus(nil)
	eng := &fakeEngine{}
	saver := &fakeSaver{}
	ctrl := popup.NewController(popup.Config{
		Bus:   bus,
		Saver: saver,
		Tabs:  fakeTabs{url: "https://jobs.example.com/123", ok: true},
	})
	bus.Subscribe(eng)
	bus.Subscribe(ctrl)
	return ctrl, eng, bus
}

// deliverResult publishes a content-side capture outcome and waits for the
// controller's acknowledgement.
func deliverResult(t *testing.T, bus *relay.Bus, res selector.Result) {
	t.Helper()
	env, err := relay.NewEnvelope(relay.ActionSelected, res)
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	acked := make(chan []byte, 1)
	if !bus.Publish(context.Background(), relay.SenderContent, env, func(p []byte) { acked <- p }) {
		t.Fatal("result not claimed")
	}
	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("result not acknowledged")
	}
}

func deliverCanceled(t *testing.T, bus *relay.Bus, reason string) {
	t.Helper()
	env, err := relay.NewEnvelope(relay.ActionCanceled, selector.Cancellation{Reason: reason})
	if err != nil {
		t.Fatalf("NewEnvelope: %v", err)
	}
	acked := make(chan []byte, 1)
	if !bus.Publish(context.Background(), relay.SenderContent, env, func(p []byte) { acked <- p }) {
		t.Fatal("cancellation not claimed")
	}
	select {
	case <-acked:
	case <-time.After(2 * time.Second):
		t.Fatal("cancellation not acknowledged")
	}
}

func TestStartCapture(t *testing.T) {
	ctrl, eng, _ := newController(t)

	if err := ctrl.StartCapture(context.Background(), popup.FieldTitle); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if got := ctrl.Pending(); got != popup.FieldTitle {
		t.Fatalf("Pending = %q, want jobTitle", got)
	}
	if started, _ := eng.counts(); started != 1 {
		t.Fatalf("started = %d, want 1", started)
	}
}

func TestStartCapture_RefusedWhilePending(t *testing.T) {
	ctrl, _, _ := newController(t)

	if err := ctrl.StartCapture(context.Background(), popup.FieldTitle); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if err := ctrl.StartCapture(context.Background(), popup.FieldCompany); !errors.Is(err, popup.ErrCapturePending) {
		t.Fatalf("err = %v, want ErrCapturePending", err)
	}
}

func TestStartCapture_URLField(t *testing.T) {
	ctrl, _, _ := newController(t)
	if err := ctrl.StartCapture(context.Background(), popup.FieldURL); !errors.Is(err, popup.ErrURLNotCaptured) {
		t.Fatalf("err = %v, want ErrURLNotCaptured", err)
	}
}

func TestStartCapture_UnknownField(t *testing.T) {
	ctrl, _, _ := newController(t)
	if err := ctrl.StartCapture(context.Background(), popup.Field("salary")); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestStartCapture_NobodyListening(t *testing.T) {
	bus := relay.NewBus(nil)
	ctrl := popup.NewController(popup.Config{Bus: bus})
	bus.Subscribe(ctrl)

	err := ctrl.StartCapture(context.Background(), popup.FieldTitle)
	if err == nil || err.Error() != relay.MsgContentUnavailable {
		t.Fatalf("err = %v, want %q", err, relay.MsgContentUnavailable)
	}
	if ctrl.Pending() != "" {
		t.Fatal("pending not cleared after failed start")
	}
}

func TestStartCapture_PageError(t *testing.T) {
	ctrl, eng, _ := newController(t)
	eng.fail = relay.MsgNoActiveTab

	err := ctrl.StartCapture(context.Background(), popup.FieldTitle)
	if err == nil || err.Error() != relay.MsgNoActiveTab {
		t.Fatalf("err = %v, want %q", err, relay.MsgNoActiveTab)
	}
	if ctrl.Pending() != "" {
		t.Fatal("pending not cleared after page error")
	}
}

func TestCaptureTitle_MergesResult(t *testing.T) {
	ctrl, _, bus := newController(t)

	if err := ctrl.StartCapture(context.Background(), popup.FieldTitle); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	deliverResult(t, bus, selector.Result{
		Selector: "h1#title",
		Text:     "  Staff\n Engineer  ",
	})

	rec := ctrl.Snapshot()
	if rec.JobTitle != "Staff Engineer" {
		t.Errorf("JobTitle = %q", rec.JobTitle)
	}
	if rec.JobURL != "https://jobs.example.com/123" {
		t.Errorf("JobURL = %q, want page address", rec.JobURL)
	}
	if ctrl.Pending() != "" {
		t.Error("pending not cleared after result")
	}
}

func TestCaptureDescription_ConvertsHTML(t *testing.T) {
	ctrl, _, bus := newController(t)

	if err := ctrl.StartCapture(context.Background(), popup.FieldDescription); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	deliverResult(t, bus, selector.Result{
		Selector: "section.description",
		Text:     "We build tools.",
		HTML:     `<section class="description"><p>We build <strong>tools</strong>.</p></section>`,
	})

	rec := ctrl.Snapshot()
	if !strings.Contains(rec.JobDescription, "**tools**") {
		t.Errorf("JobDescription = %q, want markdown", rec.JobDescription)
	}
}

func TestStaleResult_Dropped(t *testing.T) {
	ctrl, _, bus := newController(t)

	// No capture pending: the result is acknowledged but discarded.
	deliverResult(t, bus, selector.Result{Selector: "h1#title", Text: "Staff Engineer"})

	if rec := ctrl.Snapshot(); !rec.Empty() {
		t.Fatalf("stale result merged: %+v", rec)
	}
}

func TestSelectionCanceled_ClearsPending(t *testing.T) {
	ctrl, _, bus := newController(t)

	if err := ctrl.StartCapture(context.Background(), popup.FieldTitle); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	deliverCanceled(t, bus, selector.ReasonEscape)

	if ctrl.Pending() != "" {
		t.Fatal("pending not cleared by cancellation")
	}
	if rec := ctrl.Snapshot(); !rec.Empty() {
		t.Fatalf("cancellation mutated record: %+v", rec)
	}
}

func TestCancelCapture(t *testing.T) {
	ctrl, eng, _ := newController(t)

	if err := ctrl.StartCapture(context.Background(), popup.FieldTitle); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}
	if err := ctrl.CancelCapture(context.Background()); err != nil {
		t.Fatalf("CancelCapture: %v", err)
	}
	if ctrl.Pending() != "" {
		t.Fatal("pending not cleared")
	}
	if _, canceled := eng.counts(); canceled != 1 {
		t.Fatalf("canceled = %d, want 1", canceled)
	}
}

func TestCancelCapture_Idle(t *testing.T) {
	ctrl, eng, _ := newController(t)
	if err := ctrl.CancelCapture(context.Background()); err != nil {
		t.Fatalf("idle CancelCapture: %v", err)
	}
	if _, canceled := eng.counts(); canceled != 0 {
		t.Fatal("idle cancel reached the page")
	}
}

func TestSetFieldAndSave(t *testing.T) {
	bus := relay.NewBus(nil)
	saver := &fakeSaver{}
	ctrl := popup.NewController(popup.Config{Bus: bus, Saver: saver})

	ctrl.SetField(popup.FieldTitle, " Staff Engineer ")
	ctrl.SetField(popup.FieldURL, "https://jobs.example.com/123")

	if err := ctrl.Save(context.Background()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(saver.saved))
	}
	if got := saver.saved[0].JobTitle; got != "Staff Engineer" {
		t.Errorf("JobTitle = %q", got)
	}
	if !ctrl.Snapshot().Empty() {
		t.Error("record not reset after save")
	}
}

func TestSave_Empty(t *testing.T) {
	ctrl := popup.NewController(popup.Config{Bus: relay.NewBus(nil), Saver: &fakeSaver{}})
	if err := ctrl.Save(context.Background()); !errors.Is(err, popup.ErrNothingToSave) {
		t.Fatalf("err = %v, want ErrNothingToSave", err)
	}
}

func TestSave_FailureKeepsRecord(t *testing.T) {
	saver := &fakeSaver{err: errors.New("disk full")}
	ctrl := popup.NewController(popup.Config{Bus: relay.NewBus(nil), Saver: saver})
	ctrl.SetField(popup.FieldTitle, "Staff Engineer")

	if err := ctrl.Save(context.Background()); err == nil {
		t.Fatal("expected save error")
	}
	if got := ctrl.Snapshot().JobTitle; got != "Staff Engineer" {
		t.Fatalf("record lost on failed save: %q", got)
	}
}

func TestController_IgnoresPopupMessages(t *testing.T) {
	ctrl, _, _ := newController(t)
	env, _ := relay.NewEnvelope(relay.ActionSelected, selector.Result{Text: "x"})
	claimed := ctrl.HandleMessage(context.Background(), relay.SenderPopup, env, func([]byte) {})
	if claimed {
		t.Fatal("controller claimed a popup-originated message")
	}
}

// TestCaptureTitle_EndToEnd wires the real bus, forwarder, engine, and
// in-memory page together and captures a title by clicking the heading.
func TestCaptureTitle_EndToEnd(t *testing.T) {
	const page = `<!DOCTYPE html>
<html><head><title>Opening</title></head>
<body><main><h1 id="title">Staff Engineer</h1></main></body></html>`

	doc, err := dompage.ParseString(page)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	surface := dompage.NewPage(doc)

	bus := relay.NewBus(nil)
	eng := selector.NewEngine(selector.EngineConfig{
		Page: surface,
		Sink: &selector.BusSink{Bus: bus},
	})
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go eng.Run(ctx)

	dir := staticTabs{id: "tab-1", url: "https://jobs.example.com/123"}
	fwd := relay.NewForwarder(dir)
	fwd.RegisterContent("tab-1", eng.Handle)
	t.Cleanup(func() { fwd.Close() })

	saver := &fakeSaver{}
	ctrl := popup.NewController(popup.Config{Bus: bus, Saver: saver, Tabs: dir})
	bus.Subscribe(fwd)
	bus.Subscribe(ctrl)

	if err := ctrl.StartCapture(ctx, popup.FieldTitle); err != nil {
		t.Fatalf("StartCapture: %v", err)
	}

	surface.Click("1/0/0") // the h1

	deadline := time.Now().Add(2 * time.Second)
	for ctrl.Pending() != "" && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	rec := ctrl.Snapshot()
	if rec.JobTitle != "Staff Engineer" {
		t.Fatalf("JobTitle = %q, want Staff Engineer", rec.JobTitle)
	}
	if rec.JobURL != "https://jobs.example.com/123" {
		t.Fatalf("JobURL = %q", rec.JobURL)
	}

	if err := ctrl.Save(ctx); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("saved %d records, want 1", len(saver.saved))
	}
}

// staticTabs satisfies both the forwarder's directory and the controller's
// tab info with one fixed tab.
type staticTabs struct {
	id  string
	url string
}

func (s staticTabs) ActiveTab() (string, bool) { return s.id, true }
func (s staticTabs) ActiveURL() (string, bool) { return s.url, true }
