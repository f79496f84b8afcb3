package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/jobclip/dbopen"
	"github.com/hazyhaar/jobclip/popup"
	"github.com/hazyhaar/jobclip/relay"
	"github.com/hazyhaar/jobclip/selector"
	"github.com/hazyhaar/jobclip/store"
)

// stubEngine acknowledges capture commands like a live selector engine.
type stubEngine struct{}

func (stubEngine) HandleMessage(ctx context.Context, from relay.Sender, env relay.Envelope, respond relay.ReplyFunc) bool {
	if from != relay.SenderPopup {
		return false
	}
	switch env.Action {
	case relay.ActionStart:
		go respond(relay.StatusPayload(selector.StatusStarted))
	case relay.ActionCancel:
		go respond(relay.StatusPayload(selector.StatusCanceled))
	default:
		return false
	}
	return true
}

type stubTabs struct {
	opened []string
	closed []string
	active []string
}

func (s *stubTabs) OpenTab(ctx context.Context, url string) (string, error) {
	s.opened = append(s.opened, url)
	return fmt.Sprintf("tab-%d", len(s.opened)), nil
}

func (s *stubTabs) CloseTab(id string) error {
	s.closed = append(s.closed, id)
	return nil
}

func (s *stubTabs) Activate(id string) error {
	if id == "tab-missing" {
		return fmt.Errorf("no such tab %q", id)
	}
	s.active = append(s.active, id)
	return nil
}

type fixture struct {
	srv  *httptest.Server
	st   *store.Store
	tabs *stubTabs
	user *store.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewStore(dbopen.OpenMemory(t, dbopen.WithSchema(store.Schema)))
	user, err := st.CreateUser(context.Background(), "clipper", "hunter2!!!")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	bus := relay.NewBus(nil)
	ctrl := popup.NewController(popup.Config{
		Bus:   bus,
		Saver: NewRecordSaver(st),
	})
	bus.Subscribe(stubEngine{})
	bus.Subscribe(ctrl)

	tabs := &stubTabs{}
	s := New(Config{Store: st, Controller: ctrl, Tabs: tabs})

	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)
	return &fixture{srv: ts, st: st, tabs: tabs, user: user}
}

// call runs an authenticated request and decodes the JSON body.
func (f *fixture) call(t *testing.T, method, path, body string, out any) int {
	t.Helper()
	var rdr *strings.Reader
	if body == "" {
		rdr = strings.NewReader("")
	} else {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, f.srv.URL+path, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.SetBasicAuth("clipper", "hunter2!!!")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func TestHealth_NoAuth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAPI_RequiresAuth(t *testing.T) {
	f := newFixture(t)

	resp, err := http.Get(f.srv.URL + "/api/record")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 401 {
		t.Fatalf("no credentials: status = %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest("GET", f.srv.URL+"/api/record", nil)
	req.SetBasicAuth("clipper", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 401 {
		t.Fatalf("bad credentials: status = %d, want 401", resp.StatusCode)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	var me map[string]string
	if code := f.call(t, "GET", "/api/me", "", &me); code != 200 {
		t.Fatalf("status = %d", code)
	}
	if me["username"] != "clipper" || me["id"] != f.user.ID {
		t.Fatalf("me = %v", me)
	}
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)

	if code := f.call(t, "PUT", "/api/record/fields/jobTitle", `{"value":"Staff Engineer"}`, nil); code != 200 {
		t.Fatalf("set field: status = %d", code)
	}
	if code := f.call(t, "PUT", "/api/record/fields/jobUrl", `{"value":"https://jobs.example.com/123"}`, nil); code != 200 {
		t.Fatalf("set url: status = %d", code)
	}

	var draft draftResponse
	if code := f.call(t, "GET", "/api/record", "", &draft); code != 200 {
		t.Fatalf("get draft: status = %d", code)
	}
	if draft.Record.JobTitle != "Staff Engineer" {
		t.Fatalf("draft = %+v", draft)
	}

	if code := f.call(t, "POST", "/api/record/save", "", nil); code != 200 {
		t.Fatalf("save: status = %d", code)
	}

	// Draft reset, record persisted under the caller.
	if code := f.call(t, "GET", "/api/record", "", &draft); code != 200 {
		t.Fatal("get draft after save")
	}
	if draft.Record.JobTitle != "" {
		t.Fatalf("draft not reset: %+v", draft.Record)
	}

	var recs []*store.JobRecord
	if code := f.call(t, "GET", "/api/records", "", &recs); code != 200 {
		t.Fatal("list records")
	}
	if len(recs) != 1 || recs[0].JobTitle != "Staff Engineer" {
		t.Fatalf("records = %+v", recs)
	}
}

func TestSaveEmptyDraft(t *testing.T) {
	f := newFixture(t)
	var body map[string]string
	if code := f.call(t, "POST", "/api/record/save", "", &body); code != 400 {
		t.Fatalf("status = %d, want 400", code)
	}
	if body["error"] == "" {
		t.Fatal("missing error body")
	}
}

func TestCaptureEndpoints(t *testing.T) {
	f := newFixture(t)

	var body map[string]string
	if code := f.call(t, "POST", "/api/capture/jobTitle", "", &body); code != 200 {
		t.Fatalf("start: status = %d (%v)", code, body)
	}
	if body["field"] != "jobTitle" {
		t.Fatalf("body = %v", body)
	}

	// A second start conflicts while the first is pending.
	if code := f.call(t, "POST", "/api/capture/companyName", "", nil); code != 409 {
		t.Fatalf("second start: status = %d, want 409", code)
	}

	if code := f.call(t, "POST", "/api/capture/cancel", "", nil); code != 200 {
		t.Fatalf("cancel: status = %d", code)
	}

	// jobUrl is never captured from an element.
	if code := f.call(t, "POST", "/api/capture/jobUrl", "", nil); code != 409 {
		t.Fatalf("capture jobUrl: status = %d, want 409", code)
	}

	// Unknown fields are rejected outright.
	if code := f.call(t, "POST", "/api/capture/salary", "", nil); code != 400 {
		t.Fatalf("capture salary: status = %d, want 400", code)
	}
}

func TestCreateRecord(t *testing.T) {
	f := newFixture(t)

	var rec store.JobRecord
	body := `{"jobTitle":"Staff Engineer","companyName":"Acme Corp","jobUrl":"https://jobs.example.com/123"}`
	if code := f.call(t, "POST", "/api/records", body, &rec); code != 201 {
		t.Fatalf("create: status = %d", code)
	}
	if rec.ID == "" || rec.JobTitle != "Staff Engineer" {
		t.Fatalf("created = %+v", rec)
	}

	if code := f.call(t, "POST", "/api/records", `{}`, nil); code != 400 {
		t.Fatalf("create empty: status = %d, want 400", code)
	}

	var recs []*store.JobRecord
	if code := f.call(t, "GET", "/api/records", "", &recs); code != 200 {
		t.Fatal("list records")
	}
	if len(recs) != 1 || recs[0].ID != rec.ID {
		t.Fatalf("records = %+v", recs)
	}
}

func TestRecordCRUD(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec := &store.JobRecord{OwnerID: f.user.ID, JobTitle: "Staff Engineer"}
	if err := f.st.InsertRecord(ctx, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var got store.JobRecord
	if code := f.call(t, "GET", "/api/records/"+rec.ID, "", &got); code != 200 {
		t.Fatalf("get: status = %d", code)
	}
	if got.JobTitle != "Staff Engineer" {
		t.Fatalf("got = %+v", got)
	}

	if code := f.call(t, "PUT", "/api/records/"+rec.ID, `{"jobTitle":"Principal Engineer"}`, &got); code != 200 {
		t.Fatalf("update: status = %d", code)
	}
	if got.JobTitle != "Principal Engineer" {
		t.Fatalf("updated = %+v", got)
	}

	if code := f.call(t, "PUT", "/api/records/rec_missing", `{"jobTitle":"x"}`, nil); code != 404 {
		t.Fatalf("update missing: status = %d, want 404", code)
	}

	if code := f.call(t, "DELETE", "/api/records/"+rec.ID, "", nil); code != 200 {
		t.Fatalf("delete: status = %d", code)
	}
	if code := f.call(t, "GET", "/api/records/"+rec.ID, "", nil); code != 404 {
		t.Fatalf("get deleted: status = %d, want 404", code)
	}
}

func TestTabEndpoints(t *testing.T) {
	f := newFixture(t)

	var tab map[string]string
	if code := f.call(t, "POST", "/api/tabs", `{"url":"https://jobs.example.com/123"}`, &tab); code != 201 {
		t.Fatalf("open: status = %d", code)
	}
	if tab["id"] == "" {
		t.Fatalf("tab = %v", tab)
	}
	if code := f.call(t, "POST", "/api/tabs", `{"url":""}`, nil); code != 400 {
		t.Fatalf("open empty url: status = %d, want 400", code)
	}

	if code := f.call(t, "POST", "/api/tabs/"+tab["id"]+"/activate", "", nil); code != 200 {
		t.Fatalf("activate: status = %d", code)
	}
	if code := f.call(t, "POST", "/api/tabs/tab-missing/activate", "", nil); code != 404 {
		t.Fatalf("activate missing: status = %d, want 404", code)
	}

	if code := f.call(t, "DELETE", "/api/tabs/"+tab["id"], "", nil); code != 200 {
		t.Fatalf("close: status = %d", code)
	}
	if len(f.tabs.closed) != 1 {
		t.Fatalf("closed = %v", f.tabs.closed)
	}
}
