package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/capitalize-ai/stylemirror/internal/assist"
	"github.com/capitalize-ai/stylemirror/internal/bus"
	"github.com/capitalize-ai/stylemirror/internal/model"
	natsclient "github.com/capitalize-ai/stylemirror/internal/nats"
	"github.com/capitalize-ai/stylemirror/internal/seed"
	"github.com/capitalize-ai/stylemirror/internal/service"
	"github.com/capitalize-ai/stylemirror/internal/store"
	"github.com/capitalize-ai/stylemirror/pkg/logger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		// started by an init in opencensus, linked in through the genai client
		goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"),
	)
}

type testAPI struct {
	router       http.Handler
	orchestrator *service.Orchestrator
	bus          *bus.Bus
}

type apiOptions struct {
	style   service.StyleAnalyzer
	history HistoryReader
	nats    ConnChecker
}

func newTestAPI(t *testing.T, opts apiOptions) *testAPI {
	t.Helper()
	log := logger.NewNop()
	b := bus.New()

	style := opts.style
	if style == nil {
		style = assist.NewStyleClient(nil, log)
	}
	o := service.NewOrchestrator(store.New(), style, assist.NewReplyClient(nil, log), log, service.WithPublisher(b))
	t.Cleanup(o.Wait)

	contacts, err := seed.Default()
	require.NoError(t, err)
	require.NoError(t, o.Load(context.Background(), contacts))
	o.Wait()

	router := NewRouter(RouterConfig{
		Health:         NewHealthHandler(opts.nats, true, o.ContactCount),
		Contacts:       NewContactHandler(o, opts.history, log),
		Workflows:      NewWorkflowHandler(o, log),
		Events:         NewEventHandler(b, o, log),
		Logger:         log,
		AllowedOrigins: []string{"*"},
	})
	return &testAPI{router: router, orchestrator: o, bus: b}
}

func (a *testAPI) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestContacts_ListAndGet(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rec := api.do(t, http.MethodGet, "/api/v1/contacts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[model.ListContactsResponse](t, rec)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, "sarah", list.ActiveID)
	assert.True(t, list.Contacts[0].Active)
	require.NotNil(t, list.Contacts[0].Style, "first contact is analyzed on load")

	rec = api.do(t, http.MethodGet, "/api/v1/contacts/mom", "")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[model.ContactView](t, rec)
	assert.Equal(t, "Mom", view.Name)
	assert.False(t, view.Active)
	assert.Equal(t, model.DraftNone, view.DraftState)

	rec = api.do(t, http.MethodGet, "/api/v1/contacts/nobody", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestContacts_Select(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rec := api.do(t, http.MethodPost, "/api/v1/contacts/johnson/select", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[model.ContactView](t, rec).Active)
	api.orchestrator.Wait()

	view, err := api.orchestrator.View("johnson")
	require.NoError(t, err)
	require.NotNil(t, view.Style)
	assert.Equal(t, assist.MockProfile("Mr. Johnson (Boss)"), *view.Style)

	rec = api.do(t, http.MethodPost, "/api/v1/contacts/nobody/select", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type gatedStyle struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStyle) AnalyzeStyle(ctx context.Context, name string, msgs []model.Message) model.StyleProfile {
	g.entered <- struct{}{}
	<-g.release
	return model.NeutralProfile()
}

func TestContacts_Analyze(t *testing.T) {
	g := &gatedStyle{entered: make(chan struct{}, 1), release: make(chan struct{})}
	close(g.release) // let the load-time analysis through
	api := newTestAPI(t, apiOptions{style: g})
	<-g.entered

	g.release = make(chan struct{})
	rec := api.do(t, http.MethodPost, "/api/v1/contacts/mom/analyze", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	<-g.entered

	rec = api.do(t, http.MethodPost, "/api/v1/contacts/mom/analyze", "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(g.release)
	api.orchestrator.Wait()

	view, err := api.orchestrator.View("mom")
	require.NoError(t, err)
	assert.Equal(t, model.AnalysisCompleted, view.Analysis)
}

func TestWorkflows_Send(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rec := api.do(t, http.MethodPost, "/api/v1/messages", `{"text":"   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/messages", `{"text":"omw"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	msg := decode[model.Message](t, rec)
	assert.Equal(t, model.SenderSelf, msg.Sender)
	assert.Equal(t, "omw", msg.Text)

	view, err := api.orchestrator.View("sarah")
	require.NoError(t, err)
	assert.Equal(t, "omw", view.Messages[len(view.Messages)-1].Text)

	rec = api.do(t, http.MethodPost, "/api/v1/messages", `{"text":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWorkflows_RequireJSON(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages", strings.NewReader("hello"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestWorkflows_ConfirmationFlow(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	require.Equal(t, http.StatusOK, api.do(t, http.MethodPost, "/api/v1/contacts/johnson/select", "").Code)
	api.orchestrator.Wait()

	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, "/api/v1/incoming/confirm", "").Code)

	rec := api.do(t, http.MethodPost, "/api/v1/incoming", `{"text":"Can you send the report?"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, model.SenderOther, decode[model.Message](t, rec).Sender)

	view := decode[model.ContactView](t, api.do(t, http.MethodGet, "/api/v1/contacts/johnson", ""))
	assert.Equal(t, model.DraftAwaitingConfirmation, view.DraftState)
	assert.Equal(t, "Can you send the report?", view.PendingIncoming)

	rec = api.do(t, http.MethodPost, "/api/v1/incoming/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[service.Draft](t, rec)
	assert.Equal(t, service.Draft{ContactID: "johnson", Text: assist.ReplyClarifyFormal}, got)

	view = decode[model.ContactView](t, api.do(t, http.MethodGet, "/api/v1/contacts/johnson", ""))
	assert.Equal(t, model.DraftReady, view.DraftState)

	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/v1/incoming", `{"text":"lol"}`).Code)
	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodPost, "/api/v1/incoming/dismiss", "").Code)
	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodPost, "/api/v1/incoming/dismiss", "").Code)
}

func TestWorkflows_Drafts(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rec := api.do(t, http.MethodPost, "/api/v1/drafts", `{"incoming_text":"haha no way"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[service.Draft](t, rec)
	assert.Equal(t, assist.ReplyLaugh, got.Text)
	assert.Equal(t, api.orchestrator.ActiveID(), got.ContactID)

	assert.Equal(t, http.StatusNoContent, api.do(t, http.MethodDelete, "/api/v1/drafts", "").Code)
	assert.Equal(t, http.StatusConflict, api.do(t, http.MethodDelete, "/api/v1/drafts", "").Code)

	// no body replies to the latest incoming message
	rec = api.do(t, http.MethodPost, "/api/v1/drafts", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[service.Draft](t, rec).Text)
}

func TestWorkflows_Import(t *testing.T) {
	api := newTestAPI(t, apiOptions{})

	rec := api.do(t, http.MethodPost, "/api/v1/imports", `{"name":"  ","transcript":"Me: hi"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body := `{"name":"Dana","transcript":"Me: yo\nThem: hey\nrandom line\nMe: dinner?"}`
	rec = api.do(t, http.MethodPost, "/api/v1/imports", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	view := decode[model.ContactView](t, rec)
	assert.True(t, strings.HasPrefix(view.ID, "imported-"))
	assert.Equal(t, "/api/v1/contacts/"+view.ID, rec.Header().Get("Location"))
	assert.True(t, view.Active)
	assert.Len(t, view.Messages, 4)
	assert.Equal(t, model.GeneratedAvatarURL("Dana"), view.AvatarURL)
	api.orchestrator.Wait()

	list := decode[model.ListContactsResponse](t, api.do(t, http.MethodGet, "/api/v1/contacts", ""))
	assert.Equal(t, view.ID, list.Contacts[0].ID, "imports go to the front")
	require.NotNil(t, list.Contacts[0].Style)
}

type fakeConn struct{ connected bool }

func (f fakeConn) IsConnected() bool { return f.connected }

func TestHealth(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	assert.Equal(t, http.StatusOK, api.do(t, http.MethodGet, "/health", "").Code)

	rec := api.do(t, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rec.Code)
	ready := decode[map[string]any](t, rec)
	assert.Equal(t, true, ready["demo_mode"])
	assert.EqualValues(t, 3, ready["contacts"])

	down := newTestAPI(t, apiOptions{nats: fakeConn{connected: false}})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/ready", "").Code)

	up := newTestAPI(t, apiOptions{nats: fakeConn{connected: true}})
	assert.Equal(t, http.StatusOK, up.do(t, http.MethodGet, "/ready", "").Code)
}

type fakeHistory struct {
	events []natsclient.StoredEvent
	err    error
	after  uint64
	limit  int
}

func (f *fakeHistory) History(ctx context.Context, contactID string, afterSequence uint64, limit int) ([]natsclient.StoredEvent, bool, error) {
	f.after, f.limit = afterSequence, limit
	return f.events, false, f.err
}

func TestContacts_History(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	assert.Equal(t, http.StatusNotImplemented, api.do(t, http.MethodGet, "/api/v1/contacts/sarah/history", "").Code)

	h := &fakeHistory{events: []natsclient.StoredEvent{{
		ContactEvent: model.ContactEvent{ID: "e1", ContactID: "sarah", Type: model.EventDraftReady},
		Sequence:     7,
	}}}
	api = newTestAPI(t, apiOptions{history: h})

	rec := api.do(t, http.MethodGet, "/api/v1/contacts/sarah/history?after_sequence=3&limit=10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, h.after)
	assert.Equal(t, 10, h.limit)
	assert.Contains(t, rec.Body.String(), `"sequence":7`)
	assert.Contains(t, rec.Body.String(), `"type":"contact.draft_ready"`)

	assert.Equal(t, http.StatusNotFound, api.do(t, http.MethodGet, "/api/v1/contacts/nobody/history", "").Code)

	h.err = errors.New("nats: timeout")
	assert.Equal(t, http.StatusInternalServerError, api.do(t, http.MethodGet, "/api/v1/contacts/sarah/history", "").Code)
}

func TestEvents_Stream(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	srv := httptest.NewServer(api.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events?contact_id=johnson", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "":
				return event, data
			}
		}
	}

	event, data := next()
	require.Equal(t, "snapshot", event)
	assert.Contains(t, data, `"active_id":"sarah"`)

	// events for other contacts are filtered out
	require.NoError(t, api.orchestrator.Select(context.Background(), "mom"))
	require.NoError(t, api.orchestrator.Select(context.Background(), "johnson"))

	event, data = next()
	assert.Equal(t, string(model.EventContactSelected), event)
	var evt model.ContactEvent
	require.NoError(t, json.Unmarshal([]byte(data), &evt))
	assert.Equal(t, "johnson", evt.ContactID)

	cancel()
	api.orchestrator.Wait()
	assert.Eventually(t, func() bool { return api.bus.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestEvents_InvalidType(t *testing.T) {
	api := newTestAPI(t, apiOptions{})
	rec := api.do(t, http.MethodGet, "/api/v1/events?type=draft", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
