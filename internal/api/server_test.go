package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fieldops/tech-checkin/internal/checks"
	"github.com/fieldops/tech-checkin/internal/smartsheet"
	"github.com/fieldops/tech-checkin/internal/store"
	"github.com/fieldops/tech-checkin/internal/tracker"
	"github.com/fieldops/tech-checkin/pkg/config"
)

const testAPIKey = "test-service-key"

type capturingTexter struct {
	mu     sync.Mutex
	sent   []string
	alerts []string
}

func (c *capturingTexter) Send(ctx context.Context, to, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, to+": "+message)
	return nil
}

func (c *capturingTexter) NotifyAdmin(ctx context.Context, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, message)
	return nil
}

// trackerStub fakes the two Smartsheet endpoints the service talks to.
type trackerStub struct {
	mu      sync.Mutex
	updated map[int64][]smartsheet.Row
}

func (s *trackerStub) handler(t *testing.T) http.HandlerFunc {
	report := testReport()
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/reports/"):
			json.NewEncoder(w).Encode(report)
		case r.Method == http.MethodPut && r.URL.Path == "/sheets/555/rows":
			var rows []smartsheet.Row
			require.NoError(t, json.NewDecoder(r.Body).Decode(&rows))
			s.mu.Lock()
			if s.updated == nil {
				s.updated = make(map[int64][]smartsheet.Row)
			}
			s.updated[555] = append(s.updated[555], rows...)
			s.mu.Unlock()
			w.Write([]byte(`{"message":"SUCCESS","resultCode":0}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func testReport() *smartsheet.Sheet {
	titles := []string{
		"24 hour call", "1 HR Call", "Zip Code", "Secured Date", "Secured Time",
		"Address", "City", "State", "Tech Name(First and Last)", "Tech Phone #",
		"COMCAST PO", "WorkMarket #",
	}
	report := &smartsheet.Sheet{ID: 555, Name: "Tracker"}
	ids := map[string]int64{}
	for i, title := range titles {
		id := int64(300 + i)
		ids[title] = id
		report.Columns = append(report.Columns, smartsheet.Column{VirtualID: id, Title: title})
	}
	report.Rows = []smartsheet.Row{{
		ID:        9001,
		RowNumber: 1,
		Cells: []smartsheet.Cell{
			{VirtualColumnID: ids["Zip Code"], Value: float64(30301)},
			{VirtualColumnID: ids["Secured Date"], Value: "2026-03-11"},
			{VirtualColumnID: ids["Secured Time"], Value: float64(1330)},
			{VirtualColumnID: ids["Address"], Value: "12 Main St"},
			{VirtualColumnID: ids["City"], Value: "Atlanta"},
			{VirtualColumnID: ids["State"], Value: "GA"},
			{VirtualColumnID: ids["Tech Name(First and Last)"], Value: "Sam Rivera"},
			{VirtualColumnID: ids["Tech Phone #"], Value: "4045550101"},
			{VirtualColumnID: ids["COMCAST PO"], Value: "PO-7"},
		},
	}}
	return report
}

type serverFixture struct {
	server  *Server
	texter  *capturingTexter
	tracker *trackerStub
}

func newServerFixture(t *testing.T, mutate func(*config.Config)) *serverFixture {
	t.Helper()

	stub := &trackerStub{}
	ss := httptest.NewServer(stub.handler(t))
	t.Cleanup(ss.Close)

	cfg := &config.Config{
		APIKey:             testAPIKey,
		APIKeyHeader:       "API-Key",
		SmartsheetReportID: 42,
		RootPath:           "/",
	}
	if mutate != nil {
		mutate(cfg)
	}

	client := smartsheet.NewClient("test-token")
	client.SetBaseURL(ss.URL)

	texter := &capturingTexter{}
	st := store.NewNoop()
	linker := checks.NewFormLinker("https://n8n.example.com", "wf-42", cfg.FormTokenSecret, cfg.FormTokenTTL)
	runner := checks.NewRunner(client, cfg.SmartsheetReportID, tracker.DefaultColumns(), nil, texter, linker, st.Notifications(), nil)
	scheduler := checks.NewScheduler(nil)
	t.Cleanup(func() { scheduler.Shutdown(context.Background()) })

	return &serverFixture{
		server:  NewServer(cfg, st, runner, scheduler, linker, texter, nil),
		texter:  texter,
		tracker: stub,
	}
}

func (f *serverFixture) do(method, path, contentType string, body string, withKey bool) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", contentType)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if withKey {
		req.Header.Set("API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	f.server.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpointIsPublic(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(http.MethodGet, "/health", "", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.Contains(t, rec.Body.String(), "notification_log")
	// The fixture runs without a database, so the notification log must
	// report itself as absent rather than connected.
	assert.Contains(t, rec.Body.String(), "not configured")
}

func TestEndpointsRequireAPIKey(t *testing.T) {
	f := newServerFixture(t, nil)

	for _, path := range []string{"/formsubmit", "/24hrtext", "/1hrtext", "/checks/24hour"} {
		rec := f.do(http.MethodPost, path, "application/json", "{}", false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	rec := f.do(http.MethodGet, "/notifications", "", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestText24Hour(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{
		"tech_name": "Sam Rivera",
		"time": "2026-03-11T13:30:00Z",
		"location": "12 Main St, Atlanta, GA, 30301",
		"site_id": "PO-7",
		"work_order_num": "777123",
		"phone": "(404) 555-0101"
	}`
	rec := f.do(http.MethodPost, "/24hrtext", "application/json", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sent", resp["status"])
	assert.True(t, strings.HasPrefix(resp["form_url"], "https://n8n.example.com/form/wf-42?"), resp["form_url"])

	require.Len(t, f.texter.sent, 1)
	assert.True(t, strings.HasPrefix(f.texter.sent[0],
		"+14045550101: Please confirm the details of your appointment tomorrow: "), f.texter.sent[0])
}

func TestText24HourValidation(t *testing.T) {
	f := newServerFixture(t, nil)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing site", `{"phone": "4045550101"}`, "site_id is required"},
		{"missing phone", `{"site_id": "PO-7"}`, "phone is required"},
		{"bad phone", `{"site_id": "PO-7", "phone": "123", "time": "2026-03-11T13:30:00Z"}`, "too short"},
		{"bad json", `{`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/24hrtext", "application/json", tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestText1Hour(t *testing.T) {
	f := newServerFixture(t, nil)

	body := `{"site_id": "PO-7", "phone": "4045550101"}`
	rec := f.do(http.MethodPost, "/1hrtext", "application/json", body, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, f.texter.sent, 1)
	assert.Equal(t, "+14045550101: Reminder that your appointment (ID PO-7) is in one hour !", f.texter.sent[0])
}

func TestFormSubmitConfirmed(t *testing.T) {
	f := newServerFixture(t, nil)

	form := url.Values{"Site_ID": {"PO-7"}, "Correct": {"Yes"}}
	rec := f.do(http.MethodPost, "/formsubmit", "application/x-www-form-urlencoded", form.Encode(), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"confirmed"`)

	// The 24-hour checkbox lands back on the tracker sheet.
	require.Len(t, f.tracker.updated[555], 1)
	update := f.tracker.updated[555][0]
	assert.Equal(t, int64(9001), update.ID)
	require.Len(t, update.Cells, 1)
	assert.Equal(t, true, update.Cells[0].Value)
}

func TestFormSubmitCorrection(t *testing.T) {
	f := newServerFixture(t, nil)

	form := url.Values{
		"Site_ID":          {"PO-7"},
		"Correct":          {"No"},
		"Time":             {"2026-03-11 15:00"},
		"Other_Correction": {"gate code is 4321"},
	}
	rec := f.do(http.MethodPost, "/formsubmit", "application/x-www-form-urlencoded", form.Encode(), true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"correction_forwarded"`)

	require.Len(t, f.texter.alerts, 1)
	assert.Contains(t, f.texter.alerts[0], "PO-7")
	assert.Contains(t, f.texter.alerts[0], "gate code is 4321")
	assert.Empty(t, f.tracker.updated)
}

func TestFormSubmitUnknownSite(t *testing.T) {
	f := newServerFixture(t, nil)

	form := url.Values{"Site_ID": {"PO-404"}, "Correct": {"Yes"}}
	rec := f.do(http.MethodPost, "/formsubmit", "application/x-www-form-urlencoded", form.Encode(), true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFormSubmitRejectsBadSignature(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Config) {
		cfg.FormTokenSecret = "signing-secret"
	})

	form := url.Values{"Site_ID": {"PO-7"}, "Correct": {"Yes"}, "sig": {"forged"}}
	rec := f.do(http.MethodPost, "/formsubmit", "application/x-www-form-urlencoded", form.Encode(), true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, f.tracker.updated)
}

func TestRun24HourSweepEndpoint(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(http.MethodPost, "/checks/24hour", "", "", true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"completed"`)
}

func TestListNotifications(t *testing.T) {
	f := newServerFixture(t, nil)

	rec := f.do(http.MethodGet, "/notifications", "", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/notifications?limit=0", "", "", true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRootPathPrefix(t *testing.T) {
	f := newServerFixture(t, func(cfg *config.Config) {
		cfg.RootPath = "/checkin"
	})

	rec := f.do(http.MethodGet, "/checkin/health", "", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/health", "", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
