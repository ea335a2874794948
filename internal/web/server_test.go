package web

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/JonMunkholm/rejectlist/internal/auth"
	"github.com/JonMunkholm/rejectlist/internal/config"
	"github.com/JonMunkholm/rejectlist/internal/core"
	"github.com/JonMunkholm/rejectlist/internal/metrics"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	srv   *Server
	clock *testClock
}

// newTestServer builds a Server over memory backends. env overrides the
// configuration defaults.
func newTestServer(t *testing.T, env map[string]string) *testServer {
	t.Helper()
	return newTestServerWithSessions(t, env, auth.NewMemorySessionStore())
}

func newTestServerWithSessions(t *testing.T, env map[string]string, sessions auth.SessionStore) *testServer {
	t.Helper()
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	loc, err := cfg.Records.Location()
	require.NoError(t, err)

	m := metrics.New()
	service := core.NewService(core.NewMemoryStore(loc, nil), core.ServiceConfig{
		Location:             loc,
		MaxConcurrentImports: cfg.Ingest.MaxConcurrent,
		ImportWait:           cfg.Ingest.MaxWaitTime,
		MaxBatchSize:         cfg.Ingest.MaxBatchSize,
		Observer:             m,
	})

	ctx := context.Background()
	dir := auth.NewMemoryDirectory()
	require.NoError(t, dir.PutUser(ctx, auth.UserSpec{Username: "agent", Password: "secret"}))
	require.NoError(t, dir.PutUser(ctx, auth.UserSpec{Username: "lead", Password: "secret", Groups: []string{"Team Lead"}}))

	clock := &testClock{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	mgr := auth.NewManager(sessions, dir, auth.ManagerConfig{
		IdleTimeout:   cfg.Session.IdleTimeout,
		MaxAge:        cfg.Session.MaxAge,
		TeamLeadGroup: cfg.Auth.TeamLeadGroup,
		ExemptPaths:   cfg.Session.ExemptPaths,
		PassivePaths:  cfg.Session.PassivePaths,
		Now:           clock.Now,
		Observer:      m,
	})

	return &testServer{srv: NewServer(service, mgr, m, cfg), clock: clock}
}

func (ts *testServer) do(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
	}
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, username string) string {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/login", `{"user":"`+username+`","pw":"secret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	c := findCookie(rec, "sessionid")
	require.NotNil(t, c, "session cookie not set")
	return c.Value
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeList(t *testing.T, rec *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/login", `{"user":"lead","pw":"secret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	require.Equal(t, true, body["authenticated"])
	require.Equal(t, "lead", body["username"])
	require.Equal(t, "team_lead", body["user_type"])
	require.Equal(t, true, body["is_team_lead"])

	session := findCookie(rec, "sessionid")
	require.NotNil(t, session)
	require.True(t, session.HttpOnly)
	require.Equal(t, int((14 * 24 * time.Hour).Seconds()), session.MaxAge)

	marker := findCookie(rec, "logged_in")
	require.NotNil(t, marker)
	require.Equal(t, "true", marker.Value)
	require.False(t, marker.HttpOnly)
}

func TestLoginLongKeys(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodPost, "/api/login", `{"username":"agent","password":"secret"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeMap(t, rec)
	require.Equal(t, "user", body["user_type"])
	require.Equal(t, false, body["is_team_lead"])
}

func TestLoginInvalidCredentials(t *testing.T) {
	ts := newTestServer(t, nil)

	for _, payload := range []string{
		`{"user":"agent","pw":"wrong"}`,
		`{"user":"nobody","pw":"secret"}`,
		`{}`,
		``,
		`not json`,
		`{"user":"agent","pw":5}`,
		`{"user":"agent","pw":"secret","username":5}`,
	} {
		rec := ts.do(http.MethodPost, "/api/login", payload, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, payload)
		body := decodeMap(t, rec)
		require.Equal(t, "Invalid credentials", body["error"])
		require.Equal(t, "AUTH001", body["code"])
		require.NotContains(t, rec.Body.String(), "json:")
		require.Nil(t, findCookie(rec, "sessionid"))
	}
}

func TestCheckAuthAnonymous(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/check-auth", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"authenticated": false}, decodeMap(t, rec))
}

func TestLogout(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Logout successful", decodeMap(t, rec)["message"])
	for _, name := range []string{"sessionid", "logged_in", "csrftoken"} {
		c := findCookie(rec, name)
		require.NotNil(t, c, name)
		require.Negative(t, c.MaxAge, name)
	}

	rec = ts.do(http.MethodGet, "/api/check-auth", "", token)
	require.Equal(t, false, decodeMap(t, rec)["authenticated"])

	// Logging out without a session still succeeds.
	rec = ts.do(http.MethodPost, "/api/logout", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

type deleteFailingStore struct{ *auth.MemorySessionStore }

func (deleteFailingStore) Delete(context.Context, string) error {
	return errors.New("redis down")
}

func TestLogoutClearsCookiesWhenStoreFails(t *testing.T) {
	ts := newTestServerWithSessions(t, nil, deleteFailingStore{auth.NewMemorySessionStore()})
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/logout", "", token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "Logout successful", decodeMap(t, rec)["message"])
	for _, name := range []string{"sessionid", "logged_in", "csrftoken"} {
		c := findCookie(rec, name)
		require.NotNil(t, c, name)
		require.Negative(t, c.MaxAge, name)
	}
}

func TestClientsRequireLogin(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/clients", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH002", decodeMap(t, rec)["code"])

	rec = ts.do(http.MethodGet, "/api/clients", "", "bogus-token")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestClientsOpenWhenLoginNotRequired(t *testing.T) {
	ts := newTestServer(t, map[string]string{"AUTH_REQUIRE_LOGIN": "false"})

	rec := ts.do(http.MethodGet, "/api/clients", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]\n", rec.Body.String())
}

func TestIdleTimeout(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", "", token).Code)

	ts.clock.Advance(50 * time.Minute)
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", "", token).Code)

	// Activity was refreshed at +50m, so +100m is still within the hour.
	ts.clock.Advance(50 * time.Minute)
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", "", token).Code)

	ts.clock.Advance(61 * time.Minute)
	rec := ts.do(http.MethodGet, "/api/clients", "", token)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "true", rec.Header().Get("X-Session-Expired"))
	c := findCookie(rec, "sessionid")
	require.NotNil(t, c)
	require.Negative(t, c.MaxAge)

	// The session is gone for good.
	rec = ts.do(http.MethodGet, "/api/check-auth", "", token)
	require.Equal(t, map[string]any{"authenticated": false}, decodeMap(t, rec))
}

func TestCheckAuthReportsExpiry(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", "", token).Code)

	ts.clock.Advance(2 * time.Hour)
	rec := ts.do(http.MethodGet, "/api/check-auth", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"authenticated": false, "session_expired": true}, decodeMap(t, rec))
}

func TestCheckAuthDoesNotRefreshActivity(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", "", token).Code)

	ts.clock.Advance(50 * time.Minute)
	rec := ts.do(http.MethodGet, "/api/check-auth", "", token)
	require.Equal(t, true, decodeMap(t, rec)["authenticated"])

	ts.clock.Advance(20 * time.Minute)
	require.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/clients", "", token).Code)
}

func TestFailedRequestDoesNotRefreshActivity(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients", "", token).Code)

	ts.clock.Advance(50 * time.Minute)
	require.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/clients/999", "", token).Code)

	ts.clock.Advance(20 * time.Minute)
	require.Equal(t, http.StatusUnauthorized, ts.do(http.MethodGet, "/api/clients", "", token).Code)
}

func TestCreateSingleAndDuplicate(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients",
		`{"name":"Acme","contact_no":"555","proposal_date":"2024-01-01","status":"OPEN"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	require.Equal(t, "Client details added", body["message"])
	data := body["data"].(map[string]any)
	require.Equal(t, float64(1), data["id"])
	require.Equal(t, "Acme", data["name"])
	require.Nil(t, data["group"])
	require.True(t, strings.HasSuffix(data["created_at"].(string), "+05:30"), data["created_at"])

	rec = ts.do(http.MethodPost, "/api/clients",
		`{"name":"ACME","contact_no":"555","proposal_date":"2024-01-01","status":"OTHER"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]any{"message": "Duplicate client ignored"}, decodeMap(t, rec))

	list := decodeList(t, ts.do(http.MethodGet, "/api/clients", "", token))
	require.Len(t, list, 1)
}

func TestCreateValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients", `{"name":"Acme","file_seen":"12345678901"}`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeMap(t, rec)
	require.Contains(t, body, "file_seen")

	rec = ts.do(http.MethodPost, "/api/clients", `{"name":`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeMap(t, rec), core.NonFieldErrors)
}

func TestCreateBatch(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients",
		`{"name":"Acme","contact_no":"555","proposal_date":"2024-01-01"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodPost, "/api/clients", ` [
		{"name":"acme","contact_no":"555","proposal_date":"2024-01-01"},
		{"name":"Zenith","contact_no":"777"},
		{"name":"Bad","file_seen":"12345678901"},
		"not an object"
	]`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeMap(t, rec)
	require.Equal(t, float64(1), body["created_count"])
	require.Equal(t, float64(3), body["skipped_count"])
	created := body["created"].([]any)
	require.Len(t, created, 1)
	require.Equal(t, "Zenith", created[0].(map[string]any)["name"])
}

func TestCreateBatchTooLarge(t *testing.T) {
	ts := newTestServer(t, map[string]string{"INGEST_MAX_BATCH_SIZE": "2"})
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients", `[{"name":"a"},{"name":"b"},{"name":"c"}]`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, decodeMap(t, rec), core.NonFieldErrors)
	require.Empty(t, decodeList(t, ts.do(http.MethodGet, "/api/clients", "", token)))
}

func TestBodyTooLarge(t *testing.T) {
	ts := newTestServer(t, map[string]string{"INGEST_MAX_BODY_SIZE": "32"})
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients", `{"name":"`+strings.Repeat("x", 64)+`"}`, token)
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestListFilters(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients", `[
		{"name":"Acme Traders","status":"OPEN","location":"Pune"},
		{"name":"Zenith","status":"Closed","reason":"acme dispute"},
		{"name":"Orbit","status":"open"}
	]`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Acme Traders", "Zenith", "Orbit"}},
		{"?status=ALL", []string{"Acme Traders", "Zenith", "Orbit"}},
		{"?status=open", []string{"Acme Traders", "Orbit"}},
		{"?status=all", nil},
		{"?search=ACME", []string{"Acme Traders", "Zenith"}},
		{"?search=acme&status=closed", []string{"Zenith"}},
		{"?name=trad", []string{"Acme Traders"}},
		{"?search=pune&name=orbit", nil},
	}
	for _, tt := range tests {
		rec := ts.do(http.MethodGet, "/api/clients"+tt.query, "", token)
		require.Equal(t, http.StatusOK, rec.Code)

		var names []string
		for _, r := range decodeList(t, rec) {
			names = append(names, r["name"].(string))
		}
		require.Equal(t, tt.want, names, tt.query)
	}
}

func TestGetUpdateDelete(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients", `{"name":"Acme","contact_no":"555","status":"OPEN"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodGet, "/api/clients/1", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Acme", decodeMap(t, rec)["name"])

	rec = ts.do(http.MethodPut, "/api/clients/1", `{"id":50,"status":"CLOSED","contact_no":null}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	require.Equal(t, "Client details updated successfully", body["message"])
	data := body["data"].(map[string]any)
	require.Equal(t, float64(1), data["id"])
	require.Equal(t, "CLOSED", data["status"])
	require.Equal(t, "Acme", data["name"])
	require.Nil(t, data["contact_no"])

	rec = ts.do(http.MethodPatch, "/api/clients/1", `{"reason":"late"}`, token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "late", decodeMap(t, rec)["data"].(map[string]any)["reason"])

	rec = ts.do(http.MethodPut, "/api/clients/1", `{"file_seen":"12345678901"}`, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodDelete, "/api/clients/1", "", token)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Empty(t, rec.Body.String())

	require.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/api/clients/1", "", token).Code)
	require.Equal(t, http.StatusNotFound, ts.do(http.MethodDelete, "/api/clients/1", "", token).Code)
	require.Equal(t, http.StatusNotFound, ts.do(http.MethodPut, "/api/clients/1", `{"status":"X"}`, token).Code)
}

func TestUnknownIDs(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	for _, path := range []string{"/api/clients/999", "/api/clients/abc", "/api/clients/-1"} {
		rec := ts.do(http.MethodGet, path, "", token)
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		require.Equal(t, "REC001", decodeMap(t, rec)["code"], path)
	}
}

func TestTrailingSlash(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/clients/", "", token).Code)
}

func TestImportCSV(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	data := "Name,Contact No,Proposal Date,Status\n" +
		"Acme,555,2024-01-01,OPEN\n" +
		"ACME,555,2024-01-01,OPEN\n" +
		"Zenith,=\"0777\",,\n"

	req := httptest.NewRequest(http.MethodPost, "/api/clients/import", strings.NewReader(data))
	req.Header.Set("Content-Type", "text/csv")
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	require.Equal(t, float64(2), body["created_count"])
	require.Equal(t, float64(1), body["skipped_count"])

	list := decodeList(t, ts.do(http.MethodGet, "/api/clients?name=zenith", "", token))
	require.Len(t, list, 1)
	require.Equal(t, "0777", list[0]["contact_no"])
}

func TestImportMultipart(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	var buf bytes.Buffer
	mp := multipart.NewWriter(&buf)
	part, err := mp.CreateFormFile("file", "clients.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte("name,contact_no\nAcme,555\nZenith,777\n"))
	require.NoError(t, err)
	require.NoError(t, mp.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/clients/import", &buf)
	req.Header.Set("Content-Type", mp.FormDataContentType())
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
	rec := httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, float64(2), decodeMap(t, rec)["created_count"])
}

func TestImportRejectsBadFiles(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	for _, data := range []string{"", "foo,bar\n1,2\n"} {
		req := httptest.NewRequest(http.MethodPost, "/api/clients/import", strings.NewReader(data))
		req.Header.Set("Content-Type", "text/csv")
		req.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
		rec := httptest.NewRecorder()
		ts.srv.Router().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, data)
	}
}

func TestExportCSV(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")

	rec := ts.do(http.MethodPost, "/api/clients", `[
		{"name":"Acme","contact_no":"555","proposal_date":"2024-01-01","status":"OPEN"},
		{"name":"Zenith","status":"CLOSED"}
	]`, token)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(http.MethodGet, "/api/clients/export?status=open", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), "attachment;")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, exportColumns, rows[0])
	require.Equal(t, "1", rows[1][0])
	require.Equal(t, "Acme", rows[1][2])
	require.Equal(t, "2024-01-01T00:00:00+05:30", rows[1][3])
	require.Equal(t, "", rows[1][1]) // null group
}

func TestExportRoundTripsThroughImport(t *testing.T) {
	src := newTestServer(t, nil)
	token := src.login(t, "agent")
	rec := src.do(http.MethodPost, "/api/clients", `{"name":"Acme","contact_no":"555","proposal_date":"2024-01-01"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code)
	exported := src.do(http.MethodGet, "/api/clients/export", "", token).Body.String()

	dst := newTestServer(t, nil)
	dstToken := dst.login(t, "agent")
	req := httptest.NewRequest(http.MethodPost, "/api/clients/import", strings.NewReader(exported))
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: dstToken})
	rec = httptest.NewRecorder()
	dst.srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Equal(t, float64(1), decodeMap(t, rec)["created_count"])

	got := decodeMap(t, dst.do(http.MethodGet, "/api/clients/1", "", dstToken))
	require.Equal(t, "Acme", got["name"])
	require.Equal(t, "555", got["contact_no"])
	require.Equal(t, "2024-01-01T00:00:00+05:30", got["proposal_date"])
}

func TestExportKeepsSubSecondDates(t *testing.T) {
	ts := newTestServer(t, nil)
	token := ts.login(t, "agent")
	rec := ts.do(http.MethodPost, "/api/clients",
		`{"name":"Acme","contact_no":"555","proposal_date":"2024-01-01T10:00:00.123456+05:30"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	exported := ts.do(http.MethodGet, "/api/clients/export", "", token).Body.String()
	require.Contains(t, exported, "2024-01-01T10:00:00.123456+05:30")

	// Re-importing the export into the same store finds the existing record.
	req := httptest.NewRequest(http.MethodPost, "/api/clients/import", strings.NewReader(exported))
	req.AddCookie(&http.Cookie{Name: "sessionid", Value: token})
	rec = httptest.NewRecorder()
	ts.srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeMap(t, rec)
	require.Equal(t, float64(0), body["created_count"])
	require.Equal(t, float64(1), body["skipped_count"])
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decodeMap(t, rec)["status"])

	ts.login(t, "agent")
	rec = ts.do(http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `rejectlist_logins_total{result="success"} 1`)
	require.Contains(t, rec.Body.String(), "rejectlist_http_requests_total")
}

func TestSecurityHeaders(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/check-auth", "", "")
	require.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestLoginRateLimit(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"RATE_LIMIT_ENABLED": "true",
		"RATE_LIMIT_LOGIN":   "2",
	})

	for i := 0; i < 2; i++ {
		rec := ts.do(http.MethodPost, "/api/login", `{"user":"agent","pw":"wrong"}`, "")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec := ts.do(http.MethodPost, "/api/login", `{"user":"agent","pw":"secret"}`, "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
	require.Equal(t, "RATE001", decodeMap(t, rec)["code"])

	// Other routes use the general limit.
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/check-auth", "", "").Code)
}
