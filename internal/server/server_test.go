package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jobscan/internal/backend"
	"github.com/GriffinCanCode/jobscan/internal/domains"
	"github.com/GriffinCanCode/jobscan/internal/history"
	"github.com/GriffinCanCode/jobscan/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
	"github.com/GriffinCanCode/jobscan/internal/session"
	"github.com/GriffinCanCode/jobscan/internal/storage"
	"github.com/GriffinCanCode/jobscan/internal/types"
)

const applyPage = `<html><head><title>Backend Engineer at Acme</title></head><body>
	<form>
		<label for="email">Email *</label><input id="email" type="email" required>
		<input name="first_name">
		<button type="submit">Submit Application</button>
	</form>
</body></html>`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, client *backend.Client) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	metrics := monitoring.NewMetrics(reg)
	policy, err := domains.NewPolicy(nil, []string{"*.blocked.example"})
	require.NoError(t, err)

	return New(Config{Development: true}, Deps{
		Scanner:  scanner.New(scanner.Options{Attempts: 1}, nil, metrics),
		Sessions: session.NewManager(storage.NewMemoryStore(), session.DefaultConfig(), nil, session.WithPolicy(policy)),
		Policy:   policy,
		History:  history.New(storage.NewMemoryStore(), nil),
		Backend:  client,
		Metrics:  metrics,
		Gatherer: reg,
	})
}

func do(t *testing.T, s *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func scanJSON(t *testing.T, url, page string, track bool) string {
	t.Helper()
	b, err := json.Marshal(scanRequest{URL: url, HTML: page, Track: track})
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/health", "", "")

	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 0, body["sessions"])
	assert.NotContains(t, body, "backend")
}

func TestScanJSONAndTrack(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/scan", "application/json",
		scanJSON(t, "https://jobs.acme.com/apply/7", applyPage, true))

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[scanResponse](t, w)
	require.NotNil(t, resp.Scan)
	assert.Len(t, resp.Scan.Fields, 2)
	assert.Equal(t, session.OutcomeCreated, resp.Outcome)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "jobs.acme.com", resp.Session.Domain)

	w = do(t, s, http.MethodGet, "/sessions/"+resp.Session.ID, "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodGet, "/sessions/domain/jobs.acme.com", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodGet, "/sessions/domain/Jobs.Acme.COM", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, resp.Session.ID, decode[types.Session](t, w).ID)
}

func TestScanRawBody(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/scan?url=https://jobs.acme.com/apply/7", "text/html", applyPage)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[scanResponse](t, w)
	assert.Equal(t, "https://jobs.acme.com/apply/7", resp.Scan.URL)
	assert.Nil(t, resp.Session)
}

func TestScanRejections(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name        string
		contentType string
		body        string
		want        int
	}{
		{"empty body", "text/html", "   ", http.StatusBadRequest},
		{"binary body", "application/octet-stream", "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00", http.StatusUnsupportedMediaType},
		{"nothing recognizable", "text/html", "<html><body><p>hello</p></body></html>", http.StatusUnprocessableEntity},
		{"bad json", "application/json", "{", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/scan?url=https://example.com/", tt.contentType, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestScanBlockedDomainNotTracked(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/scan", "application/json",
		scanJSON(t, "https://jobs.blocked.example/apply", applyPage, true))

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[scanResponse](t, w)
	assert.Equal(t, session.OutcomeBlocked, resp.Outcome)
	assert.Nil(t, resp.Session)
}

func TestScanFrames(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"frames":[
		{"id":"top","top":true,"url":"https://careers.acme.com/jobs/7","html":"<html><head><title>Backend Engineer at Acme</title></head><body><p>About the role</p></body></html>"},
		{"id":"frame_1","url":"https://boards.ats.example/embed","html":` + mustJSON(t, applyPage) + `},
		{"id":"frame_2","html":""}
	]}`
	w := do(t, s, http.MethodPost, "/scan/frames", "application/json", body)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[scanResponse](t, w)
	assert.Len(t, resp.Scan.Fields, 2)
	assert.Equal(t, "https://careers.acme.com/jobs/7", resp.Scan.URL)

	w = do(t, s, http.MethodPost, "/scan/frames", "application/json", `{"frames":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}

func TestSessionCRUD(t *testing.T) {
	s := newTestServer(t, nil)
	scan := types.PageScan{
		URL:             "https://jobs.acme.com/apply/1",
		TitleCandidates: []string{"Engineer"},
		Fields:          []types.FieldDescriptor{{ID: "email", Type: types.FieldEmail, Label: "Email"}},
	}
	w := do(t, s, http.MethodPost, "/sessions", "application/json", mustJSON(t, scan))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[types.Session](t, w)

	w = do(t, s, http.MethodGet, "/sessions", "", "")
	list := decode[map[string][]types.Session](t, w)
	require.Len(t, list["sessions"], 1)
	assert.Equal(t, created.ID, list["sessions"][0].ID)

	w = do(t, s, http.MethodDelete, "/sessions/"+created.ID, "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodDelete, "/sessions/"+created.ID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, s, http.MethodGet, "/sessions/"+created.ID, "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/sessions", "application/json", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDispatchEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/dispatch", "application/json", `{"domain":"https://jobs.acme.com/x","session_id":"abc"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/dispatch?domain=apply.acme.com", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	d := decode[types.SpaDispatch](t, w)
	assert.Equal(t, "abc", d.SessionID)

	w = do(t, s, http.MethodDelete, "/dispatch", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(t, s, http.MethodGet, "/dispatch?domain=jobs.acme.com", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPost, "/dispatch", "application/json", `{"domain":"acme.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDomainRules(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/domains/check?host=a.blocked.example", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[domains.Decision](t, w).Allowed)

	w = do(t, s, http.MethodPut, "/domains", "application/json", `{"allow":["*.acme.com"],"deny":[]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	rules := decode[rulesRequest](t, w)
	assert.Equal(t, []string{"*.acme.com"}, rules.Allow)

	w = do(t, s, http.MethodGet, "/domains/check?host=https://jobs.acme.com/x", "", "")
	assert.True(t, decode[domains.Decision](t, w).Allowed)
	w = do(t, s, http.MethodGet, "/domains/check?host=other.com", "", "")
	assert.False(t, decode[domains.Decision](t, w).Allowed)
	w = do(t, s, http.MethodGet, "/domains/check", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTabOverlays(t *testing.T) {
	s := newTestServer(t, nil)

	w := do(t, s, http.MethodPost, "/tabs/7/overlay", "application/json", `{"session_id":"s1","kind":"fill","url":"https://jobs.acme.com/a"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/tabs", "", "")
	assert.Len(t, decode[map[string][]map[string]any](t, w)["tabs"], 1)

	w = do(t, s, http.MethodPost, "/tabs/7/navigate", "application/json", `{"url":"https://jobs.acme.com/b"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["cleared"])

	w = do(t, s, http.MethodDelete, "/tabs/7/overlay", "", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestApplyWithoutBackend(t *testing.T) {
	s := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/apply", "application/json", `{"session_id":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestApplyFlow(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/applications":
			var payload backend.ScanPayload
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "Acme", payload.Company)
			_, _ = w.Write([]byte(`{"session_ref":"r1","job_id":"j1","immediate_fields":[{"field_id":"email","value":"ada@example.com"}]}`))
		case "/v1/jobs/j1":
			_, _ = w.Write([]byte(`{"job_id":"j1","status":"completed"}`))
		case "/v1/jobs/j1/result":
			_, _ = w.Write([]byte(`{"overall_match":0.9,"can_apply":true,"generated":{"cover_letter":{"name":"letter.txt","content":"Dear Acme"}},"result_ref":"res-1"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer api.Close()

	cfg := backend.DefaultConfig()
	cfg.BaseURL = api.URL
	cfg.Stream = false
	cfg.PollInterval = 10 * time.Millisecond
	cfg.RetryMax = 0
	s := newTestServer(t, nil)
	s.deps.Backend = backend.New(cfg, nil, nil, backend.WithHistory(s.deps.History))

	w := do(t, s, http.MethodPost, "/scan", "application/json",
		scanJSON(t, "https://jobs.acme.com/apply/7", applyPage, true))
	require.Equal(t, http.StatusOK, w.Code)
	sess := decode[scanResponse](t, w).Session
	require.NotNil(t, sess)

	w = do(t, s, http.MethodPost, "/apply", "application/json", `{"session_id":"`+sess.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[map[string]json.RawMessage](t, w)
	assert.JSONEq(t, `[{"field_id":"email","value":"ada@example.com"}]`, string(body["immediate_fields"]))
	assert.Contains(t, string(body["result"]), `"res-1"`)

	w = do(t, s, http.MethodGet, "/history", "", "")
	artifacts := decode[map[string][]history.Artifact](t, w)["artifacts"]
	require.Len(t, artifacts, 1)
	assert.Equal(t, "Dear Acme", artifacts[0].Content)

	w = do(t, s, http.MethodPost, "/apply", "application/json", `{"session_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBackendStatus(t *testing.T) {
	assert.Equal(t, http.StatusServiceUnavailable, backendStatus(backend.ErrUnavailable))
	assert.Equal(t, http.StatusUnprocessableEntity, backendStatus(backend.ErrJobFailed))
	assert.Equal(t, http.StatusConflict, backendStatus(&backend.StatusError{StatusCode: http.StatusConflict}))
	assert.Equal(t, http.StatusBadGateway, backendStatus(&backend.StatusError{StatusCode: http.StatusInternalServerError}))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	do(t, s, http.MethodGet, "/health", "", "")
	w := do(t, s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
