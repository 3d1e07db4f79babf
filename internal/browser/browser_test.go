package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/jobscan/internal/navigation"
	"github.com/GriffinCanCode/jobscan/internal/scanner"
)

func TestParseBindingPayload(t *testing.T) {
	tests := []struct {
		payload string
		kind    navigation.Signal
		url     string
		ok      bool
	}{
		{"programmatic|https://jobs.example.com/apply/2", navigation.SignalProgrammatic, "https://jobs.example.com/apply/2", true},
		{"history|https://jobs.example.com/a?x=1|2", navigation.SignalHistory, "https://jobs.example.com/a?x=1|2", true},
		{"poll|https://jobs.example.com", "", "", false},
		{"history|", "", "", false},
		{"garbage", "", "", false},
	}
	for _, tt := range tests {
		kind, url, ok := parseBindingPayload(tt.payload)
		assert.Equal(t, tt.ok, ok, tt.payload)
		assert.Equal(t, tt.kind, kind, tt.payload)
		assert.Equal(t, tt.url, url, tt.payload)
	}
}

func TestParseDispatchPayload(t *testing.T) {
	tests := []struct {
		payload string
		target  string
		ok      bool
	}{
		{"https://apply.example.com/form?job=7", "https://apply.example.com/form?job=7", true},
		{" http://jobs.example.com/apply ", "http://jobs.example.com/apply", true},
		{"javascript:void(0)", "", false},
		{"/relative/path", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		target, ok := parseDispatchPayload(tt.payload)
		assert.Equal(t, tt.ok, ok, tt.payload)
		assert.Equal(t, tt.target, target, tt.payload)
	}
}

// Live tests need Chrome; set JOBSCAN_BROWSER_TESTS=1 to run them.
func liveBrowser(t *testing.T) *Browser {
	t.Helper()
	if os.Getenv("JOBSCAN_BROWSER_TESTS") == "" {
		t.Skip("set JOBSCAN_BROWSER_TESTS=1 to run browser tests")
	}
	b, err := Launch(context.Background(), Config{Headless: true, Bin: os.Getenv("JOBSCAN_BROWSER_BIN")}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

const shadowPage = `<!doctype html><html><body>
<h1>Backend Engineer</h1>
<form>
  <label for="email">Email Address</label><input id="email" name="email" type="email">
  <x-phone></x-phone>
</form>
<iframe srcdoc="<form><input name='first_name'></form>"></iframe>
<script>
customElements.define("x-phone", class extends HTMLElement {
  connectedCallback() {
    const root = this.attachShadow({ mode: "open" });
    root.innerHTML = '<label>Phone<input name="phone" type="tel"></label>';
  }
});
</script>
</body></html>`

func TestLiveScanSeesShadowRootsAndFrames(t *testing.T) {
	b := liveBrowser(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(shadowPage))
	}))
	defer srv.Close()

	ctx := context.Background()
	page, err := b.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer page.Close()

	frames, err := page.Frames(ctx)
	require.NoError(t, err)
	require.Len(t, frames, 2)

	s := scanner.New(scanner.Options{Attempts: 1, FrameTimeout: 10 * time.Second}, nil, nil)
	scan := s.ScanFrames(ctx, frames)
	require.NotNil(t, scan)

	names := map[string]bool{}
	for _, f := range scan.Fields {
		names[f.Name] = true
	}
	assert.True(t, names["email"])
	assert.True(t, names["phone"])
	assert.True(t, names["first_name"])
}

func TestLiveNavigationHooks(t *testing.T) {
	b := liveBrowser(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><button onclick="history.pushState({}, '', '/step/2')">Next</button></body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	page, err := b.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer page.Close()

	events := make(chan navigation.Event, 4)
	obs := navigation.NewObserver(navigation.Config{Debounce: 50 * time.Millisecond}, func(_ context.Context, ev navigation.Event) {
		events <- ev
	}, nil)
	go func() { _ = obs.Run(ctx, srv.URL+"/") }()
	go func() { _ = page.WatchNavigation(ctx, obs, 200*time.Millisecond) }()

	time.Sleep(300 * time.Millisecond)
	_, err = page.page.Eval(`() => history.pushState({}, "", "/step/2")`)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, srv.URL+"/step/2", ev.URL)
	case <-ctx.Done():
		t.Fatal("no navigation observed")
	}
}

func TestLiveFlowTriggerClick(t *testing.T) {
	b := liveBrowser(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body>
<a id="apply" href="https://apply.example.com/form" onclick="event.preventDefault()"><span>Apply now</span></a>
<button id="other">Share</button>
</body></html>`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	page, err := b.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer page.Close()

	clicks := make(chan string, 4)
	require.NoError(t, page.WatchFlowTriggers(ctx, func(target string) { clicks <- target }))
	require.NoError(t, page.SetFlowTriggers(ctx, []string{"#apply"}))

	_, err = page.page.Eval(`() => { document.getElementById("other").click(); document.querySelector("#apply span").click(); }`)
	require.NoError(t, err)

	select {
	case target := <-clicks:
		assert.Equal(t, "https://apply.example.com/form", target)
	case <-ctx.Done():
		t.Fatal("no flow trigger click observed")
	}
}
