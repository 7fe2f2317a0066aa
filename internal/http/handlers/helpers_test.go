package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"shopforge/internal/config"
	"shopforge/internal/events"
	"shopforge/internal/http/handlers"
	applog "shopforge/internal/log"
	"shopforge/internal/repos"
)

const testSecret = "test_key_secret"

type testApp struct {
	app  *fiber.App
	db   *sqlx.DB
	deps *handlers.Deps
	cfg  config.Config
}

// newTestApp wires the real route table over an in-memory sqlite database.
// tweak runs before the app is built.
func newTestApp(t *testing.T, tweak func(*handlers.Deps)) *testApp {
	t.Helper()
	db, err := repos.OpenDB("sqlite", ":memory:", "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		DBDriver:           "sqlite",
		MediaDir:           t.TempDir(),
		MaxUploadBytes:     1 << 20,
		RazorpayKeySecret:  testSecret,
		AllowTotalOverride: true,
	}
	deps := handlers.NewDeps(db, cfg, nil, events.Noop{})
	if tweak != nil {
		tweak(deps)
	}
	app, err := handlers.NewApp(deps, cfg)
	require.NoError(t, err)
	return &testApp{app: app, db: db, deps: deps, cfg: cfg}
}

func (a *testApp) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		case []byte:
			r = bytes.NewReader(b)
		default:
			raw, err := json.Marshal(b)
			require.NoError(t, err)
			r = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func errorMessage(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	decode(t, resp, &body)
	return body.Error
}

type logEntry struct {
	Level  string         `json:"level"`
	Action string         `json:"action"`
	Fields map[string]any `json:"fields"`
}

type lockedBuf struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuf) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

// captureLogs collects the JSON log lines written while fn runs.
func captureLogs(t *testing.T, fn func()) []logEntry {
	t.Helper()
	buf := &lockedBuf{}
	applog.SetOutput(buf)
	defer applog.SetOutput(os.Stdout)

	fn()

	buf.mu.Lock()
	defer buf.mu.Unlock()
	var out []logEntry
	for _, line := range strings.Split(buf.b.String(), "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "{") {
			continue
		}
		var e logEntry
		if json.Unmarshal([]byte(line), &e) == nil {
			out = append(out, e)
		}
	}
	return out
}

func findLog(entries []logEntry, action string) (logEntry, bool) {
	for _, e := range entries {
		if e.Action == action {
			return e, true
		}
	}
	return logEntry{}, false
}

// seedStore creates a store and one product through the API.
func (a *testApp) seedStore(t *testing.T, name string) (storeID, productID string) {
	t.Helper()
	resp := a.do(t, "POST", "/api/stores", map[string]any{"name": name})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var st struct {
		ID string `json:"id"`
	}
	decode(t, resp, &st)

	resp = a.do(t, "POST", "/api/products/"+st.ID, map[string]any{
		"name": "Widget", "price": 9.99, "inventory": 10,
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	var p struct {
		ID string `json:"id"`
	}
	decode(t, resp, &p)
	return st.ID, p.ID
}
