package lark

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/natserract/lark/pkg/config"
	httpclient "github.com/natserract/lark/pkg/http"
)

const testToken = "t-test-token"

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type testServer struct {
	*httptest.Server
	mux          *http.ServeMux
	tokenIssued  atomic.Int32
	tokenLatency time.Duration
	tokenReply   map[string]any
}

type serverOption func(*testServer)

func withTokenLatency(d time.Duration) serverOption {
	return func(s *testServer) { s.tokenLatency = d }
}

func withTokenReply(reply map[string]any) serverOption {
	return func(s *testServer) { s.tokenReply = reply }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	s := &testServer{mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("POST /open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		var body tenantTokenRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cli_test", body.AppID)
		assert.Equal(t, "app-secret", body.AppSecret)
		if s.tokenLatency > 0 {
			time.Sleep(s.tokenLatency)
		}
		s.tokenIssued.Add(1)
		if s.tokenReply != nil {
			writeJSON(w, s.tokenReply)
			return
		}
		writeJSON(w, map[string]any{
			"code":                0,
			"msg":                 "ok",
			"tenant_access_token": testToken,
			"expire":              7200,
		})
	})
	s.Server = httptest.NewServer(s.mux)
	t.Cleanup(s.Close)
	return s
}

// handle registers an authenticated endpoint.
func (s *testServer) handle(t *testing.T, pattern string, fn http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"), pattern)
		fn(w, r)
	})
}

func (s *testServer) config() *config.Config {
	cfg := config.Default()
	cfg.BaseURL = s.URL + "/open-apis/"
	cfg.AppID = "cli_test"
	cfg.AppSecret = "app-secret"
	cfg.InitialRetryDelay = time.Millisecond
	cfg.MaxRetryDelay = 4 * time.Millisecond
	return cfg
}

func (s *testServer) client(t *testing.T, cfg *config.Config, opts ...Option) *Lark {
	t.Helper()
	if cfg == nil {
		cfg = s.config()
	}
	all := append([]Option{WithHTTPOptions(httpclient.WithHTTPClient(s.Client()))}, opts...)
	return NewLarkWithLogger(cfg, zaptest.NewLogger(t), all...)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func ok(data any) map[string]any {
	return map[string]any{"code": 0, "msg": "success", "data": data}
}

func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	assert.NoError(t, err)
	assert.NoError(t, json.Unmarshal(b, v), string(b))
}
