package http

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusgate/gateway/internal/analyzer"
	"github.com/focusgate/gateway/internal/domain/cache"
	"github.com/focusgate/gateway/internal/domain/gate"
	"github.com/focusgate/gateway/internal/domain/policy"
	"github.com/focusgate/gateway/internal/domain/session"
	"github.com/focusgate/gateway/internal/domain/tabs"
	"github.com/focusgate/gateway/internal/infrastructure/config"
	"github.com/focusgate/gateway/internal/infrastructure/store"
	"github.com/focusgate/gateway/internal/shared/types"
	"github.com/focusgate/gateway/internal/shared/urlkey"
)

type fixture struct {
	router   *gin.Engine
	store    *store.Memory
	sessions *session.Manager
	cache    *cache.Cache
	engine   *gate.Engine
}

func newFixture(t *testing.T, analyzerURL string) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	kv := store.NewMemory()
	sessions := session.NewManager(kv, nil)
	classCache := cache.New(kv, nil)

	pages := gate.Pages{
		Block:    "http://localhost:8000/block",
		Analysis: "http://localhost:8000/analyzing",
	}
	engine := gate.New(gate.Options{
		Exemptions: policy.New("http://localhost:8000", analyzerURL),
		Sessions:   sessions,
		Verdicts:   classCache,
		Pages:      pages,
	})

	client := analyzer.New(analyzer.Config{URL: analyzerURL, Timeout: 5 * time.Second})

	h := NewHandlers(sessions, classCache, engine, client, tabs.NewRegistry(), config.SessionConfig{
		DefaultDuration: 25 * time.Minute,
		MaxDuration:     8 * time.Hour,
	}, pages, nil, nil)

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/session", h.GetSession)
	router.POST("/session/start", h.StartSession)
	router.POST("/session/end", h.EndSession)
	router.POST("/analyze", h.Analyze)
	router.GET("/block", h.BlockPage)
	router.GET("/analyzing", h.AnalyzingPage)

	return &fixture{router: router, store: kv, sessions: sessions, cache: classCache, engine: engine}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) startSession(t *testing.T) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/session/start", gin.H{
		"domain":           "writing a thesis",
		"duration_minutes": 25,
		"context":          []gin.H{{"question": "What are you working on?", "answer": "Chapter 3"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	w := f.do(t, http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.startSession(t)

	w = f.do(t, http.MethodGet, "/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"active":true`)
	assert.Contains(t, w.Body.String(), "writing a thesis")

	w = f.do(t, http.MethodPost, "/session/end", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodGet, "/session", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartSessionValidation(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	w := f.do(t, http.MethodPost, "/session/start", gin.H{"duration_minutes": 25})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEndSessionClearsVerdicts(t *testing.T) {
	f := newFixture(t, "http://localhost:1")
	f.startSession(t)

	ctx := context.Background()
	key := urlkey.Normalize("https://example.com")
	require.NoError(t, f.cache.Record(ctx, key.URLKey, key.NormalizedURL, "", types.VerdictAllowed, ""))

	w := f.do(t, http.MethodPost, "/session/end", nil)
	require.Equal(t, http.StatusOK, w.Code)

	_, ok := f.cache.Lookup(ctx, key.URLKey, "")
	assert.False(t, ok, "verdicts must not outlive the session")
}

func TestAnalyzeProductive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isProductive": true, "explanation": "On topic.", "confidence": 0.95}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.startSession(t)

	target := "https://en.wikipedia.org/wiki/Thesis"
	key := urlkey.Normalize(target)
	require.True(t, f.engine.Inflight().TryAcquire(key.URLKey))

	w := f.do(t, http.MethodPost, "/analyze", gin.H{"url": target})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Verdict  string `json:"verdict"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.VerdictAllowed), resp.Verdict)
	assert.Equal(t, target, resp.Redirect)

	entry, ok := f.cache.Lookup(context.Background(), key.URLKey, "")
	require.True(t, ok)
	assert.Equal(t, types.VerdictAllowed, entry.Verdict)

	assert.False(t, f.engine.Inflight().Pending(key.URLKey), "resolution releases the marker")
}

func TestAnalyzeUnproductive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isProductive": false, "explanation": "Entertainment.", "confidence": 0.9}`))
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.startSession(t)

	w := f.do(t, http.MethodPost, "/analyze", gin.H{"url": "https://reddit.com/r/all"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Verdict  string `json:"verdict"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.VerdictBlocked), resp.Verdict)
	assert.Contains(t, resp.Redirect, "/block?")
	assert.Contains(t, resp.Redirect, "reason=blocked")

	key := urlkey.Normalize("https://reddit.com/r/all")
	entry, ok := f.cache.Lookup(context.Background(), key.URLKey, "")
	require.True(t, ok)
	assert.Equal(t, types.VerdictBlocked, entry.Verdict)
}

func TestAnalyzeFailureBlocksWithoutCaching(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newFixture(t, srv.URL)
	f.startSession(t)

	w := f.do(t, http.MethodPost, "/analyze", gin.H{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Verdict  string `json:"verdict"`
		Redirect string `json:"redirect"`
	}
	require.NoError(t, sonic.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(types.VerdictBlocked), resp.Verdict)
	assert.Contains(t, resp.Redirect, "reason=error")

	key := urlkey.Normalize("https://example.com")
	_, ok := f.cache.Lookup(context.Background(), key.URLKey, "")
	assert.False(t, ok, "failures leave the URL unknown")
}

func TestAnalyzeWithoutSession(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	w := f.do(t, http.MethodPost, "/analyze", gin.H{"url": "https://example.com"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "no-session")
}

func TestBlockPageEscapesParams(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	w := f.do(t, http.MethodGet, "/block?reason=blocked&explanation=%3Cscript%3Ealert(1)%3C%2Fscript%3E", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.False(t, strings.Contains(body, "<script>alert"), "explanation must be escaped")
	assert.Contains(t, body, "does not fit your task")
}

func TestBlockPageReasonTitles(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	cases := map[string]string{
		"no-session":    "No active focus session",
		"session-ended": "Your focus session ended",
		"error":         "Could not check this page",
	}
	for reason, title := range cases {
		w := f.do(t, http.MethodGet, "/block?reason="+reason, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), title)
	}
}

func TestAnalyzingPageEmbedsURL(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	w := f.do(t, http.MethodGet, "/analyzing?url=https%3A%2F%2Fexample.com%2Fa", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://example.com/a")
	assert.Contains(t, w.Body.String(), "/analyze")
}

func TestHealth(t *testing.T) {
	f := newFixture(t, "http://localhost:1")

	w := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}
