package analyzer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/focusgate/gateway/internal/infrastructure/resilience"
	"github.com/focusgate/gateway/internal/shared/types"
)

func decodeJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(body, v)
}

func testSession() *types.Session {
	return &types.Session{
		SchemaVersion: types.SessionSchemaVersion,
		ID:            "s-1",
		Domain:        "writing a thesis",
		State:         types.SessionActive,
		Context: []types.QA{
			{Question: "What are you working on?", Answer: "Chapter 3"},
		},
	}
}

func TestClassifySuccess(t *testing.T) {
	var got Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, decodeJSON(r, &got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isProductive": true, "explanation": "Relevant to your thesis.", "confidence": 0.9}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Timeout: 5 * time.Second})

	res, err := c.Classify(context.Background(), testSession(), "https://en.wikipedia.org/wiki/Thesis")
	require.NoError(t, err)

	assert.True(t, res.Productive)
	assert.Equal(t, "Relevant to your thesis.", res.Explanation)
	assert.InDelta(t, 0.9, res.Confidence, 0.001)

	assert.Equal(t, "https://en.wikipedia.org/wiki/Thesis", got.URL)
	assert.Equal(t, "writing a thesis", got.Domain)
	assert.Equal(t, "s-1", got.SessionID)
	require.Len(t, got.Context, 1)
	assert.Equal(t, "Chapter 3", got.Context[0].Answer)
}

func TestClassifySanitizesExplanation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"isProductive": false, "explanation": "<script>alert(1)</script>Off topic", "confidence": 0.8}`))
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Timeout: 5 * time.Second})

	res, err := c.Classify(context.Background(), testSession(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Off topic", res.Explanation)
}

func TestClassifyServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Timeout: 5 * time.Second})

	_, err := c.Classify(context.Background(), testSession(), "https://example.com")
	assert.Error(t, err)
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Timeout: 5 * time.Second})

	for i := 0; i < 5; i++ {
		_, err := c.Classify(context.Background(), testSession(), "https://example.com")
		require.Error(t, err)
	}
	require.Equal(t, resilience.StateOpen, c.BreakerState())

	// An open breaker rejects without reaching the service.
	before := atomic.LoadInt32(&hits)
	_, err := c.Classify(context.Background(), testSession(), "https://example.com")
	assert.Error(t, err)
	assert.Equal(t, before, atomic.LoadInt32(&hits))
}

func TestClassifyNilSession(t *testing.T) {
	c := New(Config{URL: "http://localhost:0", Timeout: time.Second})

	_, err := c.Classify(context.Background(), nil, "https://example.com")
	assert.Error(t, err)
}
