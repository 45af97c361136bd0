// Package http contains the gateway's REST surface: session control, the
// analysis resolution endpoint, and the interstitial pages the engine
// redirects tabs to.
package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/analyzer"
	"github.com/focusgate/gateway/internal/domain/cache"
	"github.com/focusgate/gateway/internal/domain/gate"
	"github.com/focusgate/gateway/internal/domain/session"
	"github.com/focusgate/gateway/internal/domain/tabs"
	"github.com/focusgate/gateway/internal/infrastructure/config"
	"github.com/focusgate/gateway/internal/infrastructure/monitoring"
	"github.com/focusgate/gateway/internal/shared/types"
	"github.com/focusgate/gateway/internal/shared/urlkey"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	sessions *session.Manager
	cache    *cache.Cache
	engine   *gate.Engine
	client   *analyzer.Client
	tabs     *tabs.Registry
	cfg      config.SessionConfig
	pages    gate.Pages
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(
	sessions *session.Manager,
	classCache *cache.Cache,
	engine *gate.Engine,
	client *analyzer.Client,
	registry *tabs.Registry,
	cfg config.SessionConfig,
	pages gate.Pages,
	metrics *monitoring.Metrics,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions: sessions,
		cache:    classCache,
		engine:   engine,
		client:   client,
		tabs:     registry,
		cfg:      cfg,
		pages:    pages,
		metrics:  metrics,
		logger:   logger,
	}
}

// Root handles health check.
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "FocusGate Gateway",
		"version": "1.0.0",
	})
}

// Health handles detailed health check.
func (h *Handlers) Health(c *gin.Context) {
	active := h.sessions.Active(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"session_active":   active,
		"tabs_open":        h.tabs.Len(),
		"analyzer_breaker": h.client.BreakerState().String(),
	})
}

type startSessionRequest struct {
	Domain          string     `json:"domain" binding:"required"`
	DurationMinutes int        `json:"duration_minutes"`
	Context         []types.QA `json:"context"`
}

// StartSession begins a new work session.
func (h *Handlers) StartSession(c *gin.Context) {
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	duration := time.Duration(req.DurationMinutes) * time.Minute
	if duration <= 0 {
		duration = h.cfg.DefaultDuration
	}
	if duration > h.cfg.MaxDuration {
		duration = h.cfg.MaxDuration
	}

	s, err := h.sessions.Start(c.Request.Context(), req.Domain, duration, req.Context)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.metrics != nil {
		h.metrics.SessionsStarted.Inc()
		h.metrics.SessionActive.Set(1)
	}

	c.JSON(http.StatusOK, gin.H{"session": s})
}

// EndSession ends the active session and clears the classification
// cache: verdicts are judged against one task and do not carry over.
func (h *Handlers) EndSession(c *gin.Context) {
	ctx := c.Request.Context()
	if err := h.sessions.End(ctx); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.cache.Clear(ctx); err != nil {
		h.logger.Warn("cache clear failed", zap.Error(err))
	}

	if h.metrics != nil {
		h.metrics.SessionsEnded.Inc()
		h.metrics.SessionActive.Set(0)
	}

	c.JSON(http.StatusOK, gin.H{"ended": true})
}

// GetSession returns the current session record.
func (h *Handlers) GetSession(c *gin.Context) {
	s, err := h.sessions.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if s == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session": s,
		"active":  s.Active(time.Now()),
	})
}

type analyzeRequest struct {
	URL   string `json:"url" binding:"required"`
	TabID int    `json:"tab_id"`
}

// Analyze resolves a pending classification. The analysis page calls
// this; the response tells it where to send the tab next. Any failure
// resolves to blocked, never allowed.
func (h *Handlers) Analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	key := urlkey.Normalize(req.URL)
	defer h.engine.Inflight().Release(key.URLKey)

	s, err := h.sessions.Current(ctx)
	if err != nil || !s.Active(time.Now()) {
		c.JSON(http.StatusOK, gin.H{
			"verdict":  string(types.VerdictBlocked),
			"redirect": h.blockTarget(types.ReasonNoSession, req.URL, "", ""),
		})
		return
	}

	timer := monitoring.NewTimer(h.metrics)
	res, err := h.client.Classify(ctx, s, req.URL)
	if err != nil {
		// No verdict, no cache write. The user can retry; unknown
		// URLs stay unknown rather than wrongly allowed.
		timer.Stop("error")
		h.logger.Warn("analyzer call failed", zap.Error(err), zap.String("url", req.URL))
		c.JSON(http.StatusOK, gin.H{
			"verdict":  string(types.VerdictBlocked),
			"redirect": h.blockTarget(types.ReasonError, req.URL, s.Domain, "Could not reach the analyzer."),
		})
		return
	}
	timer.Stop("success")

	verdict := types.VerdictBlocked
	if res.Productive {
		verdict = types.VerdictAllowed
	}
	if err := h.cache.Record(ctx, key.URLKey, key.NormalizedURL, key.SearchQuery, verdict, res.Explanation); err != nil {
		h.logger.Warn("verdict write failed", zap.Error(err), zap.String("key", key.URLKey))
	}

	redirect := req.URL
	if verdict == types.VerdictBlocked {
		redirect = h.blockTarget(types.ReasonBlocked, req.URL, s.Domain, res.Explanation)
	}

	c.JSON(http.StatusOK, gin.H{
		"verdict":     string(verdict),
		"explanation": res.Explanation,
		"confidence":  res.Confidence,
		"redirect":    redirect,
	})
}

func (h *Handlers) blockTarget(reason types.BlockReason, original, domain, explanation string) string {
	v := url.Values{
		"reason":       {string(reason)},
		"original_url": {original},
	}
	if domain != "" {
		v.Set("domain", domain)
	}
	if explanation != "" {
		v.Set("explanation", explanation)
	}
	return h.pages.Block + "?" + v.Encode()
}
