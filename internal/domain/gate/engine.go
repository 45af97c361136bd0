// Package gate implements the navigation gating state machine.
//
// Every navigation-intent signal from every tab funnels through
// Engine.Decide, which composes the session record, the classification
// cache, and the in-flight tracker into a single decision: leave the tab
// alone, rewrite it to the block page, or rewrite it to the analysis page.
//
// The transient sets (Inflight, Guard) are fields of the engine instance,
// never package globals: a restarted engine starts with empty sets and
// relies on the shared store for ground truth.
package gate

import (
	"context"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/domain/policy"
	"github.com/focusgate/gateway/internal/infrastructure/monitoring"
	"github.com/focusgate/gateway/internal/shared/types"
	"github.com/focusgate/gateway/internal/shared/urlkey"
)

// minSearchQueryLen rejects throwaway queries without an analyzer call;
// anything shorter is too vague to ever be judged relevant.
const minSearchQueryLen = 3

// SessionSource provides the current session record. Read failures must
// surface as errors so the engine can fail safe.
type SessionSource interface {
	Current(ctx context.Context) (*types.Session, error)
}

// VerdictSource provides cached classification lookups.
type VerdictSource interface {
	Lookup(ctx context.Context, urlKey, legacyKey string) (types.ClassificationEntry, bool)
}

// Pages holds the engine's redirect destinations.
type Pages struct {
	Block    string // block page base URL
	Analysis string // analysis page base URL
}

// Engine is the navigation gating state machine.
type Engine struct {
	exempt   *policy.Exemptions
	sessions SessionSource
	verdicts VerdictSource
	inflight *Inflight
	guard    *Guard
	pages    Pages
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	clock    func() time.Time
}

// Options configures engine construction.
type Options struct {
	Exemptions  *policy.Exemptions
	Sessions    SessionSource
	Verdicts    VerdictSource
	Pages       Pages
	InflightTTL time.Duration
	GuardTTL    time.Duration
	Logger      *zap.Logger
}

// New creates an engine with empty transient sets.
func New(opts Options) *Engine {
	if opts.InflightTTL <= 0 {
		opts.InflightTTL = 30 * time.Second
	}
	if opts.GuardTTL <= 0 {
		opts.GuardTTL = 3 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		exempt:   opts.Exemptions,
		sessions: opts.Sessions,
		verdicts: opts.Verdicts,
		inflight: NewInflight(opts.InflightTTL),
		guard:    NewGuard(opts.GuardTTL),
		pages:    opts.Pages,
		logger:   opts.Logger,
		clock:    time.Now,
	}
}

// WithMetrics adds metrics tracking to the engine.
func (e *Engine) WithMetrics(m *monitoring.Metrics) *Engine {
	e.metrics = m
	e.inflight.WithGauge(func(n int) { m.InflightKeys.Set(float64(n)) })
	return e
}

// WithClock overrides the time source for the engine and its sets.
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	e.clock = clock
	e.inflight.WithClock(clock)
	e.guard.WithClock(clock)
	return e
}

// Inflight exposes the in-flight tracker so the analysis flow can release
// keys when a classification call resolves.
func (e *Engine) Inflight() *Inflight {
	return e.inflight
}

// TabClosed drops per-tab transient state.
func (e *Engine) TabClosed(tabID int) {
	e.guard.Clear(tabID)
}

// Decide evaluates one navigation event. Exactly one gating outcome holds
// for every input; there is no unhandled path.
func (e *Engine) Decide(ctx context.Context, ev types.NavigationEvent) types.Decision {
	if e.exempt.Exempt(ev.URL) {
		return e.record("exempt", types.Decision{Action: types.ActionNone})
	}

	s, err := e.sessions.Current(ctx)
	if err != nil {
		// Storage failure: fail safe. An unreadable session is no session.
		e.logger.Warn("session read failed, blocking", zap.Error(err), zap.Int("tab_id", ev.TabID))
		return e.blockDecision(ev, types.ReasonNoSession, "", "")
	}
	if !s.Active(e.clock()) {
		return e.blockDecision(ev, types.ReasonNoSession, "", "")
	}

	key := urlkey.Normalize(ev.URL)
	legacy := urlkey.Legacy(ev.URL)

	if key.SearchQuery != "" {
		if len(strings.TrimSpace(key.SearchQuery)) < minSearchQueryLen {
			return e.blockDecision(ev, types.ReasonBlocked, s.Domain,
				"Search query is too vague to determine relevance to your task.")
		}
		// Search results are never served from cache: the same engine
		// hosts many distinct queries, valid and not.
		return e.analyze(ev, s, key)
	}

	entry, ok := e.verdicts.Lookup(ctx, key.URLKey, legacy)
	e.recordLookup(ok)
	if ok {
		if entry.Verdict == types.VerdictBlocked {
			return e.blockDecision(ev, types.ReasonBlocked, s.Domain, entry.Reason)
		}
		return e.record("allowed", types.Decision{Action: types.ActionAllow, Notify: true})
	}

	return e.analyze(ev, s, key)
}

func (e *Engine) analyze(ev types.NavigationEvent, s *types.Session, key urlkey.Key) types.Decision {
	if !e.inflight.TryAcquire(key.URLKey) {
		// A sibling signal is already driving this key to a verdict.
		return e.record("suppressed", types.Decision{Action: types.ActionNone})
	}

	target := e.pages.Analysis + "?" + url.Values{
		"url":    {ev.URL},
		"domain": {s.Domain},
		"key":    {key.URLKey},
		"reason": {string(types.ReasonAnalyzing)},
	}.Encode()

	d := types.Decision{
		Action: types.ActionRedirect,
		Target: target,
		Reason: types.ReasonAnalyzing,
	}
	return e.guarded(ev, "pending", d, key.URLKey)
}

func (e *Engine) blockDecision(ev types.NavigationEvent, reason types.BlockReason, domain, explanation string) types.Decision {
	v := url.Values{
		"reason":       {string(reason)},
		"original_url": {ev.URL},
	}
	if domain != "" {
		v.Set("domain", domain)
	}
	if explanation != "" {
		v.Set("explanation", explanation)
	}

	d := types.Decision{
		Action:      types.ActionRedirect,
		Target:      e.pages.Block + "?" + v.Encode(),
		Reason:      reason,
		Explanation: explanation,
	}
	return e.guarded(ev, string(reason), d, "")
}

// guarded applies the redirect-loop guard before committing a redirect.
// Only tab-creation signals consult the guard; every redirect marks it, so
// an overlapping create signal cannot rewrite the tab a second time.
func (e *Engine) guarded(ev types.NavigationEvent, outcome string, d types.Decision, inflightKey string) types.Decision {
	if ev.Trigger == types.TriggerTabCreate && e.guard.Active(ev.TabID) {
		if inflightKey != "" {
			e.inflight.Release(inflightKey)
		}
		return e.record("guarded", types.Decision{Action: types.ActionNone})
	}
	e.guard.Mark(ev.TabID)
	e.logger.Debug("navigation gated",
		zap.Int("tab_id", ev.TabID),
		zap.String("url", ev.URL),
		zap.String("outcome", outcome))
	return e.record(outcome, d)
}

func (e *Engine) recordLookup(hit bool) {
	if e.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	e.metrics.RecordCacheLookup(result)
}

func (e *Engine) record(outcome string, d types.Decision) types.Decision {
	if e.metrics != nil {
		e.metrics.RecordDecision(outcome)
	}
	return d
}
