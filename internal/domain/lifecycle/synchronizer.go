// Package lifecycle keeps every open tab consistent with the session
// state. Individual navigations are gated as they happen; this package
// handles the moments when the ground truth shifts underneath all tabs at
// once: a session starting, a session ending, or the browser bridge
// reconnecting after the gateway lost sight of the tab strip.
package lifecycle

import (
	"context"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/domain/policy"
	"github.com/focusgate/gateway/internal/domain/tabs"
	"github.com/focusgate/gateway/internal/shared/types"
)

// Decider evaluates one navigation event, normally the gating engine.
type Decider interface {
	Decide(ctx context.Context, ev types.NavigationEvent) types.Decision
}

// Sink receives decisions for delivery to the browser.
type Sink interface {
	Apply(tabID int, d types.Decision)
}

// Synchronizer re-runs the gate across all open tabs on state transitions.
type Synchronizer struct {
	engine  Decider
	tabs    *tabs.Registry
	exempt  *policy.Exemptions
	block   string // block page base URL
	sink    Sink
	logger  *zap.Logger
	clock   func() time.Time

	mu     sync.Mutex
	known  bool
	active bool
}

// Options configures synchronizer construction.
type Options struct {
	Engine     Decider
	Tabs       *tabs.Registry
	Exemptions *policy.Exemptions
	BlockPage  string
	Sink       Sink
	Logger     *zap.Logger
}

// New creates a synchronizer.
func New(opts Options) *Synchronizer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Synchronizer{
		engine: opts.Engine,
		tabs:   opts.Tabs,
		exempt: opts.Exemptions,
		block:  opts.BlockPage,
		sink:   opts.Sink,
		logger: opts.Logger,
		clock:  time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Synchronizer) WithClock(clock func() time.Time) *Synchronizer {
	s.clock = clock
	return s
}

// SessionChanged handles a session record transition. A nil or inactive
// record after an active (or never observed) one means the session ended
// and every open tab must land on the block page; a newly active record
// re-gates every tab. The composition root seeds the first observation
// from the store so a restart mid-session does not swallow the eventual
// end transition.
func (s *Synchronizer) SessionChanged(ctx context.Context, session *types.Session) {
	now := s.clock()
	isActive := session.Active(now)

	s.mu.Lock()
	wasKnown, wasActive := s.known, s.active
	s.known, s.active = true, isActive
	s.mu.Unlock()

	// An unknown prior state counts as a transition: the process may have
	// restarted mid-session, and the fail-safe side is to act.
	switch {
	case isActive && (!wasKnown || !wasActive):
		s.logger.Info("session started, re-gating open tabs", zap.Int("tabs", s.tabs.Len()))
		s.Reconcile(ctx)
	case !isActive && (!wasKnown || wasActive):
		s.logger.Info("session ended, blocking open tabs", zap.Int("tabs", s.tabs.Len()))
		s.sessionEnded()
	}
}

// Reconcile pushes every known tab through the gate as a fresh
// navigation. Called when a session starts and when the bridge reconnects
// with a tab strip the gateway has not been watching.
func (s *Synchronizer) Reconcile(ctx context.Context) {
	for _, t := range s.tabs.Snapshot() {
		d := s.engine.Decide(ctx, types.NavigationEvent{
			TabID:   t.ID,
			URL:     t.URL,
			Trigger: types.TriggerReconcile,
		})
		if d.Action == types.ActionNone {
			continue
		}
		s.sink.Apply(t.ID, d)
	}
}

// sessionEnded rewrites every non-exempt tab to the block page. The gate
// is not consulted: with no session there is nothing to analyze, and the
// reason shown to the user is the session ending rather than a verdict.
func (s *Synchronizer) sessionEnded() {
	for _, t := range s.tabs.Snapshot() {
		if s.exempt.Exempt(t.URL) {
			continue
		}
		v := url.Values{
			"reason":       {string(types.ReasonSessionEnded)},
			"original_url": {t.URL},
		}
		s.sink.Apply(t.ID, types.Decision{
			Action: types.ActionRedirect,
			Target: s.block + "?" + v.Encode(),
			Reason: types.ReasonSessionEnded,
		})
	}
}
