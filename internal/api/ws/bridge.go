// Package ws implements the browser bridge: the WebSocket surface the
// extension keeps open to stream navigation signals in and receive gating
// commands back.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/domain/gate"
	"github.com/focusgate/gateway/internal/domain/tabs"
	"github.com/focusgate/gateway/internal/infrastructure/monitoring"
	"github.com/focusgate/gateway/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The bridge binds to loopback; the extension's origin is opaque.
		return true
	},
}

// Envelope is the tagged wire frame. Every message, both directions,
// carries a type tag and a type-specific payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NavPayload is the payload for navigation signals.
type NavPayload struct {
	TabID int    `json:"tab_id"`
	URL   string `json:"url"`
}

// TabPayload is the payload for tab removal.
type TabPayload struct {
	TabID int `json:"tab_id"`
}

// HelloPayload announces the full tab strip on connect.
type HelloPayload struct {
	Tabs []tabs.Tab `json:"tabs"`
}

// DecisionPayload is the outbound gating command.
type DecisionPayload struct {
	TabID       int    `json:"tab_id"`
	Action      string `json:"action"`
	Target      string `json:"target,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Explanation string `json:"explanation,omitempty"`
	Notify      bool   `json:"notify,omitempty"`
}

type handlerFunc func(ctx context.Context, c *conn, payload json.RawMessage) error

// conn wraps a websocket connection with a write lock.
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) send(e Envelope) error {
	data, err := sonic.Marshal(e)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Reconciler re-gates all known tabs, normally the lifecycle
// synchronizer. Bound after construction: the synchronizer needs the
// bridge as its sink, so one of the two has to be wired late.
type Reconciler interface {
	Reconcile(ctx context.Context)
}

// Bridge manages extension connections and dispatches their messages.
type Bridge struct {
	engine   *gate.Engine
	tabs     *tabs.Registry
	sync     Reconciler
	logger   *zap.Logger
	metrics  *monitoring.Metrics
	handlers map[string]handlerFunc

	mu    sync.RWMutex
	conns map[*conn]struct{}
}

// NewBridge creates a bridge and registers its dispatch table.
func NewBridge(engine *gate.Engine, registry *tabs.Registry, logger *zap.Logger, metrics *monitoring.Metrics) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bridge{
		engine:  engine,
		tabs:    registry,
		logger:  logger,
		metrics: metrics,
		conns:   make(map[*conn]struct{}),
	}
	b.handlers = map[string]handlerFunc{
		"hello":      b.handleHello,
		"navigate":   b.navHandler(types.TriggerNavigate),
		"tab_update": b.navHandler(types.TriggerTabUpdate),
		"tab_create": b.navHandler(types.TriggerTabCreate),
		"tab_remove": b.handleTabRemove,
		"ping":       b.handlePing,
	}
	return b
}

// BindSynchronizer wires the reconciler used on fresh connections.
func (b *Bridge) BindSynchronizer(r Reconciler) {
	b.sync = r
}

// HandleConnection upgrades the request and serves the message loop.
func (b *Bridge) HandleConnection(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cn := &conn{ws: ws}
	b.register(cn)
	defer b.unregister(cn)

	ctx := c.Request.Context()

	cn.send(Envelope{Type: "system", Payload: mustRaw(gin.H{"message": "focusgate bridge connected"})})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			b.logger.Debug("bridge read closed", zap.Error(err))
			return
		}

		var env Envelope
		if err := sonic.Unmarshal(data, &env); err != nil {
			b.sendError(cn, "malformed message")
			continue
		}

		if b.metrics != nil {
			b.metrics.RecordBridgeMessage("in", env.Type)
		}

		h, ok := b.handlers[env.Type]
		if !ok {
			b.sendError(cn, "unknown message type: "+env.Type)
			continue
		}
		if err := h(ctx, cn, env.Payload); err != nil {
			b.logger.Warn("bridge message failed", zap.String("type", env.Type), zap.Error(err))
			b.sendError(cn, err.Error())
		}
	}
}

// Apply delivers a decision to every connected extension. Implements the
// synchronizer's sink.
func (b *Bridge) Apply(tabID int, d types.Decision) {
	b.broadcast(decisionEnvelope(tabID, d))
}

func (b *Bridge) handleHello(ctx context.Context, c *conn, payload json.RawMessage) error {
	var p HelloPayload
	if len(payload) > 0 {
		if err := sonic.Unmarshal(payload, &p); err != nil {
			return err
		}
	}

	// The strip the extension reports replaces whatever we remembered.
	b.tabs.Reset()
	for _, t := range p.Tabs {
		b.tabs.Upsert(t.ID, t.URL)
	}
	if b.metrics != nil {
		b.metrics.TabsOpen.Set(float64(b.tabs.Len()))
	}

	b.logger.Info("bridge connected", zap.Int("tabs", len(p.Tabs)))
	if b.sync != nil {
		b.sync.Reconcile(ctx)
	}
	return nil
}

func (b *Bridge) navHandler(trigger types.Trigger) handlerFunc {
	return func(ctx context.Context, c *conn, payload json.RawMessage) error {
		var p NavPayload
		if err := sonic.Unmarshal(payload, &p); err != nil {
			return err
		}

		b.tabs.Upsert(p.TabID, p.URL)
		if b.metrics != nil {
			b.metrics.TabsOpen.Set(float64(b.tabs.Len()))
		}

		d := b.engine.Decide(ctx, types.NavigationEvent{
			TabID:   p.TabID,
			URL:     p.URL,
			Trigger: trigger,
		})
		if d.Action == types.ActionNone {
			return nil
		}
		return c.send(decisionEnvelope(p.TabID, d))
	}
}

func (b *Bridge) handleTabRemove(ctx context.Context, c *conn, payload json.RawMessage) error {
	var p TabPayload
	if err := sonic.Unmarshal(payload, &p); err != nil {
		return err
	}
	b.tabs.Remove(p.TabID)
	b.engine.TabClosed(p.TabID)
	if b.metrics != nil {
		b.metrics.TabsOpen.Set(float64(b.tabs.Len()))
	}
	return nil
}

func (b *Bridge) handlePing(ctx context.Context, c *conn, payload json.RawMessage) error {
	return c.send(Envelope{Type: "pong"})
}

func (b *Bridge) sendError(c *conn, msg string) {
	c.send(Envelope{Type: "error", Payload: mustRaw(gin.H{"message": msg})})
}

func (b *Bridge) register(c *conn) {
	b.mu.Lock()
	b.conns[c] = struct{}{}
	n := len(b.conns)
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.BridgeConnections.Set(float64(n))
	}
}

func (b *Bridge) unregister(c *conn) {
	b.mu.Lock()
	delete(b.conns, c)
	n := len(b.conns)
	b.mu.Unlock()
	c.ws.Close()
	if b.metrics != nil {
		b.metrics.BridgeConnections.Set(float64(n))
	}
}

func (b *Bridge) broadcast(e Envelope) {
	b.mu.RLock()
	targets := make([]*conn, 0, len(b.conns))
	for c := range b.conns {
		targets = append(targets, c)
	}
	b.mu.RUnlock()

	for _, c := range targets {
		if err := c.send(e); err != nil {
			b.logger.Debug("bridge write failed", zap.Error(err))
		}
	}
	if b.metrics != nil {
		b.metrics.RecordBridgeMessage("out", e.Type)
	}
}

func decisionEnvelope(tabID int, d types.Decision) Envelope {
	return Envelope{
		Type: "decision",
		Payload: mustRaw(DecisionPayload{
			TabID:       tabID,
			Action:      string(d.Action),
			Target:      d.Target,
			Reason:      string(d.Reason),
			Explanation: d.Explanation,
			Notify:      d.Notify,
		}),
	}
}

func mustRaw(v interface{}) json.RawMessage {
	data, err := sonic.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(data)
}
