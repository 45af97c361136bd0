package types

// Trigger identifies which browser signal produced a navigation event.
type Trigger string

const (
	TriggerNavigate   Trigger = "navigate"    // pre-navigation intent
	TriggerTabUpdate  Trigger = "tab_update"  // tab URL changed
	TriggerTabCreate  Trigger = "tab_create"  // new tab opened
	TriggerReconcile  Trigger = "reconcile"   // synchronizer re-validation
)

// NavigationEvent is one navigation-intent signal for a single tab.
type NavigationEvent struct {
	TabID   int     `json:"tab_id"`
	URL     string  `json:"url"`
	Trigger Trigger `json:"trigger"`
}

// Action is what the engine tells the browser to do with a tab.
type Action string

const (
	ActionNone     Action = "none"     // leave the tab alone
	ActionAllow    Action = "allow"    // allow, optionally with a notification
	ActionRedirect Action = "redirect" // rewrite the tab's destination
)

// BlockReason is carried to the block page as the `reason` query parameter.
type BlockReason string

const (
	ReasonNoSession    BlockReason = "no-session"
	ReasonBlocked      BlockReason = "blocked"
	ReasonAnalyzing    BlockReason = "analyzing"
	ReasonError        BlockReason = "error"
	ReasonSessionEnded BlockReason = "session-ended"
)

// Decision is the engine's answer to one navigation event. Exactly one of
// the gating outcomes holds: exempt/allowed (ActionAllow or ActionNone),
// blocked or pending-analysis (ActionRedirect), or suppressed (ActionNone).
type Decision struct {
	Action      Action      `json:"action"`
	Target      string      `json:"target,omitempty"`
	Reason      BlockReason `json:"reason,omitempty"`
	Explanation string      `json:"explanation,omitempty"`
	Notify      bool        `json:"notify,omitempty"`
}
