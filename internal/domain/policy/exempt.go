// Package policy decides which URLs bypass the gating engine entirely.
package policy

import (
	"net/url"
	"strings"
)

// exemptSchemes never enter the state machine: internal browser pages,
// extension pages, and local files. Blocking any of these would wedge the
// browser or the engine itself.
var exemptSchemes = map[string]bool{
	"chrome":           true,
	"chrome-extension": true,
	"edge":             true,
	"about":            true,
	"moz-extension":    true,
	"file":             true,
	"devtools":         true,
	"view-source":      true,
	"data":             true,
	"blob":             true,
}

// Exemptions classifies URLs that must never be intercepted.
type Exemptions struct {
	origins map[string]bool
}

// New creates an exemption classifier for the given trusted origins,
// typically the analyzer service and the gateway serving the block and
// analysis pages. Redirecting either would be an unrecoverable loop.
func New(origins ...string) *Exemptions {
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSuffix(o, "/"))
		if o != "" {
			set[o] = true
		}
	}
	return &Exemptions{origins: set}
}

// Exempt reports whether the URL bypasses gating unconditionally.
func (e *Exemptions) Exempt(raw string) bool {
	if raw == "" {
		return true
	}

	u, err := url.Parse(raw)
	if err != nil {
		// Unparseable destinations cannot be meaningfully redirected.
		return true
	}

	if exemptSchemes[strings.ToLower(u.Scheme)] {
		return true
	}

	origin := strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host)
	return e.origins[origin]
}
