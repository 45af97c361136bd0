package http

import (
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/focusgate/gateway/internal/shared/types"
)

// The interstitial pages are rendered server side so the extension only
// ever rewrites tab URLs; html/template escaping keeps analyzer output
// and query parameters inert.

var blockTmpl = template.Must(template.New("block").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Blocked</title>
<style>
body { font-family: -apple-system, sans-serif; background: #1a1a2e; color: #eee; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
.card { max-width: 480px; padding: 2.5rem; background: #16213e; border-radius: 12px; text-align: center; }
h1 { font-size: 1.4rem; margin: 0 0 .75rem; }
p { color: #aab; line-height: 1.5; }
.domain { color: #7ec8e3; }
</style>
</head>
<body>
<div class="card">
<h1>{{.Title}}</h1>
{{if .Explanation}}<p>{{.Explanation}}</p>{{end}}
{{if .Domain}}<p>Current focus: <span class="domain">{{.Domain}}</span></p>{{end}}
{{if .Original}}<p><small>{{.Original}}</small></p>{{end}}
</div>
</body>
</html>
`))

var analyzingTmpl = template.Must(template.New("analyzing").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Checking...</title>
<style>
body { font-family: -apple-system, sans-serif; background: #1a1a2e; color: #eee; display: flex; align-items: center; justify-content: center; min-height: 100vh; margin: 0; }
.card { max-width: 480px; padding: 2.5rem; background: #16213e; border-radius: 12px; text-align: center; }
.spinner { width: 32px; height: 32px; margin: 0 auto 1rem; border: 3px solid #333; border-top-color: #7ec8e3; border-radius: 50%; animation: spin 0.9s linear infinite; }
@keyframes spin { to { transform: rotate(360deg); } }
</style>
</head>
<body>
<div class="card">
<div class="spinner"></div>
<p>Checking whether this page fits your task...</p>
</div>
<script>
fetch("/analyze", {
  method: "POST",
  headers: {"Content-Type": "application/json"},
  body: JSON.stringify({url: {{.URL}}, tab_id: 0})
}).then(function(r) { return r.json(); }).then(function(body) {
  window.location.replace(body.redirect);
}).catch(function() {
  window.location.replace({{.Fallback}});
});
</script>
</body>
</html>
`))

func blockTitle(reason types.BlockReason) string {
	switch reason {
	case types.ReasonNoSession:
		return "No active focus session"
	case types.ReasonSessionEnded:
		return "Your focus session ended"
	case types.ReasonError:
		return "Could not check this page"
	default:
		return "This page does not fit your task"
	}
}

// BlockPage renders the interstitial a blocked tab lands on.
func (h *Handlers) BlockPage(c *gin.Context) {
	reason := types.BlockReason(c.Query("reason"))
	data := gin.H{
		"Title":       blockTitle(reason),
		"Explanation": c.Query("explanation"),
		"Domain":      c.Query("domain"),
		"Original":    c.Query("original_url"),
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := blockTmpl.Execute(c.Writer, data); err != nil {
		h.logger.Warn("block page render failed", zap.Error(err))
	}
}

// AnalyzingPage renders the holding page that resolves the verdict.
func (h *Handlers) AnalyzingPage(c *gin.Context) {
	original := c.Query("url")
	data := gin.H{
		"URL":      original,
		"Fallback": h.blockTarget(types.ReasonError, original, c.Query("domain"), ""),
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := analyzingTmpl.Execute(c.Writer, data); err != nil {
		h.logger.Warn("analysis page render failed", zap.Error(err))
	}
}
