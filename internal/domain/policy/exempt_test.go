package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExempt(t *testing.T) {
	e := New("http://localhost:5000", "http://127.0.0.1:8000")

	tests := []struct {
		name   string
		url    string
		exempt bool
	}{
		{"chrome internal", "chrome://settings", true},
		{"extension page", "chrome-extension://abc/block.html", true},
		{"about blank", "about:blank", true},
		{"local file", "file:///home/u/notes.txt", true},
		{"analyzer origin", "http://localhost:5000/analyze", true},
		{"gateway origin", "http://127.0.0.1:8000/block?reason=blocked", true},
		{"analyzer origin case folded", "HTTP://LOCALHOST:5000/x", true},
		{"plain web page", "https://example.com/", false},
		{"https to analyzer host but other port", "http://localhost:5001/", false},
		{"empty url", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.exempt, e.Exempt(tt.url))
		})
	}
}
