// Package urlkey derives stable cache keys from raw URLs.
//
// Two URLs that differ only in tracking parameters fold to the same key;
// two distinct search queries on the same search engine never do. The
// composite search-aware key is primary everywhere; the plain normalized
// key exists only as a legacy fallback for old cache records.
package urlkey

import (
	"net/url"
	"sort"
	"strings"
)

// Key is the normalized identity of a destination URL.
type Key struct {
	NormalizedURL string
	SearchQuery   string
	URLKey        string
}

// searchEngines maps search-engine hostnames to the query parameter that
// carries the search terms.
var searchEngines = map[string]string{
	"www.google.com":     "q",
	"google.com":         "q",
	"www.bing.com":       "q",
	"bing.com":           "q",
	"duckduckgo.com":     "q",
	"www.duckduckgo.com": "q",
	"search.yahoo.com":   "p",
	"search.brave.com":   "q",
	"www.startpage.com":  "query",
	"startpage.com":      "query",
	"www.ecosia.org":     "q",
	"ecosia.org":         "q",
	"yandex.com":         "text",
}

// trackingParams are stripped before a URL becomes a key. Values observed
// in the wild from ad and analytics redirects.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
	"msclkid":      true,
	"ref":          true,
	"ref_src":      true,
	"igshid":       true,
}

// Normalize parses a raw absolute URL and derives its cache key. It is a
// pure function: same input, same output. Unparseable input falls back to
// the lowercased raw string so the caller still gets a usable key.
func Normalize(raw string) Key {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		k := strings.ToLower(strings.TrimSuffix(raw, "/"))
		return Key{NormalizedURL: k, URLKey: k}
	}

	host := strings.ToLower(u.Hostname())

	if param, ok := searchEngines[host]; ok {
		query := u.Query().Get(param)
		origin := strings.ToLower(u.Scheme) + "://" + host
		if query == "" {
			// Engine home page gets a key distinct from any search.
			return Key{
				NormalizedURL: origin,
				URLKey:        origin + "::home",
			}
		}
		return Key{
			NormalizedURL: origin,
			SearchQuery:   query,
			URLKey:        origin + "::" + strings.ToLower(strings.TrimSpace(query)),
		}
	}

	normalized := normalizeGeneral(u, host)
	return Key{NormalizedURL: normalized, URLKey: normalized}
}

// Legacy returns the pre-composite key form for a URL: host+path with no
// query folding at all. Old cache records were written under this shape.
func Legacy(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.ToLower(strings.TrimSuffix(raw, "/"))
	}
	host := strings.ToLower(u.Hostname())
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	return host + path
}

// IsSearch reports whether the host is a recognized search engine.
func IsSearch(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	_, ok := searchEngines[strings.ToLower(u.Hostname())]
	return ok
}

func normalizeGeneral(u *url.URL, host string) string {
	q := u.Query()
	for param := range q {
		if trackingParams[strings.ToLower(param)] {
			q.Del(param)
		}
	}

	normalized := strings.ToLower(u.Scheme) + "://" + host
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	normalized += strings.ToLower(path)

	if len(q) > 0 {
		// url.Values.Encode sorts keys, keeping the key order-independent,
		// but spell it out so the invariant is obvious.
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			for _, v := range q[k] {
				parts = append(parts, url.QueryEscape(k)+"="+url.QueryEscape(v))
			}
		}
		normalized += "?" + strings.Join(parts, "&")
	}

	return normalized
}
