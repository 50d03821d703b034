// Package harvest collects source URLs from search payloads and loosely
// typed provider output.
package harvest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/research-agent/internal/model"
)

var urlPattern = regexp.MustCompile(`https?://[^\s'",]+`)

// trailingPunct is stripped from matches so a URL ending a sentence or
// wrapped in brackets dedupes with the bare link.
const trailingPunct = ".,;:!?)]}>"

// Set is a deduplicated collection of URLs.
type Set map[string]struct{}

// Add inserts every url into s.
func (s Set) Add(urls ...string) {
	for _, u := range urls {
		if u != "" {
			s[u] = struct{}{}
		}
	}
}

// Union inserts every member of other into s.
func (s Set) Union(other Set) {
	for u := range other {
		s[u] = struct{}{}
	}
}

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for u := range s {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// FromText pattern-matches every http(s) URL in text.
func FromText(text string) Set {
	s := Set{}
	for _, m := range urlPattern.FindAllString(text, -1) {
		u := strings.TrimRight(m, trailingPunct)
		if u == "http://" || u == "https://" {
			continue
		}
		s.Add(u)
	}
	return s
}

// FromResults collects the link of each result plus any URL embedded in its
// title, snippet or string-valued extras.
func FromResults(results []model.SearchResult) Set {
	s := Set{}
	for _, r := range results {
		s.Add(r.URL)
		s.Union(FromText(r.Title))
		s.Union(FromText(r.Snippet))
		for _, v := range r.Extra {
			s.Union(FromAny(v))
		}
	}
	return s
}

// FromPayload dispatches on the payload variant.
func FromPayload(p model.SearchPayload) Set {
	switch p.Kind {
	case model.PayloadResults:
		return FromResults(p.Results)
	case model.PayloadFreeText:
		return FromText(p.Text)
	default:
		return Set{}
	}
}

// FromAny walks decoded JSON-like data. Values under "link" or "url" keys are
// taken as-is; every other string is scanned for URLs. Types it does not
// understand are skipped.
func FromAny(v any) Set {
	s := Set{}
	walk(v, s)
	return s
}

func walk(v any, s Set) {
	switch t := v.(type) {
	case string:
		s.Union(FromText(t))
	case []any:
		for _, item := range t {
			walk(item, s)
		}
	case []string:
		for _, item := range t {
			s.Union(FromText(item))
		}
	case map[string]any:
		for k, item := range t {
			if str, ok := item.(string); ok && (k == "link" || k == "url") {
				s.Add(str)
				continue
			}
			walk(item, s)
		}
	case []map[string]any:
		for _, item := range t {
			walk(item, s)
		}
	}
}
