package model

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// SearchResult is one record returned by a search provider. Providers put
// anything beyond url/title/snippet into Extra; it is flattened back on
// marshal so stored results keep the provider's shape.
type SearchResult struct {
	URL     string         `json:"-"`
	Title   string         `json:"-"`
	Snippet string         `json:"-"`
	Extra   map[string]any `json:"-"`
}

var reservedResultKeys = map[string]bool{"url": true, "link": true, "title": true, "snippet": true}

func (r SearchResult) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		if !reservedResultKeys[k] {
			out[k] = v
		}
	}
	if r.URL != "" {
		out["link"] = r.URL
	}
	if r.Title != "" {
		out["title"] = r.Title
	}
	if r.Snippet != "" {
		out["snippet"] = r.Snippet
	}
	return json.Marshal(out)
}

func (r *SearchResult) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "model: decode search result")
	}
	*r = ResultFromMap(raw)
	return nil
}

// ResultFromMap builds a SearchResult from a loosely typed provider record.
// Either "link" or "url" is accepted as the URL key.
func ResultFromMap(raw map[string]any) SearchResult {
	var r SearchResult
	for k, v := range raw {
		s, isString := v.(string)
		switch {
		case (k == "link" || k == "url") && isString && r.URL == "":
			r.URL = s
		case k == "title" && isString:
			r.Title = s
		case k == "snippet" && isString:
			r.Snippet = s
		case reservedResultKeys[k]:
		default:
			if r.Extra == nil {
				r.Extra = make(map[string]any)
			}
			r.Extra[k] = v
		}
	}
	return r
}

// PayloadKind tags the variant held by a SearchPayload.
type PayloadKind int

const (
	PayloadEmpty PayloadKind = iota
	PayloadResults
	PayloadFreeText
)

// SearchPayload is what one search or reasoning step produced: a list of
// structured results, a free-text answer, or nothing.
type SearchPayload struct {
	Kind    PayloadKind
	Results []SearchResult
	Text    string
}

// ResultsPayload wraps structured results. An empty list yields an empty payload.
func ResultsPayload(results []SearchResult) SearchPayload {
	if len(results) == 0 {
		return SearchPayload{}
	}
	return SearchPayload{Kind: PayloadResults, Results: results}
}

// TextPayload wraps a free-text answer. Blank text yields an empty payload.
func TextPayload(text string) SearchPayload {
	if text == "" {
		return SearchPayload{}
	}
	return SearchPayload{Kind: PayloadFreeText, Text: text}
}

// IsEmpty reports whether the payload carries nothing.
func (p SearchPayload) IsEmpty() bool { return p.Kind == PayloadEmpty }

// AsResults renders the payload as a result list for audit storage. Free
// text becomes a single result holding the text as its snippet.
func (p SearchPayload) AsResults() []SearchResult {
	switch p.Kind {
	case PayloadResults:
		return p.Results
	case PayloadFreeText:
		return []SearchResult{{Snippet: p.Text}}
	default:
		return []SearchResult{}
	}
}
