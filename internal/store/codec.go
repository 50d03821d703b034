package store

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-agent/internal/model"
)

func nonNilResults(results []model.SearchResult) []model.SearchResult {
	if results == nil {
		return []model.SearchResult{}
	}
	return results
}

func encodeSnippet(snip model.ContextSnippet) (payload, urls []byte, err error) {
	if snip.Payload == nil {
		snip.Payload = model.FieldMapping{}
	}
	payload, err = json.Marshal(snip.Payload)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal snippet payload")
	}
	if snip.SourceURLs == nil {
		snip.SourceURLs = []string{}
	}
	urls, err = json.Marshal(snip.SourceURLs)
	if err != nil {
		return nil, nil, eris.Wrap(err, "store: marshal snippet source urls")
	}
	return payload, urls, nil
}

func decodeSnippet(snip *model.ContextSnippet, payload, urls []byte) error {
	if err := json.Unmarshal(payload, &snip.Payload); err != nil {
		return eris.Wrapf(err, "store: unmarshal payload for snippet %s", snip.ID)
	}
	if err := json.Unmarshal(urls, &snip.SourceURLs); err != nil {
		return eris.Wrapf(err, "store: unmarshal source urls for snippet %s", snip.ID)
	}
	return nil
}

// jsonArg encodes v as a string so pgx sends it as JSONB text.
func jsonArg(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func unmarshalJSON(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}
