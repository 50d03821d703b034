package serpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/resilience"
)

func TestSearch(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantErr       string
		wantTransient bool
		wantResults   int
	}{
		{
			name:   "success",
			status: http.StatusOK,
			body: `{"organic_results":[
				{"position":1,"title":"Acme","link":"https://acme.com","snippet":"Acme builds widgets"},
				{"position":2,"title":"Acme pricing","link":"https://acme.com/pricing"}
			],"answer_box":{"snippet":"Acme is a widget company"}}`,
			wantResults: 2,
		},
		{
			name:        "no_results",
			status:      http.StatusOK,
			body:        `{"error":"Google hasn't returned any results for this query."}`,
			wantResults: 0,
		},
		{
			name:    "api_error",
			status:  http.StatusOK,
			body:    `{"error":"Invalid API key."}`,
			wantErr: "Invalid API key",
		},
		{
			name:          "rate_limited",
			status:        http.StatusTooManyRequests,
			body:          `{"error":"too many"}`,
			wantErr:       "unexpected status 429",
			wantTransient: true,
		},
		{
			name:    "unauthorized",
			status:  http.StatusUnauthorized,
			body:    `{"error":"bad key"}`,
			wantErr: "unexpected status 401",
		},
		{
			name:    "malformed",
			status:  http.StatusOK,
			body:    `{oops`,
			wantErr: "unmarshal response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search", r.URL.Path)
				assert.Equal(t, "google", r.URL.Query().Get("engine"))
				assert.Equal(t, "acme pricing", r.URL.Query().Get("q"))
				assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
				assert.Equal(t, "5", r.URL.Query().Get("num"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient("test-key", WithBaseURL(srv.URL))
			resp, err := c.Search(context.Background(), SearchRequest{Query: "acme pricing", Num: 5})

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
				return
			}
			require.NoError(t, err)
			assert.Len(t, resp.OrganicResults, tt.wantResults)
		})
	}
}

func TestSearch_EngineOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bing", r.URL.Query().Get("engine"))
		assert.Empty(t, r.URL.Query().Get("num"))
		_, _ = w.Write([]byte(`{"organic_results":[]}`))
	}))
	defer srv.Close()

	c := NewClient("k", WithBaseURL(srv.URL), WithEngine("bing"), WithHTTPClient(srv.Client()))
	_, err := c.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
}
