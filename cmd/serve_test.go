//go:build !integration

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/store"
)

func serve(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestResolvePort(t *testing.T) {
	assert.Equal(t, 9090, resolvePort(9090, 8080))
	assert.Equal(t, 8080, resolvePort(0, 8080))
	assert.Equal(t, 0, resolvePort(0, 0))
}

func TestBuildMux_Health(t *testing.T) {
	mux := buildMux(newTestEnv(t))

	rr := serve(t, mux, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestBuildMux_EnrichThenReadBack(t *testing.T) {
	mux := buildMux(newTestEnv(t))

	rr := serve(t, mux, http.MethodPost, "/enrich/person-alice")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp struct {
		Status string               `json:"status"`
		Result model.ContextSnippet `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, model.EntityCompany, resp.Result.EntityType)
	assert.Equal(t, "company-google", resp.Result.EntityID)
	assert.Len(t, resp.Result.Payload, 5)
	assert.Len(t, resp.Result.SourceURLs, 3)

	rr = serve(t, mux, http.MethodGet, "/snippets/company-google")
	require.Equal(t, http.StatusOK, rr.Code)
	var snippets []model.ContextSnippet
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &snippets))
	require.Len(t, snippets, 1)
	assert.Equal(t, resp.Result.ID, snippets[0].ID)

	rr = serve(t, mux, http.MethodGet, "/logs")
	require.Equal(t, http.StatusOK, rr.Code)
	var logs []model.SearchLogRecord
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &logs))
	require.Len(t, logs, 1)
	require.NotNil(t, logs[0].ContextSnippetID)
	assert.Equal(t, resp.Result.ID, *logs[0].ContextSnippetID)
	assert.Equal(t, 1, logs[0].Iteration)
}

func TestBuildMux_EnrichUnknownPerson(t *testing.T) {
	env := newTestEnv(t)
	mux := buildMux(env)

	rr := serve(t, mux, http.MethodPost, "/enrich/nobody")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "person not found", body["error"])

	logs, err := env.Store.ListLogs(context.Background(), store.LogFilter{})
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestBuildMux_EnrichUnknownCompany(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Store.UpsertPeople(context.Background(), []model.Person{
		{ID: "person-orphan", Name: "Orphan", CompanyID: "company-gone"},
	})
	require.NoError(t, err)

	rr := serve(t, buildMux(env), http.MethodPost, "/enrich/person-orphan")
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Contains(t, rr.Body.String(), "company not found")
}

func TestBuildMux_EmptyListsAreArrays(t *testing.T) {
	mux := buildMux(newTestEnv(t))

	for _, path := range []string{"/logs", "/snippets/company-unknown"} {
		rr := serve(t, mux, http.MethodGet, path)
		assert.Equal(t, http.StatusOK, rr.Code, path)
		assert.JSONEq(t, "[]", rr.Body.String(), path)
	}
}

func TestBuildMux_People(t *testing.T) {
	mux := buildMux(newTestEnv(t))

	rr := serve(t, mux, http.MethodGet, "/people")
	require.Equal(t, http.StatusOK, rr.Code)

	var people []model.Person
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &people))
	assert.Len(t, people, 2)
}

func TestBuildMux_MethodNotAllowed(t *testing.T) {
	mux := buildMux(newTestEnv(t))
	rr := serve(t, mux, http.MethodGet, "/enrich/person-alice")
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestBuildMux_CORSPreflight(t *testing.T) {
	mux := buildMux(newTestEnv(t))

	req := httptest.NewRequest(http.MethodOptions, "/enrich/person-alice", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStartServer_GracefulShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	mux := buildMux(newTestEnv(t))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- startServer(ctx, mux, port)
	}()

	var ready bool
	for i := 0; i < 50; i++ {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", port))
		if err == nil {
			resp.Body.Close()
			ready = true
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, ready, "server did not become ready in time")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
