//go:build !integration

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/config"
	"github.com/sells-group/research-agent/internal/registry"
	"github.com/sells-group/research-agent/internal/store"
)

// useConfig installs an offline configuration for the duration of the test.
func useConfig(t *testing.T) *config.Config {
	t.Helper()
	c := &config.Config{}
	c.Store.Driver = "memory"
	c.Search.Provider = "mock"
	c.Search.Results = 3
	c.Search.TimeoutSecs = 5
	c.LLM.Provider = "none"
	c.LLM.Selection = "random"
	c.Agent.Schema = registry.SchemaDeepSearch
	c.Agent.QueryPolicy = "batch"
	c.Agent.Extractor = "canned"
	c.Agent.SnippetEntity = "company"
	c.Extract.MaxValueLen = 2000
	c.Lookup.Driver = "store"
	c.Batch.MaxConcurrent = 2
	c.Server.Port = 8080
	c.Log.Level = "info"
	c.Log.Format = "json"

	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

// newTestEnv wires the agent over a memory store seeded with the demo
// fixture.
func newTestEnv(t *testing.T) *agentEnv {
	t.Helper()
	if cfg == nil || cfg.Store.Driver != "memory" {
		useConfig(t)
	}
	ctx := context.Background()
	st := store.NewMemory()
	_, err := seedStore(ctx, st, registry.DemoFixture())
	require.NoError(t, err)

	env, err := wireAgent(ctx, st)
	require.NoError(t, err)
	t.Cleanup(env.Close)
	return env
}
