//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/research-agent/internal/config"
	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/reason"
	"github.com/sells-group/research-agent/internal/registry"
	"github.com/sells-group/research-agent/internal/search"
	"github.com/sells-group/research-agent/internal/store"
)

func TestInitStore_Drivers(t *testing.T) {
	c := useConfig(t)
	ctx := context.Background()

	st, err := initStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &store.MemoryStore{}, st)

	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = filepath.Join(t.TempDir(), "agent.db")
	st, err = initStore(ctx)
	require.NoError(t, err)
	assert.IsType(t, &store.SQLiteStore{}, st)
	require.NoError(t, st.Close())

	c.Store.Driver = "mysql"
	_, err = initStore(ctx)
	assert.ErrorContains(t, err, "unsupported store driver")
}

func TestInitLookup_DefaultsToStore(t *testing.T) {
	useConfig(t)
	st := store.NewMemory()

	dir, err := initLookup(st)
	require.NoError(t, err)
	assert.Same(t, st, dir)
}

func TestInitLookup_SalesforceMissingKeyFile(t *testing.T) {
	c := useConfig(t)
	c.Lookup.Driver = "salesforce"
	c.Salesforce.KeyPath = filepath.Join(t.TempDir(), "missing.pem")

	_, err := initLookup(store.NewMemory())
	assert.ErrorContains(t, err, "read salesforce JWT private key")
}

func TestLoadSchema(t *testing.T) {
	c := useConfig(t)

	s, err := loadSchema()
	require.NoError(t, err)
	assert.Equal(t, registry.SchemaDeepSearch, s.Name)

	c.Agent.Schema = "nope"
	_, err = loadSchema()
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: custom
fields:
  - key: hq_city
    label: headquarters city
`), 0o644))
	c.Agent.SchemaFile = path
	s, err = loadSchema()
	require.NoError(t, err)
	assert.Equal(t, "custom", s.Name)
	assert.Equal(t, 1, s.Len())
}

func TestInitSearchProvider(t *testing.T) {
	c := useConfig(t)

	tests := []struct {
		provider string
		want     string
	}{
		{search.ProviderMock, search.ProviderMock},
		{search.ProviderSerpAPI, search.ProviderSerpAPI},
		{search.ProviderJina, search.ProviderJina},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			c.Search.Provider = tt.provider
			c.Search.Key = "k"
			c.Search.BaseURL = "http://127.0.0.1:1"
			p, err := initSearchProvider()
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Name())
		})
	}

	c.Search.Provider = "bing"
	_, err := initSearchProvider()
	assert.Error(t, err)
}

func TestGatewayConfig(t *testing.T) {
	c := useConfig(t)
	c.Search.TimeoutSecs = 7
	c.Search.Retries = 4
	c.Search.RateLimitRPS = 2.5
	c.Search.BreakerThreshold = 9
	c.Search.BreakerResetSecs = 11

	gc := gatewayConfig()
	assert.Equal(t, 7*time.Second, gc.Timeout)
	assert.Equal(t, 3, gc.MaxResults)
	assert.Equal(t, 4, gc.Retry.MaxAttempts)
	assert.InDelta(t, 2.5, gc.RateLimit, 0.001)
	assert.Equal(t, 9, gc.Breaker.FailureThreshold)
	assert.Equal(t, 11*time.Second, gc.Breaker.ResetTimeout)
}

func TestInitReasoner(t *testing.T) {
	c := useConfig(t)
	ctx := context.Background()

	r, err := initReasoner(ctx)
	require.NoError(t, err)
	assert.Nil(t, r)

	c.LLM.Provider = reason.ProviderMock
	r, err = initReasoner(ctx)
	require.NoError(t, err)
	require.NotNil(t, r)

	c.LLM.Provider = reason.ProviderAnthropic
	c.LLM.Keys = nil
	_, err = initReasoner(ctx)
	assert.Error(t, err)

	c.LLM.Keys = []string{"sk-one", "sk-two"}
	c.LLM.Selection = "round_robin"
	r, err = initReasoner(ctx)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestInitAgent_Offline(t *testing.T) {
	useConfig(t)

	env, err := initAgent(context.Background(), config.ModeEnrich)
	require.NoError(t, err)
	defer env.Close()

	assert.NotNil(t, env.Enricher)
	assert.Equal(t, 5, env.Enricher.Budget())
}

func TestInitAgent_MemoryStoreServesDemoPeople(t *testing.T) {
	useConfig(t)
	ctx := context.Background()

	env, err := initAgent(ctx, config.ModeServe)
	require.NoError(t, err)
	defer env.Close()

	people, err := env.Directory.ListPeople(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, people, 2)

	res, err := env.Enricher.Run(ctx, "person-alice")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, res.Status)
	assert.Equal(t, "company-google", res.Snippet.EntityID)
}

func TestInitStore_MemorySeedFile(t *testing.T) {
	c := useConfig(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
companies:
  - id: c-acme
    name: Acme
people:
  - id: p-wile
    name: Wile Coyote
    company_id: c-acme
`), 0o644))
	c.Store.SeedFile = path

	st, err := initStore(ctx)
	require.NoError(t, err)
	p, err := st.GetPerson(ctx, "p-wile")
	require.NoError(t, err)
	require.NotNil(t, p)
	missing, err := st.GetPerson(ctx, "person-alice")
	require.NoError(t, err)
	assert.Nil(t, missing)

	c.Store.SeedFile = filepath.Join(t.TempDir(), "absent.yaml")
	_, err = initStore(ctx)
	assert.Error(t, err)
}

func TestInitAgent_InvalidConfig(t *testing.T) {
	c := useConfig(t)
	c.Store.Driver = "postgres"
	c.Store.DatabaseURL = ""

	_, err := initAgent(context.Background(), config.ModeEnrich)
	assert.ErrorContains(t, err, "store.database_url is required")
}

func TestWireAgent_BadPolicy(t *testing.T) {
	c := useConfig(t)
	c.Agent.QueryPolicy = "everything"

	_, err := wireAgent(context.Background(), store.NewMemory())
	assert.Error(t, err)
}
