package main

import (
	"context"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/config"
	"github.com/sells-group/research-agent/internal/credential"
	"github.com/sells-group/research-agent/internal/enrich"
	"github.com/sells-group/research-agent/internal/extract"
	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/reason"
	"github.com/sells-group/research-agent/internal/registry"
	"github.com/sells-group/research-agent/internal/resilience"
	"github.com/sells-group/research-agent/internal/search"
	"github.com/sells-group/research-agent/internal/store"
	"github.com/sells-group/research-agent/pkg/jina"
	sfpkg "github.com/sells-group/research-agent/pkg/salesforce"
	"github.com/sells-group/research-agent/pkg/serpapi"
)

// agentEnv holds everything the run, batch and serve commands need.
type agentEnv struct {
	Store     store.Store
	Directory store.Directory
	Enricher  *enrich.Enricher
}

// Close releases resources held by the environment.
func (e *agentEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initAgent validates config for mode, opens and migrates the store, and
// wires the enrichment loop. Callers should defer env.Close().
func initAgent(ctx context.Context, mode string) (*agentEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env, err := wireAgent(ctx, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

// wireAgent builds the enricher over an already opened store.
func wireAgent(ctx context.Context, st store.Store) (*agentEnv, error) {
	dir, err := initLookup(st)
	if err != nil {
		return nil, err
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, err
	}

	provider, err := initSearchProvider()
	if err != nil {
		return nil, err
	}

	reasoner, err := initReasoner(ctx)
	if err != nil {
		return nil, err
	}

	extractor, err := extract.New(cfg.Agent.Extractor, schema, cfg.Extract.MaxValueLen)
	if err != nil {
		return nil, err
	}

	policy, err := enrich.ParsePolicy(cfg.Agent.QueryPolicy)
	if err != nil {
		return nil, err
	}

	enricher, err := enrich.New(enrich.Config{
		Schema:        schema,
		MaxIterations: cfg.Agent.MaxIterations,
		Policy:        policy,
		SnippetEntity: model.EntityType(cfg.Agent.SnippetEntity),
		OnTransition: func(runID string, from, to enrich.State) {
			zap.L().Debug("run state changed",
				zap.String("run_id", runID),
				zap.String("from", string(from)),
				zap.String("to", string(to)),
			)
		},
	}, enrich.Deps{
		Lookup:    dir,
		Logs:      st,
		Snippets:  st,
		Search:    search.NewGateway(provider, gatewayConfig()),
		Reasoner:  reasoner,
		Extractor: extractor,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("agent ready",
		zap.String("schema", schema.Name),
		zap.String("search", provider.Name()),
		zap.String("llm", cfg.LLM.Provider),
		zap.String("policy", string(policy)),
		zap.Int("budget", enricher.Budget()),
	)

	return &agentEnv{Store: st, Directory: dir, Enricher: enricher}, nil
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return initMemoryStore(ctx)
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "research-agent.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initMemoryStore returns a memory store preloaded with store.seed_file, or
// with the demo fixture when that is unset.
func initMemoryStore(ctx context.Context) (store.Store, error) {
	fixture, err := loadFixture(cfg.Store.SeedFile)
	if err != nil {
		return nil, err
	}
	st := store.NewMemory()
	out, err := seedStore(ctx, st, fixture)
	if err != nil {
		return nil, err
	}
	zap.L().Info("seeded memory store",
		zap.String("fixture", cfg.Store.SeedFile),
		zap.Int64("companies", out.Companies),
		zap.Int64("people", out.People),
	)
	return st, nil
}

// initLookup returns where people and companies are resolved: the store
// itself or Salesforce.
func initLookup(st store.Store) (store.Directory, error) {
	if cfg.Lookup.Driver != "salesforce" {
		return st, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	client, err := sfpkg.Dial(sfpkg.Creds{
		LoginURL:   cfg.Salesforce.LoginURL,
		Username:   cfg.Salesforce.Username,
		ClientID:   cfg.Salesforce.ClientID,
		PrivateKey: string(pemData),
	}, sfpkg.WithRateLimit(cfg.Salesforce.RateLimitRPS))
	if err != nil {
		return nil, err
	}
	return store.NewSalesforceLookup(client), nil
}

func loadSchema() (*registry.Schema, error) {
	if cfg.Agent.SchemaFile != "" {
		return registry.LoadSchemaFromFile(cfg.Agent.SchemaFile)
	}
	return registry.Builtin(cfg.Agent.Schema)
}

func initSearchProvider() (search.Provider, error) {
	switch cfg.Search.Provider {
	case search.ProviderSerpAPI:
		var opts []serpapi.Option
		if cfg.Search.BaseURL != "" {
			opts = append(opts, serpapi.WithBaseURL(cfg.Search.BaseURL))
		}
		return search.NewSerpAPI(serpapi.NewClient(cfg.Search.Key, opts...), cfg.Search.Results), nil
	case search.ProviderJina:
		var opts []jina.Option
		if cfg.Search.BaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(cfg.Search.BaseURL))
		}
		return search.NewJina(jina.NewClient(cfg.Search.Key, opts...)), nil
	case search.ProviderMock:
		return search.NewMock(cfg.Search.Results), nil
	default:
		return nil, eris.Errorf("unsupported search provider: %s", cfg.Search.Provider)
	}
}

func gatewayConfig() search.GatewayConfig {
	gc := search.DefaultGatewayConfig()
	if cfg.Search.TimeoutSecs > 0 {
		gc.Timeout = time.Duration(cfg.Search.TimeoutSecs) * time.Second
	}
	gc.MaxResults = cfg.Search.Results
	if cfg.Search.Retries > 0 {
		gc.Retry.MaxAttempts = cfg.Search.Retries
	}
	gc.Breaker = resilience.FromCircuitConfig(cfg.Search.BreakerThreshold, cfg.Search.BreakerResetSecs)
	gc.RateLimit = cfg.Search.RateLimitRPS
	return gc
}

// initReasoner picks one LLM key for the lifetime of the process and builds
// the configured reasoner. It returns nil when the LLM step is disabled.
func initReasoner(ctx context.Context) (reason.Reasoner, error) {
	var key string
	switch cfg.LLM.Provider {
	case reason.ProviderNone, reason.ProviderMock:
	default:
		pool, err := credential.New(credential.Strategy(cfg.LLM.Selection), cfg.LLM.Keys)
		if err != nil {
			return nil, err
		}
		key = pool.Pick()
		zap.L().Info("llm credential selected",
			zap.String("provider", cfg.LLM.Provider),
			zap.String("key", credential.Redact(key)),
			zap.Int("pool_size", pool.Len()),
		)
	}

	return reason.New(ctx, reason.Options{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Grounding:   cfg.LLM.Grounding,
		Timeout:     time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		Retry:       resilience.FromRetryConfig(cfg.LLM.Retries, 0, 0),
	}, key)
}

// openStore validates store settings and opens a migrated store for the
// maintenance commands.
func openStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ModeStore); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
