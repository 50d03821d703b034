package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/research-agent/internal/model"
	"github.com/sells-group/research-agent/internal/registry"
	"github.com/sells-group/research-agent/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the agent's tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		return printJSON(cmd.OutOrStdout(), map[string]string{"status": "ok", "driver": cfg.Store.Driver})
	},
}

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load people and companies from a fixture file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fixture, err := loadFixture(seedFile)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		out, err := seedStore(cmd.Context(), st, fixture)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

// loadFixture reads path, or returns the demo fixture when path is empty.
func loadFixture(path string) (*registry.Fixture, error) {
	if path == "" {
		return registry.DemoFixture(), nil
	}
	return registry.LoadFixtureFromFile(path)
}

type seedOutput struct {
	Status    string `json:"status"`
	Companies int64  `json:"companies"`
	People    int64  `json:"people"`
}

// seedStore writes companies before people so person rows never reference
// a missing company.
func seedStore(ctx context.Context, st store.Store, fixture *registry.Fixture) (seedOutput, error) {
	companies, err := st.UpsertCompanies(ctx, fixture.Companies)
	if err != nil {
		return seedOutput{}, eris.Wrap(err, "seed companies")
	}
	people, err := st.UpsertPeople(ctx, fixture.People)
	if err != nil {
		return seedOutput{}, eris.Wrap(err, "seed people")
	}
	return seedOutput{Status: "ok", Companies: companies, People: people}, nil
}

var (
	logsRunID string
	logsLimit int
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Print stored search log records",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		logs, err := st.ListLogs(cmd.Context(), store.LogFilter{RunID: logsRunID, Limit: logsLimit})
		if err != nil {
			return eris.Wrap(err, "list logs")
		}
		if logs == nil {
			logs = []model.SearchLogRecord{}
		}
		return printJSON(cmd.OutOrStdout(), logs)
	},
}

var (
	snippetsType  string
	snippetsLimit int
)

var snippetsCmd = &cobra.Command{
	Use:   "snippets <entity_id>",
	Short: "Print context snippets stored for an entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		entityType := model.EntityType(snippetsType)
		if entityType != "" && !entityType.Valid() {
			return eris.Errorf("snippets: invalid entity type %q", snippetsType)
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		snippets, err := st.ListSnippets(cmd.Context(), store.SnippetFilter{
			EntityType: entityType,
			EntityID:   args[0],
			Limit:      snippetsLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list snippets")
		}
		if snippets == nil {
			snippets = []model.ContextSnippet{}
		}
		return printJSON(cmd.OutOrStdout(), snippets)
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "YAML or JSON fixture (built-in demo data when empty)")
	logsCmd.Flags().StringVar(&logsRunID, "run-id", "", "only records of this run")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 0, "max records (0 = all)")
	snippetsCmd.Flags().StringVar(&snippetsType, "type", "", "entity type: company or person")
	snippetsCmd.Flags().IntVar(&snippetsLimit, "limit", 0, "max snippets (0 = all)")

	rootCmd.AddCommand(migrateCmd, seedCmd, logsCmd, snippetsCmd)
}
