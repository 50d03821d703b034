package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/research-agent/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "research-agent",
	Short: "Iterative lead enrichment agent",
	Long:  "Searches the web for missing company and person facts, records every round in an audit log, and stores the findings as a context snippet.",
	// stdout carries JSON only; errors are printed as an envelope by main.
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

// errorEnvelope is printed on stdout when a command fails.
type errorEnvelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(w io.Writer, err error) {
	_ = printJSON(w, errorEnvelope{Status: "error", Message: err.Error()})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stdout, err)
		os.Exit(1)
	}
}
