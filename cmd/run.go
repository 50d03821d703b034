package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/research-agent/internal/config"
	"github.com/sells-group/research-agent/internal/enrich"
	"github.com/sells-group/research-agent/internal/model"
)

var runCmd = &cobra.Command{
	Use:   "run <person_id>",
	Short: "Enrich a single person and their company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initAgent(ctx, config.ModeEnrich)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Enricher.Run(ctx, args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), newRunOutput(res))
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// runOutput is the JSON shape printed for a finished run.
type runOutput struct {
	Status           model.RunStatus    `json:"status"`
	RunID            string             `json:"run_id"`
	PersonID         string             `json:"person_id"`
	PersonName       string             `json:"person_name"`
	CompanyID        string             `json:"company_id"`
	CompanyName      string             `json:"company_name"`
	EnrichedData     model.FieldMapping `json:"enriched_data"`
	ContextSnippetID string             `json:"context_snippet_id"`
	SourceURLs       []string           `json:"source_urls"`
	Iterations       int                `json:"iterations"`
	PersistErrors    []string           `json:"persist_errors"`
}

func newRunOutput(res *enrich.Result) runOutput {
	out := runOutput{
		Status:           res.Status,
		RunID:            res.RunID,
		PersonID:         res.Person.ID,
		PersonName:       res.Person.Name,
		CompanyID:        res.Company.ID,
		CompanyName:      res.Company.Name,
		EnrichedData:     res.Snippet.Payload,
		ContextSnippetID: res.Snippet.ID,
		SourceURLs:       res.Snippet.SourceURLs,
		Iterations:       res.Iterations,
		PersistErrors:    res.PersistErrors,
	}
	if out.EnrichedData == nil {
		out.EnrichedData = model.FieldMapping{}
	}
	if out.SourceURLs == nil {
		out.SourceURLs = []string{}
	}
	if out.PersistErrors == nil {
		out.PersistErrors = []string{}
	}
	return out
}
