package main

import (
	"context"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/research-agent/internal/config"
	"github.com/sells-group/research-agent/internal/enrich"
)

var (
	batchAll   bool
	batchLimit int
)

var batchCmd = &cobra.Command{
	Use:   "batch [person_id...]",
	Short: "Enrich several people concurrently",
	Args: func(cmd *cobra.Command, args []string) error {
		if batchAll && len(args) > 0 {
			return eris.New("batch: pass person ids or --all, not both")
		}
		if !batchAll && len(args) == 0 {
			return eris.New("batch: at least one person id or --all is required")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initAgent(ctx, config.ModeEnrich)
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if batchAll {
			people, err := env.Directory.ListPeople(ctx, batchLimit)
			if err != nil {
				return eris.Wrap(err, "batch: list people")
			}
			for _, p := range people {
				ids = append(ids, p.ID)
			}
		}

		items := processBatch(ctx, ids, cfg.Batch.MaxConcurrent, env.Enricher.Run)
		return printJSON(cmd.OutOrStdout(), items)
	},
}

func init() {
	batchCmd.Flags().BoolVar(&batchAll, "all", false, "enrich every known person")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of people with --all")
	rootCmd.AddCommand(batchCmd)
}

// enrichFunc is the callback signature for enriching one person.
type enrichFunc func(ctx context.Context, personID string) (*enrich.Result, error)

// batchItem is one entry of the batch output, in input order.
type batchItem struct {
	PersonID string     `json:"person_id"`
	Result   *runOutput `json:"result,omitempty"`
	Error    string     `json:"error,omitempty"`
}

// processBatch runs enrich for every id with at most concurrency runs in
// flight. Individual failures are recorded, never fatal.
func processBatch(ctx context.Context, ids []string, concurrency int, run enrichFunc) []batchItem {
	items := make([]batchItem, len(ids))
	if len(ids) == 0 {
		zap.L().Info("no people to enrich")
		return items
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("people", len(ids)),
		zap.Int("concurrency", concurrency),
	)

	var g errgroup.Group
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, id := range ids {
		items[i].PersonID = id
		g.Go(func() error {
			log := zap.L().With(zap.String("person_id", id))

			res, err := run(ctx, id)
			if err != nil {
				failed.Add(1)
				items[i].Error = err.Error()
				log.Error("enrichment failed", zap.Error(err))
				return nil
			}

			succeeded.Add(1)
			out := newRunOutput(res)
			items[i].Result = &out
			log.Info("enrichment complete",
				zap.String("status", string(res.Status)),
				zap.Int("fields_found", len(res.Snippet.Payload)),
			)
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return items
}
