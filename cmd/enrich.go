package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harvestline/leadgen-cli/internal/pipeline"
)

var (
	enrichBatch int
	enrichMax   int
	enrichReset []int64
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich and score pending leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if len(enrichReset) > 0 {
			if err := e.Store.MarkPending(ctx, enrichReset); err != nil {
				return err
			}
			fmt.Printf("Re-queued %d leads for enrichment\n", len(enrichReset))
		}

		batch := enrichBatch
		if batch == 0 {
			batch = cfg.Enrich.BatchSize
		}

		res, err := pipeline.New(nil, nil, newCoordinator(e), e.Store).
			Run(ctx, pipeline.Options{
				SkipIngest:      true,
				EnrichBatchSize: batch,
				MaxEnrich:       enrichMax,
			})
		if err != nil {
			return err
		}

		fmt.Printf("Enriched %d leads (%d qualified of %d total)\n",
			res.Enriched, res.Stats.Qualified, res.Stats.Total)
		return nil
	},
}

func init() {
	enrichCmd.Flags().IntVar(&enrichBatch, "batch", 0, "leads per batch (default from config)")
	enrichCmd.Flags().IntVar(&enrichMax, "max", 0, "stop after this many leads (0 = all pending)")
	enrichCmd.Flags().Int64SliceVar(&enrichReset, "force", nil, "lead ids to re-queue before enriching")
	rootCmd.AddCommand(enrichCmd)
}
