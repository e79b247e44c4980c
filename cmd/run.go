package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harvestline/leadgen-cli/internal/pipeline"
)

var (
	runUseAPI bool
	runUseCA  bool
	runStates []string
	runMax    int
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full pipeline: ingest, deduplicate, enrich, score",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		cursor := newSource(e, runUseAPI, runUseCA, runStates, runMax)
		p := pipeline.New(cursor, newWriter(e), newCoordinator(e), e.Store)

		res, err := p.Run(ctx, pipeline.Options{
			EnrichBatchSize: cfg.Enrich.BatchSize,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Run %s complete\n", res.RunID)
		fmt.Printf("  admitted:   %d\n", res.Admitted)
		fmt.Printf("  duplicates: %d\n", res.Duplicates)
		fmt.Printf("  enriched:   %d\n", res.Enriched)
		if res.IngestionAborted {
			fmt.Println("  (ingestion aborted partway; counts are partial)")
		}
		printStats(res.Stats)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVar(&runUseAPI, "api", false, "use the paginated search API instead of the bulk export")
	runCmd.Flags().BoolVar(&runUseCA, "ca", false, "ingest the California CDPH processor registry")
	runCmd.Flags().StringSliceVar(&runStates, "states", nil, "restrict to these two-letter state codes")
	runCmd.Flags().IntVar(&runMax, "max", 0, "stop after this many candidates (0 = all)")
	rootCmd.AddCommand(runCmd)
}
