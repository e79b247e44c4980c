package main

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvestline/leadgen-cli/internal/ingest"
	"github.com/harvestline/leadgen-cli/internal/model"
	"github.com/harvestline/leadgen-cli/internal/pipeline"
	"github.com/harvestline/leadgen-cli/internal/resilience"
	"github.com/harvestline/leadgen-cli/internal/store"
)

var (
	ingestUseAPI bool
	ingestUseCA  bool
	ingestStates []string
	ingestMax    int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch the registry and admit new leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		cursor := newSource(e, ingestUseAPI, ingestUseCA, ingestStates, ingestMax)

		// Postgres gets the COPY-based bulk path; everything else goes
		// record by record through the deduplicating writer.
		if ps, ok := e.Store.(*store.PostgresStore); ok {
			return ingestBulk(ctx, ps, cursor)
		}

		res, err := pipeline.New(cursor, newWriter(e), nil, e.Store).
			Run(ctx, pipeline.Options{SkipEnrich: true})
		if err != nil {
			return err
		}

		fmt.Printf("Admitted %d new leads (%d duplicates skipped)\n",
			res.Admitted, res.Duplicates)
		if res.IngestionAborted {
			fmt.Println("Warning: source failed partway; counts are partial")
		}
		return nil
	},
}

// ingestBulk drains the cursor in chunks through the temp-table COPY
// insert. Duplicates fall out of the conflict target.
func ingestBulk(ctx context.Context, ps *store.PostgresStore, cursor ingest.Cursor) error {
	const chunkSize = 500

	chunk := make([]model.LeadRecord, 0, chunkSize)
	var seen, inserted int64

	flush := func() error {
		if len(chunk) == 0 {
			return nil
		}
		n, err := ps.BulkInsert(ctx, chunk)
		if err != nil {
			return err
		}
		inserted += n
		chunk = chunk[:0]
		return nil
	}

	for {
		cand, err := cursor.Next(ctx)
		if eris.Is(err, ingest.ErrEnd) {
			break
		}
		if err != nil {
			if flushErr := flush(); flushErr != nil {
				zap.L().Warn("ingest: flush after source failure", zap.Error(flushErr))
			}
			if _, fatal := resilience.IsFatalIngest(err); fatal {
				fmt.Printf("Source failed partway: admitted %d of %d seen\n", inserted, seen)
				return nil
			}
			return err
		}
		seen++
		chunk = append(chunk, model.NewLeadRecord(cand))
		if len(chunk) == chunkSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	fmt.Printf("Admitted %d new leads (%d duplicates skipped)\n", inserted, seen-inserted)
	return nil
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestUseAPI, "api", false, "use the paginated search API instead of the bulk export")
	ingestCmd.Flags().BoolVar(&ingestUseCA, "ca", false, "ingest the California CDPH processor registry")
	ingestCmd.Flags().StringSliceVar(&ingestStates, "states", nil, "restrict to these two-letter state codes")
	ingestCmd.Flags().IntVar(&ingestMax, "max", 0, "stop after this many candidates (0 = all)")
	rootCmd.AddCommand(ingestCmd)
}
