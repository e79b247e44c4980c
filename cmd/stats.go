package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harvestline/leadgen-cli/internal/model"
)

var statsTop int

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics and top qualified leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		stats, err := e.Store.Stats(ctx)
		if err != nil {
			return err
		}
		printStats(stats)

		if statsTop > 0 {
			leads, err := e.Store.ListQualified(ctx, 0, statsTop)
			if err != nil {
				return err
			}
			fmt.Printf("\nTop %d qualified leads:\n", len(leads))
			for _, l := range leads {
				fmt.Printf("  %6.1f  %s (%s)\n", l.Score, l.Name, l.State)
			}
		}
		return nil
	},
}

func printStats(stats *model.Stats) {
	if stats == nil {
		return
	}
	fmt.Println("Store:")
	fmt.Printf("  total:      %d\n", stats.Total)
	fmt.Printf("  qualified:  %d\n", stats.Qualified)
	fmt.Printf("  enriched:   %d\n", stats.Enriched)
	fmt.Printf("  with email: %d\n", stats.WithEmail)
	fmt.Printf("  with phone: %d\n", stats.WithPhone)
}

func init() {
	statsCmd.Flags().IntVar(&statsTop, "top", 0, "also list this many top qualified leads")
	rootCmd.AddCommand(statsCmd)
}
