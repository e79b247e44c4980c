package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/harvestline/leadgen-cli/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score NAME STATE",
	Short: "Explain a stored lead's score rule by rule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		rec, err := e.Store.FindByIdentity(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		if rec == nil {
			return eris.Errorf("no lead named %q in %s", args[0], args[1])
		}

		fmt.Printf("%s (%s)\n", rec.Name, rec.State)
		for _, line := range e.Engine.Breakdown(scoring.FromRecord(rec)) {
			fmt.Println("  " + line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
}
