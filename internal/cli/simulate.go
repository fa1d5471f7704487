package cli

import (
	"time"

	"github.com/spf13/cobra"

	"prediction-arena/internal/app"
)

var simulateSeed int64

var simulateCmd = &cobra.Command{
	Use:   "simulate-match",
	Short: "Play a full offline series with a seeded price walk",
	RunE: func(cmd *cobra.Command, args []string) error {
		seed := simulateSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		return getApp().SimulateMatch(cmd.Context(), app.SimulateOptions{Seed: seed})
	},
}

func init() {
	simulateCmd.Flags().Int64Var(&simulateSeed, "seed", 0, "RNG seed (0 picks a random seed)")
}
