package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"prediction-arena/internal/app"
)

var leaderboardLimit int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Display the global standings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if leaderboardLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.LeaderboardOptions{
			Limit: leaderboardLimit,
		}

		return getApp().Leaderboard(cmd.Context(), opts)
	},
}

func init() {
	leaderboardCmd.Flags().IntVar(&leaderboardLimit, "limit", 20, "Number of entries to display")
}
