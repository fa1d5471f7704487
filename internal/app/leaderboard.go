package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
)

// Leaderboard prints the global standings from the profile store.
func (a *App) Leaderboard(ctx context.Context, opts LeaderboardOptions) error {
	repo, closeRepo, err := a.openProfiles(ctx)
	if err != nil {
		return err
	}
	if repo == nil {
		return errors.New("database not configured; cannot show leaderboard")
	}
	if closeRepo != nil {
		defer closeRepo()
	}

	entries, err := repo.Leaderboard(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(os.Stdout, "no profiles found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Rank\tOperator\tWins\tScore")
	for i, entry := range entries {
		fmt.Fprintf(writer, "%d\t%s\t%d\t%d\n", i+1, entry.Username, entry.Wins, entry.TotalScore)
	}

	return writer.Flush()
}
