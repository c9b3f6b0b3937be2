package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newLeaderboardCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Show all-time top players",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.Leaderboard.TopPlayers(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if len(entries) == 0 {
				fmt.Println("No results recorded yet.")
				return nil
			}

			for i, e := range entries {
				fmt.Printf("%2d. %-20s %5d pts  (%d games)\n",
					i+1, e.DisplayName, e.Score, e.GamesPlayed)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of entries to show")
	return cmd
}
