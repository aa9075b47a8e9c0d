package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatsCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "stats <player-id>",
		Short: "Print a player's battle record",
		Args:  cobra.ExactArgs(1),
		RunE: withBackend(connect, func(cmd *cobra.Command, b Backend, args []string) error {
			s, err := b.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "player:   %s\n", args[0])
			fmt.Fprintf(out, "matches:  %d (W %d / L %d / D %d)\n", s.Total, s.Wins, s.Losses, s.Draws)
			fmt.Fprintf(out, "win rate: %.1f%%\n", s.WinRate)
			fmt.Fprintf(out, "avg score: %.1f\n", s.AvgScore)
			if s.Streak > 0 {
				fmt.Fprintf(out, "streak:   %d %s\n", s.Streak, s.StreakType)
			}
			return nil
		}),
	}
}

func newHeadToHeadCmd(connect connectFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "h2h <player-id> <opponent-id>",
		Short: "Print the record between two players",
		Args:  cobra.ExactArgs(2),
		RunE: withBackend(connect, func(cmd *cobra.Command, b Backend, args []string) error {
			h, err := b.HeadToHead(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s vs %s: %d matches (W %d / L %d / D %d)\n",
				args[0], args[1], h.Total, h.Wins, h.Losses, h.Draws)
			return nil
		}),
	}
}
