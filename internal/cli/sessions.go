package cli

import (
	"fmt"

	"github.com/park285/vocab-battle-bot/internal/domain"
	"github.com/spf13/cobra"
)

const defaultSessionCount = 20

func newSessionsCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage pre-computed battle sessions",
	}
	var count int
	generate := &cobra.Command{
		Use:     "generate <book|topic> <id>",
		Short:   "Replace a scope's sessions with fresh random samples",
		Example: "  battlectl sessions generate book 3 --count 30",
		Args:    cobra.ExactArgs(2),
		PreRunE: func(_ *cobra.Command, args []string) error {
			if _, err := domain.ParseBattleConfig(args[0], args[1]); err != nil {
				return err
			}
			if count <= 0 {
				return fmt.Errorf("--count must be positive, got %d", count)
			}
			return nil
		},
		RunE: withBackend(connect, func(cmd *cobra.Command, b Backend, args []string) error {
			cfg, _ := domain.ParseBattleConfig(args[0], args[1])
			n, err := b.GenerateSessions(cmd.Context(), cfg, count)
			if err != nil {
				return fmt.Errorf("generate %s: %w", cfg, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "generated %d sessions for %s\n", n, cfg)
			return nil
		}),
	}
	generate.Flags().IntVar(&count, "count", defaultSessionCount, "number of sessions to generate")
	cmd.AddCommand(generate)
	return cmd
}
