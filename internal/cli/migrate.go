package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(connect connectFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: withBackend(connect, func(cmd *cobra.Command, b Backend, _ []string) error {
			if err := b.Migrate(cmd.Context()); err != nil {
				return err
			}
			v, err := b.Version(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (version %d)\n", v)
			return nil
		}),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: withBackend(connect, func(cmd *cobra.Command, b Backend, _ []string) error {
			return b.Status(cmd.Context())
		}),
	})
	return cmd
}
