package main

import (
	"fmt"

	"github.com/JonMunkholm/cademycode/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the run history migrations to the destination database",
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := database.Migrate(c.cfg.Destination.URL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "history schema at version %d\n", version)
			return nil
		},
	}
}
