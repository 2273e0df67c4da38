package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/exam-analyzer/internal/platform/database"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate up|down|version",
		Short:     "Apply, roll back or inspect the database schema",
		ValidArgs: []string{string(database.Up), string(database.Down), "version"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.databaseURL == "" {
				return errNoDatabase
			}
			mg, err := database.NewMigrator(opts.databaseURL)
			if err != nil {
				return err
			}
			defer mg.Close()

			if args[0] == "version" {
				v, dirty, err := mg.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty=%t)\n", v, dirty)
				return nil
			}
			return mg.Run(database.Direction(args[0]))
		},
	}
}
