package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

func newSeedCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Copy every taxonomy file of the directory into PostgreSQL",
		Long: `Replaces the stored subtopics of each <EXAM>_<Subject> file found in the
taxonomy directory. Taxonomies that exist only in the database are kept.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			dir := taxonomy.NewDirSource(opts.dir)
			keys, err := dir.List(ctx)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				return fmt.Errorf("no taxonomy files in %s", opts.dir)
			}

			pg, closeDB, err := opts.postgresSource(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			for _, key := range keys {
				t, err := dir.Read(ctx, key)
				if err != nil {
					return err
				}
				if err := pg.Replace(ctx, key, t); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %s: %d subtopics\n", key, len(t))
			}
			return nil
		},
	}
}
