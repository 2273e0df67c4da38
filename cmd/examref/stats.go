package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		source string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show the subtopic count of every reference taxonomy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var src taxonomy.Source
			switch source {
			case "dir":
				src = taxonomy.NewDirSource(opts.dir)
			case "postgres":
				pg, closeDB, err := opts.postgresSource(ctx)
				if err != nil {
					return err
				}
				defer closeDB()
				src = pg
			default:
				return fmt.Errorf("unknown source %q (want dir or postgres)", source)
			}

			stats, err := taxonomy.NewStore(src).Stats(ctx)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"reference_data": stats})
			}
			return printStats(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&source, "source", "dir", "taxonomy source: dir or postgres")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func printStats(w io.Writer, stats []taxonomy.Stat) error {
	if len(stats) == 0 {
		_, err := fmt.Fprintln(w, "no reference taxonomies found")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "EXAM\tSUBJECT\tSUBTOPICS")
	total := 0
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", s.ExamType, s.Subject, s.Count)
		total += s.Count
	}
	fmt.Fprintf(tw, "\t\t%d\n", total)
	return tw.Flush()
}
