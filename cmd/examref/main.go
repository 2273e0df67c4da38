// Command examref manages the reference taxonomies the exam analyzer
// matches classified questions against.
//
// Usage:
//
//	examref stats [--source dir|postgres] [--json]
//	examref import <workbook.xlsx>
//	examref seed
//	examref migrate up|down|version
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/p-n-ai/exam-analyzer/internal/platform/config"
	"github.com/p-n-ai/exam-analyzer/internal/platform/database"
	"github.com/p-n-ai/exam-analyzer/internal/taxonomy"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// rootOptions are the flags shared by every subcommand. Empty values are
// filled from the analyzer configuration.
type rootOptions struct {
	dir         string
	databaseURL string
	verbose     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "examref",
		Short: "Manage exam analyzer reference taxonomies",
		Long: `examref inspects, imports and seeds the reference taxonomies
(<EXAM>_<Subject> subtopic lists) used to match classified questions.

Flags left empty fall back to the EXAM_* configuration of the server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.complete(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dir, "dir", "", "taxonomy directory")
	flags.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newStatsCmd(opts),
		newImportCmd(opts),
		newSeedCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

func (o *rootOptions) complete(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.dir == "" {
		o.dir = cfg.Taxonomy.Dir
	}
	if o.databaseURL == "" {
		o.databaseURL = cfg.Database.URL
	}
	return nil
}

var errNoDatabase = errors.New("no database configured: pass --database-url or set EXAM_DATABASE_URL")

// connect opens a small pool; callers must Close the returned DB.
func (o *rootOptions) connect(ctx context.Context) (*database.DB, error) {
	if o.databaseURL == "" {
		return nil, errNoDatabase
	}
	return database.New(ctx, config.DatabaseConfig{URL: o.databaseURL, MaxConns: 2, MinConns: 1})
}

// postgresSource opens the database-backed taxonomy source.
func (o *rootOptions) postgresSource(ctx context.Context) (*taxonomy.PostgresSource, func(), error) {
	db, err := o.connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	src, err := taxonomy.NewPostgresSource(db.Pool)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return src, db.Close, nil
}
