package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/chattxt/internal/backfill"
	"github.com/MikeSquared-Agency/chattxt/internal/config"
	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/logging"
	"github.com/MikeSquared-Agency/chattxt/internal/slack"
	"github.com/MikeSquared-Agency/chattxt/internal/store"
)

func newBackfillCmd() *cobra.Command {
	var (
		statePath string
		tz        string
		dryRun    bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "backfill <root>",
		Short: "Convert every export folder under a directory tree",
		Long: `Walks <root> for chat export folders (a result.json, or messages*.html pages)
and writes a _chat.txt into each. Progress is kept in a state file so an interrupted
run resumes where it stopped; copies of an already converted export are skipped.
Conversions are recorded in the history table when DATABASE_URL is set, and a
summary is posted to SLACK_CHANNEL when SLACK_BOT_TOKEN is set.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cmd.Flags().Changed("tz") {
				tz = cfg.Timezone
			}
			loc, err := loadLocation(tz)
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			ctx := cmd.Context()
			logger := logging.New(cfg.LogLevel, cfg.LogFormatOr("text"), cmd.ErrOrStderr())

			var rec backfill.Recorder
			if cfg.DatabaseURL != "" && !dryRun {
				db, err := store.New(ctx, cfg.DatabaseURL)
				if err != nil {
					return fmt.Errorf("connect database: %w", err)
				}
				defer db.Close()
				if err := db.EnsureSchema(ctx); err != nil {
					return err
				}
				rec = db
			}

			conv := convert.New(convert.Options{Location: loc, Concurrency: cfg.Concurrency}, logger, nil)
			runner := backfill.NewRunner(backfill.Config{
				Root:      args[0],
				StatePath: statePath,
				DryRun:    dryRun,
				Force:     force,
			}, conv, rec, cmd.OutOrStdout(), logger)
			if cfg.SlackBotToken != "" && cfg.SlackChannel != "" {
				runner.WithNotifier(slack.NewPoster(cfg.SlackBotToken, cfg.SlackChannel, logger))
			}

			_, err = runner.Run(ctx)
			return err
		},
	}

	cmd.Flags().StringVar(&statePath, "state", backfill.DefaultStatePath, "state file for resumable runs")
	cmd.Flags().StringVar(&tz, "tz", "", "timezone for rendered timestamps (default Local)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "convert without writing transcripts, state or history")
	cmd.Flags().BoolVar(&force, "force", false, "reconvert exports already recorded in the state file")
	return cmd
}
