package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/chattxt/internal/config"
	"github.com/MikeSquared-Agency/chattxt/internal/convert"
	"github.com/MikeSquared-Agency/chattxt/internal/logging"
)

func newConvertCmd() *cobra.Command {
	var (
		output      string
		baseURL     string
		tz          string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "convert [files|dir]...",
		Short: "Convert export files into _chat.txt",
		Long: `Convert one batch of export files. All files must share a format: either
JSON exports or HTML pages. A directory expands to the export files it holds in
natural order (messages.html, messages2.html, ..., messages10.html).`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cmd.Flags().Changed("base-url") {
				baseURL = cfg.BaseURL
			}
			if !cmd.Flags().Changed("tz") {
				tz = cfg.Timezone
			}
			if !cmd.Flags().Changed("concurrency") {
				concurrency = cfg.Concurrency
			}

			loc, err := loadLocation(tz)
			if err != nil {
				return fmt.Errorf("load timezone: %w", err)
			}

			logger := logging.New(cfg.LogLevel, cfg.LogFormatOr("text"), cmd.ErrOrStderr())
			conv := convert.New(convert.Options{
				Location:    loc,
				BaseURL:     baseURL,
				Concurrency: concurrency,
			}, logger, nil)

			runner := convert.NewRunner(convert.RunConfig{Inputs: args, Output: output}, conv, cmd.OutOrStdout(), logger)
			_, err = runner.Run(cmd.Context())
			return err
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `output file or directory ("-" for stdout, default ./_chat.txt)`)
	cmd.Flags().StringVar(&baseURL, "base-url", "", "location of the HTML export page; attachment links under its directory are made relative")
	cmd.Flags().StringVar(&tz, "tz", "", "timezone for rendered timestamps (default Local)")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "max files read at once")
	return cmd
}
