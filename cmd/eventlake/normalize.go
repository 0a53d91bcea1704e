package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/eventlake/eventlake/internal/app"
	"github.com/eventlake/eventlake/internal/normalize"
)

func newNormalizeCommand(flags *rootFlags) *cobra.Command {
	var (
		job      normalize.Job
		noHeader bool
	)

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Flatten raw batch objects into the interactions CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			if noHeader {
				cfg.Normalize.IncludeHeader = false
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return err
			}

			res, err := app.NewNormalizer(cfg, log, nil).Normalize(cmd.Context(), job)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().StringVar(&job.JobName, "job-name", "", "Job name (required)")
	cmd.Flags().StringVar(&job.Bucket, "bucket", "", "Bucket holding input and output (required)")
	cmd.Flags().StringVar(&job.InputPrefix, "input-prefix", "", "Prefix of the raw batch objects (required)")
	cmd.Flags().StringVar(&job.OutputPrefix, "output-prefix", "", "Prefix of the CSV output (required)")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "Omit the CSV header row")
	return cmd
}
