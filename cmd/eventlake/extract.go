package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eventlake/eventlake/internal/app"
	"github.com/eventlake/eventlake/internal/changefeed"
)

func newExtractCommand(flags *rootFlags) *cobra.Command {
	var bucket string

	cmd := &cobra.Command{
		Use:   "extract <change-feed.json|->",
		Short: "Write the inserts and updates of a change-feed batch to the data lake",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			data, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			records, err := changefeed.ParseEvent(data)
			if err != nil {
				return err
			}

			if bucket == "" {
				bucket = cfg.Storage.Bucket
			}
			lake, err := app.OpenStorage(cmd.Context(), cfg, bucket)
			if err != nil {
				return err
			}

			res, err := app.NewPipeline(cfg, lake, log, nil).Process(cmd.Context(), records)
			if err != nil {
				return err
			}
			log.Info("change batch processed",
				zap.Int("records", len(records)),
				zap.String("status", res.Status),
				zap.String("key", res.Key))

			return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Data lake bucket (defaults to the configured bucket)")
	return cmd
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
