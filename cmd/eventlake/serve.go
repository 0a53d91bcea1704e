package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eventlake/eventlake/internal/app"
	"github.com/eventlake/eventlake/internal/config"
)

func newServeCommand(flags *rootFlags) *cobra.Command {
	var (
		mode string
		addr string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest API and the change relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(flags)
			if err != nil {
				return err
			}
			defer log.Sync()

			if mode != "" {
				cfg.Mode = config.Mode(mode)
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}

			application, err := app.New(cfg, log)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			if err := application.Start(ctx); err != nil {
				return err
			}

			if err := application.Wait(ctx); err != nil {
				log.Error("shutdown error", zap.Error(err))
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Service mode: all, ingest, relay")
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address")
	return cmd
}
