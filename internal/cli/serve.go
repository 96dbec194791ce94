package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ceyewan/flake/bootstrap"
	"github.com/ceyewan/flake/clog"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP ID service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := bootstrap.Load(ctx, path)
			if err != nil {
				return err
			}
			app, err := bootstrap.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() {
				if err := app.Close(context.Background()); err != nil {
					app.Logger.Error("shutdown failed", clog.Error(err))
				}
			}()

			return app.Run(ctx)
		},
	}
	cmd.Flags().StringP("config", "c", os.Getenv("FLAKE_CONFIG"), "Config file (default: ./config.yaml or ./configs/config.yaml)")
	return cmd
}
