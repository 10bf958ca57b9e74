package main

import (
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "timeaudit/internal/log"
	"timeaudit/internal/refresh"
	"timeaudit/internal/web"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the audit over HTTP and refresh it on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			// --listen overrides the config file.
			if listen != "" {
				cfg.Listen = listen
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"timezone", cfg.Timezone,
				"refresh", cfg.RefreshCron,
				"backfill_days", cfg.Range.BackfillDays,
				"horizon_days", cfg.Range.HorizonDays,
				"sources", len(cfg.Sources),
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := &http.Client{Timeout: 30 * time.Second}
			runner := refresh.NewRunner(cfg, root.configPath, refresh.Pipeline(client))
			if root.debug {
				runner.PinLogLevel()
			}
			if err := runner.Start(ctx); err != nil {
				return err
			}
			defer runner.Stop()

			err = web.StartServer(ctx, cfg, runner)
			appLog.Info("timeaudit exiting")
			return err
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "",
		"HTTP listen address (overrides config if set)")
	return cmd
}

