package main

import (
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"timeaudit/internal/config"
	appLog "timeaudit/internal/log"
)

var version = "0.1.0-dev"

const defaultConfigPath = "./timeaudit.yaml"

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "timeaudit",
		Short: "Daily time audit from calendar events",
		Long: `timeaudit turns labelled calendar events into a day-by-label hour matrix
and the series derived from it: pages read, context switches, creative hours
against a goal line, half-period averages and smoothed daily shares.

Examples:
  timeaudit report                         # table summary using ./timeaudit.yaml
  timeaudit report -o csv > audit.csv      # one row per day
  timeaudit report --input export.jsonl    # ignore configured sources
  timeaudit serve --listen :8080           # HTTP API with scheduled refresh`,
		SilenceUsage: true,
	}
	root.SetOut(out)

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", defaultConfigPath,
		"Path to config file (created with defaults if missing)")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false,
		"Enable debug logging")

	root.AddCommand(
		newReportCmd(opts),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return root
}

// loadConfig loads, validates and applies the log level of the config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", o.configPath)
		return nil, err
	}

	level, ok := appLog.ParseLevel(cfg.LogLevel)
	if !ok {
		appLog.Warn("unknown log level; using info", "log_level", cfg.LogLevel)
	}
	if o.debug {
		level = appLog.LevelDebug
	}
	appLog.SetLevel(level)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", o.configPath, err)
	}
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "timeaudit %s (%s %s/%s)\n", version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
