package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"timeaudit/internal/config"
	"timeaudit/internal/refresh"
	"timeaudit/internal/report"
)

func newReportCmd(root *rootOptions) *cobra.Command {
	var (
		format   string
		timezone string
		inputs   []string
		window   int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the audit once and print it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if timezone != "" {
				cfg.Timezone = timezone
			}
			if window > 0 {
				cfg.MovingAverageDays = window
			}
			if len(inputs) > 0 {
				cfg.Sources = inputSources(inputs)
				cfg.Normalize()
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			client := &http.Client{Timeout: 30 * time.Second}
			rep, err := refresh.Generate(cmd.Context(), cfg, client, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return report.WriteWidth(out, rep, format, terminalWidth(out))
		},
	}

	cmd.Flags().StringVarP(&format, "output", "o", report.FormatTable,
		fmt.Sprintf("Output format (%s)", strings.Join(report.Formats, ", ")))
	cmd.Flags().StringVar(&timezone, "timezone", "",
		"Override the configured timezone (e.g. Europe/Berlin, UTC)")
	cmd.Flags().StringSliceVarP(&inputs, "input", "i", nil,
		"Read events from these .ics or .jsonl files instead of the configured sources")
	cmd.Flags().IntVar(&window, "window", 0,
		"Override the moving average window in days")
	return cmd
}

// inputSources turns --input paths into file sources. Format follows the
// extension.
func inputSources(paths []string) []config.SourceConfig {
	out := make([]config.SourceConfig, 0, len(paths))
	for _, p := range paths {
		out = append(out, config.SourceConfig{
			ID:   filepath.Base(p),
			Path: p,
		})
	}
	return out
}

// terminalWidth returns the column count when out is a terminal, else 0.
func terminalWidth(out io.Writer) int {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return w
}
