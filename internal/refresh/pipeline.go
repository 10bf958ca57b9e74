package refresh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"timeaudit/internal/config"
	appLog "timeaudit/internal/log"
	"timeaudit/internal/report"
	"timeaudit/internal/source"
)

// BuildFunc produces a report for the given configuration.
type BuildFunc func(ctx context.Context, cfg *config.Config) (*report.Report, error)

// Pipeline returns a BuildFunc that collects events from every configured
// source and assembles the report. Individual source failures are logged;
// the build fails only when every source failed.
func Pipeline(client *http.Client) BuildFunc {
	return func(ctx context.Context, cfg *config.Config) (*report.Report, error) {
		return Generate(ctx, cfg, client, time.Now())
	}
}

// Generate runs one collect-and-build cycle anchored at now.
func Generate(ctx context.Context, cfg *config.Config, client *http.Client, now time.Time) (*report.Report, error) {
	opts, err := report.OptionsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	providers, err := source.FromConfig(cfg, client)
	if err != nil {
		return nil, err
	}

	w := source.WindowAround(now.In(opts.Location), cfg.Range.BackfillDays, cfg.Range.HorizonDays, opts.Location)
	raws, errs := source.Collect(ctx, providers, w, cfg.ShouldSplitLabels())
	if len(providers) > 0 && len(errs) >= len(providers) {
		return nil, fmt.Errorf("refresh: all sources failed: %w", errors.Join(errs...))
	}

	start := time.Now()
	rep, err := report.Build(raws, opts, now)
	if err != nil {
		return nil, err
	}
	appLog.Info("report built",
		"events", len(raws),
		"labels", len(rep.Labels),
		"days", len(rep.Days),
		"source_errors", len(errs),
		"elapsed", time.Since(start).String(),
	)
	return rep, nil
}
