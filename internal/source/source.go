package source

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"timeaudit/internal/config"
	"timeaudit/internal/ics"
	appLog "timeaudit/internal/log"
	"timeaudit/internal/model"
)

// Window is the period a provider should cover, and the zone its events
// are reported in.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// WindowAround builds a window of backfill days before now and horizon
// days after it.
func WindowAround(now time.Time, backfillDays, horizonDays int, loc *time.Location) Window {
	return Window{
		Start:    now.AddDate(0, 0, -backfillDays),
		End:      now.AddDate(0, 0, horizonDays),
		Location: loc,
	}
}

// Provider supplies raw events. Network access, caching and recurrence
// expansion are the provider's business.
type Provider interface {
	ID() string
	Events(ctx context.Context, w Window) ([]model.RawEvent, error)
}

// FromConfig builds one provider per configured source.
func FromConfig(cfg *config.Config, client *http.Client) ([]Provider, error) {
	fetcher := ics.NewFetcher(cfg.CacheDir, client)
	providers := make([]Provider, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		switch {
		case src.Format == config.FormatJSONL:
			providers = append(providers, NewJSONLProvider(src.ID, src.Path))
		case src.Format == config.FormatICS && src.URL != "":
			providers = append(providers, NewICSProvider(src.ID, src.URL, fetcher))
		case src.Format == config.FormatICS && src.Path != "":
			providers = append(providers, NewICSFileProvider(src.ID, src.Path))
		default:
			return nil, fmt.Errorf("source %s: unsupported source (format %q)", src.ID, src.Format)
		}
	}
	return providers, nil
}

// Collect gathers events from every provider. A failing provider is logged
// and reported in errs while the others still contribute. With splitLabels,
// a summary such as "Reading, Fiction" yields one event per label. Events
// with an empty label are dropped.
func Collect(ctx context.Context, providers []Provider, w Window, splitLabels bool) ([]model.RawEvent, []error) {
	var (
		out  []model.RawEvent
		errs []error
	)
	for _, p := range providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		raws, err := p.Events(ctx, w)
		if err != nil {
			appLog.Error("source failed", err, "source", p.ID())
			errs = append(errs, fmt.Errorf("source %s: %w", p.ID(), err))
			continue
		}
		kept := 0
		for _, r := range raws {
			if r.SourceID == "" {
				r.SourceID = p.ID()
			}
			parts := []model.RawEvent{r}
			if splitLabels {
				parts = r.SplitLabels()
			}
			if len(parts) == 0 {
				appLog.Debug("dropping event without label", "source", p.ID(), "summary", r.Label)
				continue
			}
			for _, part := range parts {
				if strings.TrimSpace(part.Label) == "" {
					appLog.Debug("dropping event without label", "source", p.ID())
					continue
				}
				out = append(out, part)
				kept++
			}
		}
		appLog.Info("source collected", "source", p.ID(), "raw", len(raws), "events", kept)
	}
	return out, errs
}
