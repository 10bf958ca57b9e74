package source

import (
	"context"
	"os"

	"timeaudit/internal/ics"
	"timeaudit/internal/model"
)

// ICSProvider reads a remote ICS subscription through a caching Fetcher.
type ICSProvider struct {
	id      string
	url     string
	fetcher *ics.Fetcher
}

func NewICSProvider(id, url string, fetcher *ics.Fetcher) *ICSProvider {
	return &ICSProvider{id: id, url: url, fetcher: fetcher}
}

func (p *ICSProvider) ID() string { return p.id }

func (p *ICSProvider) Events(ctx context.Context, w Window) ([]model.RawEvent, error) {
	res, err := p.fetcher.Fetch(ctx, ics.Source{ID: p.id, URL: p.url})
	if err != nil {
		return nil, err
	}
	return expandBody(p.id, res.Body, w)
}

// ICSFileProvider reads an exported .ics file from disk.
type ICSFileProvider struct {
	id   string
	path string
}

func NewICSFileProvider(id, path string) *ICSFileProvider {
	return &ICSFileProvider{id: id, path: path}
}

func (p *ICSFileProvider) ID() string { return p.id }

func (p *ICSFileProvider) Events(_ context.Context, w Window) ([]model.RawEvent, error) {
	body, err := os.ReadFile(p.path)
	if err != nil {
		return nil, err
	}
	return expandBody(p.id, body, w)
}

func expandBody(id string, body []byte, w Window) ([]model.RawEvent, error) {
	vevents, err := ics.Parse(id, body, w.Location)
	if err != nil {
		return nil, err
	}
	res, err := ics.Expand(vevents, ics.ExpandConfig{
		Location:   w.Location,
		RangeStart: w.Start,
		RangeEnd:   w.End,
	})
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}
