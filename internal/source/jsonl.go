package source

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"

	"github.com/bytedance/sonic"

	"timeaudit/internal/model"
)

// JSONLProvider reads one JSON object per line:
//
//	{"label":"Reading","start":"2024-01-02T21:00:00+01:00","end":"...","description":"Pages: 12"}
//
// Timestamps stay unparsed until event construction. The window is not
// applied; the file is taken to be the export the user wants audited.
type JSONLProvider struct {
	id   string
	path string
}

func NewJSONLProvider(id, path string) *JSONLProvider {
	return &JSONLProvider{id: id, path: path}
}

func (p *JSONLProvider) ID() string { return p.id }

func (p *JSONLProvider) Events(ctx context.Context, _ Window) ([]model.RawEvent, error) {
	f, err := os.Open(p.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []model.RawEvent
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var raw model.RawEvent
		if err := sonic.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", p.path, line, err)
		}
		out = append(out, raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
