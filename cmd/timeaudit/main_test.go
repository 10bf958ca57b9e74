package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timeaudit/internal/config"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeEvents(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	lines := strings.Join([]string{
		`{"label":"Reading","start":"2024-01-01T08:00:00Z","end":"2024-01-01T10:00:00Z","description":"Pages: 20"}`,
		`{"label":"Programming","start":"2024-01-02T09:00:00Z","end":"2024-01-02T12:00:00Z"}`,
	}, "\n")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "timeaudit "+version))
}

func TestReportCommand(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "timeaudit.yaml")
	events := writeEvents(t)

	out, err := run(t, "report", "--config", cfgPath, "--timezone", "UTC", "--window", "1", "-i", events, "-o", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "date,Programming,Reading,reading_pages,cumulative_reading_pages,reading_goal,context_switches,context_switch_average,creative_hours,cumulative_creative_hours,goal", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2024-01-01,0,2,20,20,20,0,0,2,2,"))

	// A missing config file is created with defaults.
	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)
}

func TestReportCommandTable(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "timeaudit.yaml")
	out, err := run(t, "report", "-c", cfgPath, "--timezone", "UTC", "-i", writeEvents(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Time audit 2024-01-01 .. 2024-01-02")
}

func TestReportCommandBadFormat(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "timeaudit.yaml")
	_, err := run(t, "report", "-c", cfgPath, "--timezone", "UTC", "-i", writeEvents(t), "-o", "xml")
	assert.ErrorContains(t, err, "unknown format")
}

func TestReportCommandInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "timeaudit.yaml")
	cfg := config.DefaultConfig()
	cfg.Timezone = "Nowhere/Special"
	require.NoError(t, config.Save(cfgPath, cfg))

	_, err := run(t, "report", "-c", cfgPath)
	assert.ErrorContains(t, err, "invalid config")
}

func TestInputSources(t *testing.T) {
	srcs := inputSources([]string{"/data/cal.ics", "export.jsonl"})
	require.Len(t, srcs, 2)
	assert.Equal(t, "cal.ics", srcs[0].ID)
	assert.Equal(t, "/data/cal.ics", srcs[0].Path)
	assert.Equal(t, "export.jsonl", srcs[1].ID)
}
