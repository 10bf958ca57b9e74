package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestReadDoesNotCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	_, err := Read(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))

	require.NoError(t, os.WriteFile(path, []byte("moving_average_days: 3\n"), 0o600))
	cfg, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.MovingAverageDays)
	assert.Equal(t, "Local", cfg.Timezone)
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
timezone: Europe/Berlin
split_labels: false
sources:
  - path: /data/export.jsonl
  - name: personal
    url: https://calendar.example.com/private.ics
goal:
  total_goal: 500
creative_labels: [Reading, Writing]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.False(t, cfg.ShouldSplitLabels())
	assert.Equal(t, FormatJSONL, cfg.Sources[0].Format)
	assert.Equal(t, "/data/export.jsonl", cfg.Sources[0].ID)
	assert.Equal(t, FormatICS, cfg.Sources[1].Format)
	assert.Equal(t, "personal", cfg.Sources[1].ID)
	assert.Equal(t, 500.0, cfg.Goal.TotalGoal)
	assert.Equal(t, 365.0, cfg.Goal.GoalPeriodDays)
	assert.Equal(t, "2019-12-21", cfg.Goal.AnchorDate)
	assert.Equal(t, []string{"Reading", "Writing"}, cfg.CreativeLabels)
	assert.Equal(t, 7, cfg.MovingAverageDays)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	cfg.Goal.AnchorDate = "21/12/2019"
	cfg.Sources = []SourceConfig{
		{ID: "empty", Format: FormatICS},
		{ID: "both", URL: "https://x", Path: "/y.ics", Format: FormatICS},
		{ID: "weird", Path: "/y.csv", Format: "csv"},
		{ID: "remote-jsonl", URL: "https://x", Format: FormatJSONL},
	}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"timezone", "anchor_date", "url or path required", "exclusive", `unknown format "csv"`, "must be ics"} {
		assert.Contains(t, err.Error(), want)
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.BasicAuth = &BasicAuthConfig{Username: "me", Password: "secret"}
	cfg.Sources = append(cfg.Sources, SourceConfig{ID: "work", URL: "https://example.com/work.ics", Format: FormatICS})

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveErrors(t *testing.T) {
	assert.Error(t, Save("", DefaultConfig()))
	assert.Error(t, Save(filepath.Join(t.TempDir(), "c.yaml"), nil))
}
