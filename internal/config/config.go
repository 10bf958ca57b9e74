package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SourceConfig describes one event source.
type SourceConfig struct {
	// ID is an internal identifier used for logging and cache keys.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`
	// URL is an ICS subscription endpoint. Mutually exclusive with Path.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`
	// Path is a local file (.ics or .jsonl).
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
	// Format is "ics" or "jsonl". Derived from Path's extension when empty.
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// GoalConfig is the long-term creative hours target.
type GoalConfig struct {
	// AnchorDate is the first day of the goal, YYYY-MM-DD.
	AnchorDate string `yaml:"anchor_date" json:"anchor_date"`
	// TotalGoal is the number of hours to reach after GoalPeriodDays.
	TotalGoal float64 `yaml:"total_goal" json:"total_goal"`
	// GoalPeriodDays is the length of one goal period.
	GoalPeriodDays float64 `yaml:"goal_period_days" json:"goal_period_days"`
}

// RangeConfig bounds recurrence expansion relative to "now".
type RangeConfig struct {
	BackfillDays int `yaml:"backfill_days" json:"backfill_days"`
	HorizonDays  int `yaml:"horizon_days" json:"horizon_days"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for `serve`.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone whose midnights delimit days, or "Local".
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is the cron schedule on which `serve` rebuilds the report.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	Sources []SourceConfig `yaml:"sources" json:"sources"`

	Range RangeConfig `yaml:"range" json:"range"`

	// SplitLabels turns a summary "A, B" into one event per label.
	// Nil means true.
	SplitLabels *bool `yaml:"split_labels,omitempty" json:"split_labels,omitempty"`

	Goal GoalConfig `yaml:"goal" json:"goal"`

	// CreativeLabels is the allow-list summed into creative hours.
	CreativeLabels []string `yaml:"creative_labels" json:"creative_labels"`

	// MovingAverageDays is the smoothing window for daily shares.
	MovingAverageDays int `yaml:"moving_average_days" json:"moving_average_days"`

	// ReadingLabel is matched as a substring of labels that report pages.
	ReadingLabel string `yaml:"reading_label" json:"reading_label"`
	// PagesAttribute is the description attribute holding the page count.
	PagesAttribute string `yaml:"pages_attribute" json:"pages_attribute"`
	// ReadingGoalPagesPerDay is the slope of the cumulative reading goal.
	ReadingGoalPagesPerDay float64 `yaml:"reading_goal_pages_per_day" json:"reading_goal_pages_per_day"`

	// BasicAuth, if non-nil, protects every endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Local"
	defaultRefreshCron    = "*/30 * * * *"
	defaultLogLevel       = "info"
	defaultCacheDir       = "./var/ics-cache"
	defaultBackfillDays   = 365
	defaultAnchorDate     = "2019-12-21"
	defaultTotalGoal      = 1000
	defaultGoalPeriodDays = 365
	defaultMovingAverage  = 7
	defaultReadingLabel   = "Reading"
	defaultPagesAttribute = "Pages"
	defaultReadingPace    = 20

	FormatICS   = "ics"
	FormatJSONL = "jsonl"
)

// DefaultCreativeLabels is the allow-list used when none is configured.
func DefaultCreativeLabels() []string {
	return []string{"Reading", "Meta", "Audiobook", "Studying", "Programming", "Networking"}
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		RefreshCron: defaultRefreshCron,
		LogLevel:    defaultLogLevel,
		CacheDir:    defaultCacheDir,
		Sources:     []SourceConfig{},
		Range: RangeConfig{
			BackfillDays: defaultBackfillDays,
		},
		Goal: GoalConfig{
			AnchorDate:     defaultAnchorDate,
			TotalGoal:      defaultTotalGoal,
			GoalPeriodDays: defaultGoalPeriodDays,
		},
		CreativeLabels:    DefaultCreativeLabels(),
		MovingAverageDays: defaultMovingAverage,
		ReadingLabel:      defaultReadingLabel,
		PagesAttribute:    defaultPagesAttribute,

		ReadingGoalPagesPerDay: defaultReadingPace,
	}
}

// Normalize fills in missing/zero values so that partially-filled configs
// behave like the defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.Sources == nil {
		c.Sources = []SourceConfig{}
	}
	for i := range c.Sources {
		src := &c.Sources[i]
		if src.ID == "" {
			src.ID = firstNonEmpty(src.Name, src.URL, src.Path)
		}
		if src.Format == "" {
			src.Format = FormatICS
			if strings.EqualFold(filepath.Ext(src.Path), ".jsonl") {
				src.Format = FormatJSONL
			}
		}
		src.Format = strings.ToLower(src.Format)
	}
	if c.Range.BackfillDays <= 0 {
		c.Range.BackfillDays = defaultBackfillDays
	}
	if c.Range.HorizonDays < 0 {
		c.Range.HorizonDays = 0
	}
	if c.Goal.AnchorDate == "" {
		c.Goal.AnchorDate = defaultAnchorDate
	}
	if c.Goal.TotalGoal <= 0 {
		c.Goal.TotalGoal = defaultTotalGoal
	}
	if c.Goal.GoalPeriodDays <= 0 {
		c.Goal.GoalPeriodDays = defaultGoalPeriodDays
	}
	if c.CreativeLabels == nil {
		c.CreativeLabels = DefaultCreativeLabels()
	}
	if c.MovingAverageDays <= 0 {
		c.MovingAverageDays = defaultMovingAverage
	}
	if c.ReadingLabel == "" {
		c.ReadingLabel = defaultReadingLabel
	}
	if c.PagesAttribute == "" {
		c.PagesAttribute = defaultPagesAttribute
	}
	if c.ReadingGoalPagesPerDay <= 0 {
		c.ReadingGoalPagesPerDay = defaultReadingPace
	}
}

// Validate reports every problem that Normalize cannot repair.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.AnchorDate(); err != nil {
		errs = append(errs, err)
	}
	for i, src := range c.Sources {
		switch {
		case src.URL == "" && src.Path == "":
			errs = append(errs, fmt.Errorf("config: source %d (%s): url or path required", i, src.ID))
		case src.URL != "" && src.Path != "":
			errs = append(errs, fmt.Errorf("config: source %d (%s): url and path are exclusive", i, src.ID))
		}
		if src.Format != FormatICS && src.Format != FormatJSONL {
			errs = append(errs, fmt.Errorf("config: source %d (%s): unknown format %q", i, src.ID, src.Format))
		}
		if src.URL != "" && src.Format != FormatICS {
			errs = append(errs, fmt.Errorf("config: source %d (%s): url sources must be ics", i, src.ID))
		}
	}
	return errors.Join(errs...)
}

// ShouldSplitLabels reports the effective SplitLabels value.
func (c *Config) ShouldSplitLabels() bool {
	return c.SplitLabels == nil || *c.SplitLabels
}

// Location resolves Timezone. "Local" maps to time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("config: timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// AnchorDate parses Goal.AnchorDate as a calendar date.
func (c *Config) AnchorDate() (time.Time, error) {
	t, err := time.Parse(time.DateOnly, c.Goal.AnchorDate)
	if err != nil {
		return time.Time{}, fmt.Errorf("config: goal anchor_date %q: %w", c.Goal.AnchorDate, err)
	}
	return t, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     permissions and returned.
//   - Otherwise the YAML is decoded and normalized.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Caller decides whether an unsaved default is acceptable.
			return cfg, err
		}
		return cfg, nil
	}
	return cfg, err
}

// Read decodes and normalizes the YAML at path without creating it. A
// missing file yields an error matching fs.ErrNotExist.
func Read(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".timeaudit-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// Save delegates to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
