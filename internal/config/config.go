package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"agendacal/internal/caltime"
	appLog "agendacal/internal/log"
)

// ICSConfig describes a single ICS subscription source.
type ICSConfig struct {
	URL string `yaml:"url" json:"url"`
	// ID is an internal identifier; it becomes the calendarId of every
	// event from this source.
	ID    string `yaml:"id" json:"id"`
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color,omitempty" json:"color,omitempty"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA display zone (e.g. "America/Denver").
	Timezone string `yaml:"timezone" json:"timezone"`
	// Locale selects month and weekday names for labels (e.g. "en-US", "de").
	Locale string `yaml:"locale" json:"locale"`

	// WeekStart is "monday" (default) or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// RefreshCron is the 5-field cron schedule of the agenda refresh.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is the number of days in the agenda, starting today.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	ShowAllDay bool `yaml:"show_all_day" json:"show_all_day"`

	// TimeFormat / DateFormat are label patterns, e.g. "HH:mm" and
	// "dddd, MMMM D".
	TimeFormat string `yaml:"time_format" json:"time_format"`
	DateFormat string `yaml:"date_format" json:"date_format"`

	LogLevel string `yaml:"log_level" json:"log_level"`

	// CacheDir stores the last good body of every ICS feed.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	ICS []ICSConfig `yaml:"ics" json:"ics"`

	// BasicAuth, if non-nil, protects every endpoint except /health and
	// /metrics.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen     = "127.0.0.1:8080"
	defaultTimezone   = "UTC"
	defaultLocale     = "en"
	defaultRefresh    = "*/15 * * * *"
	defaultHorizon    = 7
	defaultTimeFormat = "HH:mm"
	defaultDateFormat = "dddd, MMMM D"
	defaultLogLevel   = "info"
	defaultCacheDir   = "./var/ics-cache"
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:      defaultListen,
		Timezone:    defaultTimezone,
		Locale:      defaultLocale,
		WeekStart:   "monday",
		RefreshCron: defaultRefresh,
		HorizonDays: defaultHorizon,
		ShowAllDay:  true,
		TimeFormat:  defaultTimeFormat,
		DateFormat:  defaultDateFormat,
		LogLevel:    defaultLogLevel,
		CacheDir:    defaultCacheDir,
		ICS:         []ICSConfig{},
	}
}

// Normalize fills in missing values so that partially-filled configs still
// behave. Unknown zones and week starts fall back to the defaults; an
// unusable label pattern falls back to the default pattern.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if !caltime.ValidZone(c.Timezone) {
		if c.Timezone != "" {
			appLog.Warn("config: unknown timezone, using default", "timezone", c.Timezone, "default", defaultTimezone)
		}
		c.Timezone = defaultTimezone
	}
	if strings.TrimSpace(c.Locale) == "" {
		c.Locale = defaultLocale
	}

	c.WeekStart = strings.ToLower(strings.TrimSpace(c.WeekStart))
	if c.WeekStart != "monday" && c.WeekStart != "sunday" {
		c.WeekStart = "monday"
	}

	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefresh
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizon
	}
	if c.TimeFormat == "" || caltime.ValidatePattern(c.TimeFormat) != nil {
		c.TimeFormat = defaultTimeFormat
	}
	if c.DateFormat == "" || caltime.ValidatePattern(c.DateFormat) != nil {
		c.DateFormat = defaultDateFormat
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ICS == nil {
		c.ICS = []ICSConfig{}
	}
	for i := range c.ICS {
		if c.ICS[i].ID == "" {
			c.ICS[i].ID = "ics-" + strconv.Itoa(i+1)
		}
	}
}

// FirstWeekday maps WeekStart to a time.Weekday.
func (c *Config) FirstWeekday() time.Weekday {
	if c.WeekStart == "sunday" {
		return time.Sunday
	}
	return time.Monday
}

// Load loads configuration from the given YAML path. On first run the file
// does not exist yet: a default config is written with 0600 permissions and
// returned.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes cfg atomically (temp file in the same directory, then rename)
// with 0600 permissions, creating the parent directory if needed.
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

	tmp, err := os.CreateTemp(dir, ".agendacal-config-*.tmp")
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
