// Package config loads the daemon configuration from an optional YAML file,
// environment overrides and defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/DaDevFox/task-systems/feeding-core/internal/notify"
	"github.com/DaDevFox/task-systems/feeding-core/internal/prediction"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
	"github.com/DaDevFox/task-systems/feeding-core/internal/scheduler"
	"github.com/DaDevFox/task-systems/feeding-core/internal/service"
)

// ConfigEnv names the variable holding the config file path.
const ConfigEnv = "FEEDING_CONFIG"

type Config struct {
	Database      DatabaseConfig  `yaml:"database"`
	HTTP          HTTPConfig      `yaml:"http"`
	Scheduler     SchedulerConfig `yaml:"scheduler"`
	Notifications notify.Settings `yaml:"notifications"`
	Forecast      ForecastConfig  `yaml:"forecast"`
	Shopping      ShoppingConfig  `yaml:"shopping"`
	IntervalsFile string          `yaml:"intervals_file"`
	Log           LogConfig       `yaml:"log"`
}

type DatabaseConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
	DSN  string `yaml:"dsn"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type SchedulerConfig struct {
	Enabled           bool          `yaml:"enabled"`
	CheckTime         string        `yaml:"check_time"`
	Timezone          string        `yaml:"timezone"`
	DaysAhead         int           `yaml:"days_ahead"`
	NotifyOverdueOnly bool          `yaml:"notify_overdue_only"`
	MaxConcurrency    int           `yaml:"max_concurrency"`
	SendTimeout       time.Duration `yaml:"send_timeout"`
}

type ForecastConfig struct {
	LookbackDays int `yaml:"lookback_days"`
}

type ShoppingConfig struct {
	HorizonDays int `yaml:"horizon_days"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Type: string(repository.DatabaseTypeBadger),
			Path: "./data/feeding",
		},
		HTTP: HTTPConfig{Port: 8080},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			CheckTime:      scheduler.DefaultCheckTime,
			Timezone:       "Local",
			DaysAhead:      scheduler.DefaultDaysAhead,
			MaxConcurrency: scheduler.DefaultMaxConcurrency,
			SendTimeout:    scheduler.DefaultSendTimeout,
		},
		Forecast: ForecastConfig{LookbackDays: prediction.DefaultLookbackDays},
		Shopping: ShoppingConfig{HorizonDays: service.DefaultHorizonDays},
		Log:      LogConfig{Level: "info", Format: "json"},
	}
}

// Load reads path (or $FEEDING_CONFIG when path is empty) over the defaults,
// applies environment overrides and validates the result. With no path at
// all only defaults and environment are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config %s", path)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Type, "FEEDING_DB_TYPE")
	setString(&c.Database.Path, "FEEDING_DB_PATH")
	setString(&c.Database.DSN, "FEEDING_DB_DSN")
	if err := setInt(&c.HTTP.Port, "FEEDING_HTTP_PORT"); err != nil {
		return err
	}
	setString(&c.Scheduler.CheckTime, "FEEDING_CHECK_TIME")
	setString(&c.Scheduler.Timezone, "FEEDING_TIMEZONE")
	setString(&c.Log.Level, "FEEDING_LOG_LEVEL")
	setString(&c.Log.Format, "FEEDING_LOG_FORMAT")
	if debug, _ := strconv.ParseBool(os.Getenv("DEBUG")); debug {
		c.Log.Level = "debug"
	}

	n := &c.Notifications
	if anyEnv("SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM") {
		if n.SMTP == nil {
			n.SMTP = &notify.SMTPConfig{Port: 587}
		}
		setString(&n.SMTP.Host, "SMTP_HOST")
		if err := setInt(&n.SMTP.Port, "SMTP_PORT"); err != nil {
			return err
		}
		setString(&n.SMTP.Username, "SMTP_USERNAME")
		setString(&n.SMTP.Password, "SMTP_PASSWORD")
		setString(&n.SMTP.From, "SMTP_FROM")
	}
	if anyEnv("TWILIO_ACCOUNT_SID", "TWILIO_AUTH_TOKEN", "TWILIO_FROM_NUMBER", "TWILIO_BASE_URL") {
		if n.Twilio == nil {
			n.Twilio = &notify.TwilioConfig{}
		}
		setString(&n.Twilio.AccountSID, "TWILIO_ACCOUNT_SID")
		setString(&n.Twilio.AuthToken, "TWILIO_AUTH_TOKEN")
		setString(&n.Twilio.FromNumber, "TWILIO_FROM_NUMBER")
		setString(&n.Twilio.BaseURL, "TWILIO_BASE_URL")
	}
	if anyEnv("NTFY_HOSTNAME") {
		if n.Ntfy == nil {
			n.Ntfy = &notify.NtfyConfig{}
		}
		setString(&n.Ntfy.Host, "NTFY_HOSTNAME")
	}
	if anyEnv("GOTIFY_URL", "GOTIFY_TOKEN") {
		if n.Gotify == nil {
			n.Gotify = &notify.GotifyConfig{}
		}
		setString(&n.Gotify.URL, "GOTIFY_URL")
		setString(&n.Gotify.Token, "GOTIFY_TOKEN")
	}
	return nil
}

// Validate rejects settings the daemon cannot start with.
func (c *Config) Validate() error {
	dbType, err := repository.ParseDatabaseType(c.Database.Type)
	if err != nil {
		return errors.Wrap(err, "database.type")
	}
	if dbType == repository.DatabaseTypePostgres && c.Database.DSN == "" {
		return errors.New("database.dsn is required for postgres")
	}
	if (dbType == repository.DatabaseTypeBadger || dbType == repository.DatabaseTypeBolt) && c.Database.Path == "" {
		return errors.Errorf("database.path is required for %s", dbType)
	}

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return errors.Errorf("http.port %d out of range", c.HTTP.Port)
	}

	if _, _, err := scheduler.ParseCheckTime(c.Scheduler.CheckTime); err != nil {
		return errors.Wrap(err, "scheduler.check_time")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Scheduler.DaysAhead < 0 {
		return errors.New("scheduler.days_ahead cannot be negative")
	}
	if c.Scheduler.MaxConcurrency <= 0 {
		return errors.New("scheduler.max_concurrency must be positive")
	}
	if c.Scheduler.SendTimeout <= 0 {
		return errors.New("scheduler.send_timeout must be positive")
	}

	if c.Forecast.LookbackDays <= 0 {
		return errors.New("forecast.lookback_days must be positive")
	}
	if c.Shopping.HorizonDays <= 0 {
		return errors.New("shopping.horizon_days must be positive")
	}

	for i, r := range c.Notifications.Recipients {
		if _, err := notify.ParseChannel(string(r.Channel)); err != nil {
			return errors.Wrapf(err, "notifications.recipients[%d]", i)
		}
		if strings.TrimSpace(r.Target) == "" {
			return errors.Errorf("notifications.recipients[%d].target is empty", i)
		}
	}

	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return errors.Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	return nil
}

// Location resolves the scheduler timezone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Scheduler.Timezone {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, errors.Wrap(err, "scheduler.timezone")
	}
	return loc, nil
}

// StoreOptions converts the database section for repository.NewStore.
func (c *Config) StoreOptions() repository.Options {
	dbType, _ := repository.ParseDatabaseType(c.Database.Type)
	return repository.Options{Type: dbType, Path: c.Database.Path, DSN: c.Database.DSN}
}

// SchedulerOptions converts the scheduler and recipient sections.
func (c *Config) SchedulerOptions() (scheduler.Config, error) {
	loc, err := c.Location()
	if err != nil {
		return scheduler.Config{}, err
	}
	return scheduler.Config{
		CheckTime:         c.Scheduler.CheckTime,
		Location:          loc,
		DaysAhead:         c.Scheduler.DaysAhead,
		NotifyOverdueOnly: c.Scheduler.NotifyOverdueOnly,
		MaxConcurrency:    c.Scheduler.MaxConcurrency,
		SendTimeout:       c.Scheduler.SendTimeout,
		Recipients:        c.Notifications.Recipients,
	}, nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return errors.Wrapf(err, "%s", key)
	}
	*dst = n
	return nil
}

func anyEnv(keys ...string) bool {
	for _, k := range keys {
		if v, ok := os.LookupEnv(k); ok && v != "" {
			return true
		}
	}
	return false
}
