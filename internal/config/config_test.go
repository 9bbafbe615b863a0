package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DaDevFox/task-systems/feeding-core/internal/notify"
	"github.com/DaDevFox/task-systems/feeding-core/internal/repository"
)

const sampleConfig = `
database:
  type: bolt
  path: /var/lib/feeding/db
http:
  port: 9090
scheduler:
  check_time: "07:45"
  timezone: America/New_York
  notify_overdue_only: true
  send_timeout: 3s
notifications:
  recipients:
    - channel: email
      target: keeper@example.com
    - channel: push
      target: reptile-room
  smtp:
    host: smtp.example.com
    port: 2525
    username: keeper@example.com
forecast:
  lookback_days: 14
log:
  format: text
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "feeding.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "badger", cfg.Database.Type)
	assert.Equal(t, "09:00", cfg.Scheduler.CheckTime)
	assert.Equal(t, 1, cfg.Scheduler.DaysAhead)
	assert.Equal(t, 30, cfg.Forecast.LookbackDays)
	assert.Equal(t, 14, cfg.Shopping.HorizonDays)
	assert.Nil(t, cfg.Notifications.SMTP)
}

func TestLoadFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, repository.Options{Type: repository.DatabaseTypeBolt, Path: "/var/lib/feeding/db"}, cfg.StoreOptions())
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.True(t, cfg.Scheduler.NotifyOverdueOnly)
	assert.Equal(t, 3*time.Second, cfg.Scheduler.SendTimeout)
	assert.Equal(t, 4, cfg.Scheduler.MaxConcurrency, "unset keys keep defaults")
	assert.Equal(t, 14, cfg.Forecast.LookbackDays)
	require.NotNil(t, cfg.Notifications.SMTP)
	assert.Equal(t, 2525, cfg.Notifications.SMTP.Port)
	assert.Equal(t, []notify.Recipient{
		{Channel: notify.ChannelEmail, Target: "keeper@example.com"},
		{Channel: notify.ChannelPush, Target: "reptile-room"},
	}, cfg.Notifications.Recipients)

	opts, err := cfg.SchedulerOptions()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", opts.Location.String())
	assert.Equal(t, "07:45", opts.CheckTime)
	assert.Len(t, opts.Recipients, 2)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("FEEDING_DB_TYPE", "postgres")
	t.Setenv("FEEDING_DB_DSN", "postgres://feeding@localhost/feeding")
	t.Setenv("FEEDING_CHECK_TIME", "18:30")
	t.Setenv("SMTP_PASSWORD", "hunter2")
	t.Setenv("GOTIFY_URL", "http://gotify.local")
	t.Setenv("GOTIFY_TOKEN", "tok")
	t.Setenv("DEBUG", "true")

	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, repository.DatabaseTypePostgres, cfg.StoreOptions().Type)
	assert.Equal(t, "18:30", cfg.Scheduler.CheckTime)
	assert.Equal(t, "hunter2", cfg.Notifications.SMTP.Password)
	assert.Equal(t, "smtp.example.com", cfg.Notifications.SMTP.Host)
	require.NotNil(t, cfg.Notifications.Gotify)
	assert.Equal(t, "tok", cfg.Notifications.Gotify.Token)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestConfigPathFromEnvironment(t *testing.T) {
	t.Setenv(ConfigEnv, writeConfig(t, "http:\n  port: 7070\n"))
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.HTTP.Port)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: [not, a, map]"))
	assert.Error(t, err)

	t.Setenv("FEEDING_HTTP_PORT", "eighty")
	_, err = Load(writeConfig(t, ""))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown database", func(c *Config) { c.Database.Type = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Database.Type = "postgres" }},
		{"badger without path", func(c *Config) { c.Database.Path = "" }},
		{"port out of range", func(c *Config) { c.HTTP.Port = 70000 }},
		{"malformed check time", func(c *Config) { c.Scheduler.CheckTime = "9am" }},
		{"unknown timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }},
		{"negative days ahead", func(c *Config) { c.Scheduler.DaysAhead = -1 }},
		{"zero concurrency", func(c *Config) { c.Scheduler.MaxConcurrency = 0 }},
		{"zero lookback", func(c *Config) { c.Forecast.LookbackDays = 0 }},
		{"zero horizon", func(c *Config) { c.Shopping.HorizonDays = 0 }},
		{"unknown channel", func(c *Config) {
			c.Notifications.Recipients = []notify.Recipient{{Channel: "pager", Target: "x"}}
		}},
		{"empty target", func(c *Config) {
			c.Notifications.Recipients = []notify.Recipient{{Channel: notify.ChannelSMS}}
		}},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}

	require.NoError(t, Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
