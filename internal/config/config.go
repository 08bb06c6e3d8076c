// Package config loads the worker's settings from a .env file, an optional
// YAML config file and the process environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Environment keys.
const (
	KeyTelegramToken  = "TELEGRAM_BOT_TOKEN"
	KeyAllowedUserID  = "ALLOWED_USER_ID"
	KeyDataDir        = "DATA_DIR"
	KeyDeletionDelay  = "MESSAGE_DELETION_DELAY"
	KeyItemsPerPage   = "ITEMS_PER_PAGE"
	KeyTimezone       = "TIMEZONE"
	KeyBackupInterval = "BACKUP_INTERVAL"
	KeyMaxBackups     = "MAX_BACKUPS"
	KeyDiscordWebhook = "DISCORD_WEBHOOK_URL"
	KeyAlertSeverity  = "ALERT_MIN_SEVERITY"
	KeyLogLevel       = "LOG_LEVEL"
	KeyLogFormat      = "LOG_FORMAT"
	KeyRateLimit      = "TELEGRAM_RATE_LIMIT"
	KeyPollTimeout    = "POLL_TIMEOUT"
	KeyManifestPath   = "MANIFEST_PATH"
)

// DBFile is the database file name inside the data directory.
const DBFile = "savings_bot.db"

var defaults = map[string]any{
	KeyDataDir:        "/data",
	KeyDeletionDelay:  "300",
	KeyItemsPerPage:   5,
	KeyTimezone:       "UTC",
	KeyBackupInterval: "24h",
	KeyMaxBackups:     7,
	KeyAlertSeverity:  "warning",
	KeyLogLevel:       "info",
	KeyLogFormat:      "text",
	KeyRateLimit:      20.0,
	KeyPollTimeout:    "30",
	KeyManifestPath:   "render.yaml",
}

// Config holds the resolved settings.
type Config struct {
	TelegramToken     string
	AllowedUserID     int64
	DataDir           string
	DeletionDelay     time.Duration
	ItemsPerPage      int
	Timezone          string
	BackupInterval    time.Duration
	MaxBackups        int
	DiscordWebhookURL string
	AlertMinSeverity  string
	LogLevel          string
	LogFormat         string
	RateLimit         float64
	PollTimeout       time.Duration
	ManifestPath      string

	// Source is the config file that was read, if any.
	Source string
}

// Options controls where Load looks.
type Options struct {
	// ConfigFile is an optional YAML file. Missing is an error only when set.
	ConfigFile string
	// EnvFile is the dotenv file to read. Empty means ".env"; a missing file is ignored.
	EnvFile string
}

// Load resolves the configuration. It does not check that the worker can
// start; call ValidateWorker for that.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		TelegramToken:     strings.TrimSpace(v.GetString(KeyTelegramToken)),
		DataDir:           v.GetString(KeyDataDir),
		ItemsPerPage:      v.GetInt(KeyItemsPerPage),
		Timezone:          v.GetString(KeyTimezone),
		MaxBackups:        v.GetInt(KeyMaxBackups),
		DiscordWebhookURL: v.GetString(KeyDiscordWebhook),
		AlertMinSeverity:  strings.ToLower(v.GetString(KeyAlertSeverity)),
		LogLevel:          v.GetString(KeyLogLevel),
		LogFormat:         strings.ToLower(v.GetString(KeyLogFormat)),
		RateLimit:         v.GetFloat64(KeyRateLimit),
		ManifestPath:      v.GetString(KeyManifestPath),
		Source:            v.ConfigFileUsed(),
	}

	var errs []error
	if raw := strings.TrimSpace(v.GetString(KeyAllowedUserID)); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s must be an integer user id: %w", KeyAllowedUserID, err))
		}
		cfg.AllowedUserID = id
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{KeyDeletionDelay, &cfg.DeletionDelay},
		{KeyBackupInterval, &cfg.BackupInterval},
		{KeyPollTimeout, &cfg.PollTimeout},
	}
	for _, d := range durations {
		parsed, err := ParseDuration(v.GetString(d.key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.key, err))
			continue
		}
		*d.dst = parsed
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ParseDuration accepts Go durations ("5m", "1h30m") and bare integers,
// which are read as seconds.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return d, nil
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyDataDir))
	}
	if c.ItemsPerPage < 1 {
		errs = append(errs, fmt.Errorf("%s must be at least 1", KeyItemsPerPage))
	}
	if c.MaxBackups < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyMaxBackups))
	}
	if c.DeletionDelay < 0 || c.BackupInterval < 0 || c.PollTimeout < 0 {
		errs = append(errs, errors.New("durations must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyLogLevel, err))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("%s must be text or json", KeyLogFormat))
	}
	switch c.AlertMinSeverity {
	case "info", "warning", "error", "critical":
	default:
		errs = append(errs, fmt.Errorf("%s must be info, warning, error or critical", KeyAlertSeverity))
	}
	return errors.Join(errs...)
}

// ValidateWorker additionally checks what the bot needs to talk to Telegram.
func (c *Config) ValidateWorker() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.TelegramToken == "" {
		errs = append(errs, fmt.Errorf("%s is required", KeyTelegramToken))
	}
	if c.AllowedUserID == 0 {
		errs = append(errs, fmt.Errorf("%s is required", KeyAllowedUserID))
	}
	return errors.Join(errs...)
}

// Location returns the zone reminders are scheduled in.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", KeyTimezone, err)
	}
	return loc, nil
}

// DBPath returns the database file on the persistent disk.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, DBFile)
}

// BackupDir returns where database copies are kept.
func (c *Config) BackupDir() string {
	return filepath.Join(c.DataDir, "backups")
}

// LockPath returns the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, ".savingsbot.lock")
}

// ConfigureLogging applies the level and format to the standard logrus logger.
func (c *Config) ConfigureLogging() error {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
