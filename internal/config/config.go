// Package config provides configuration loading and management for errnotify.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// DefaultHost is the error tracker used when no host is configured.
const DefaultHost = "https://api.airbrake.io"

// ErrMissingCredentials is returned when project_id or project_key is empty.
var ErrMissingCredentials = errors.New("project id and project key are required")

// Config represents the complete application configuration.
type Config struct {
	Notifier NotifierConfig `yaml:"notifier"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Canary   CanaryConfig   `yaml:"canary"`
}

// NotifierConfig holds the error tracker project settings.
type NotifierConfig struct {
	ProjectID          string   `yaml:"project_id" env:"ERRNOTIFY_PROJECT_ID"`
	ProjectKey         string   `yaml:"project_key" env:"ERRNOTIFY_PROJECT_KEY"`
	Host               string   `yaml:"host" env:"ERRNOTIFY_HOST"`
	Environment        string   `yaml:"environment" env:"ERRNOTIFY_ENVIRONMENT"`
	IgnoreEnvironments []string `yaml:"ignore_environments" env:"ERRNOTIFY_IGNORE_ENVIRONMENTS"`
	LogFile            string   `yaml:"log_file" env:"ERRNOTIFY_LOG_FILE"`
	AppVersion         string   `yaml:"app_version" env:"ERRNOTIFY_APP_VERSION"`
	Timeout            string   `yaml:"timeout" env:"ERRNOTIFY_TIMEOUT"`

	// Hostname and OSDescription are informational notice fields. They are
	// probed once by applyDefaults so the notifier never reads process state.
	Hostname      string `yaml:"hostname"`
	OSDescription string `yaml:"os_description"`

	// BlocklistKeys are params/session/environment keys whose values are
	// replaced before a notice leaves the process.
	BlocklistKeys []string `yaml:"blocklist_keys"`
}

// TimeoutParsed returns the parsed HTTP timeout.
func (n *NotifierConfig) TimeoutParsed() (time.Duration, error) {
	return time.ParseDuration(n.Timeout)
}

// CheckCredentials reports whether the project credentials are present.
func (n *NotifierConfig) CheckCredentials() error {
	var missing []string
	if n.ProjectID == "" {
		missing = append(missing, "project_id")
	}
	if n.ProjectKey == "" {
		missing = append(missing, "project_key")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Clone returns a deep copy so callers cannot mutate a notifier's settings.
func (n NotifierConfig) Clone() NotifierConfig {
	n.IgnoreEnvironments = append([]string(nil), n.IgnoreEnvironments...)
	n.BlocklistKeys = append([]string(nil), n.BlocklistKeys...)
	return n
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"ERRNOTIFY_LOG_LEVEL"`
	Format string `yaml:"format" env:"ERRNOTIFY_LOG_FORMAT"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port" env:"ERRNOTIFY_SERVER_PORT"`
}

// CanaryConfig schedules synthetic notices that exercise the pipeline.
// An empty Cron disables the canary.
type CanaryConfig struct {
	Cron     string `yaml:"cron" env:"ERRNOTIFY_CANARY_CRON"`
	Timezone string `yaml:"timezone"`

	// Location is resolved from Timezone by Validate.
	Location *time.Location `yaml:"-"`
}

// Load reads and parses the configuration file, then applies environment
// overrides and defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment overrides: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// FromEnv builds a configuration from ERRNOTIFY_* variables only.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// expandEnvVars expands ${VAR} and ${VAR:-default} patterns in the input string.
func expandEnvVars(input string) string {
	// Pattern: ${VAR:-default} or ${VAR}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) > 2 {
			defaultVal = parts[2]
		}

		if val, exists := os.LookupEnv(varName); exists {
			return val
		}
		return defaultVal
	})
}

// applyDefaults sets default values for any unset configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Notifier.Host == "" {
		cfg.Notifier.Host = DefaultHost
	}
	if cfg.Notifier.Environment == "" {
		cfg.Notifier.Environment = "production"
	}
	if cfg.Notifier.Timeout == "" {
		cfg.Notifier.Timeout = "10s"
	}
	if cfg.Notifier.Hostname == "" {
		if h, err := os.Hostname(); err == nil {
			cfg.Notifier.Hostname = h
		}
	}
	if cfg.Notifier.OSDescription == "" {
		cfg.Notifier.OSDescription = runtime.GOOS + "/" + runtime.GOARCH
	}
	if cfg.Notifier.BlocklistKeys == nil {
		cfg.Notifier.BlocklistKeys = []string{"password", "secret", "token", "authorization"}
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Canary.Timezone == "" {
		cfg.Canary.Timezone = "UTC"
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	if err := c.Notifier.CheckCredentials(); err != nil {
		errs = append(errs, "notifier.project_id and notifier.project_key are required")
	}

	if !strings.HasPrefix(c.Notifier.Host, "http://") && !strings.HasPrefix(c.Notifier.Host, "https://") {
		errs = append(errs, fmt.Sprintf("notifier.host must be an http(s) URL, got %q", c.Notifier.Host))
	}

	if d, err := c.Notifier.TimeoutParsed(); err != nil {
		errs = append(errs, fmt.Sprintf("notifier.timeout is invalid: %v", err))
	} else if d <= 0 {
		errs = append(errs, "notifier.timeout must be positive")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, "log.format must be one of: console, json")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	loc, err := time.LoadLocation(c.Canary.Timezone)
	if err != nil {
		errs = append(errs, fmt.Sprintf("canary.timezone is invalid: %v", err))
	} else {
		c.Canary.Location = loc
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
