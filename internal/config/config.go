// Package config resolves CLI settings (flags, VERIFY_* env vars, config file)
// and the per-project verify.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment variable, e.g. VERIFY_TOKEN.
	EnvPrefix = "VERIFY"
	// FileName is the user config file looked up in $HOME, without extension.
	FileName = ".verifyctl"
	// ProjectFile is read from the project directory by the run command.
	ProjectFile = "verify.yaml"

	DefaultURL = "http://localhost:6161"
)

// Config holds all settings for one CLI invocation.
type Config struct {
	// Base URL of the verification API
	URL string `mapstructure:"url"`

	// Bearer token for authentication
	Token string `mapstructure:"token"`

	// Per-request timeout and retry budget
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`

	// Whole-run polling
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
	PollInitialDelay time.Duration `mapstructure:"poll_initial_delay"`
	PollMaxDelay     time.Duration `mapstructure:"poll_max_delay"`

	// "" disables tracing, "stdout" prints spans, anything else is an OTLP gRPC endpoint
	TraceEndpoint string `mapstructure:"trace_endpoint"`

	LogFormat string `mapstructure:"log_format"`
	Verbose   bool   `mapstructure:"verbose"`
	JSON      bool   `mapstructure:"json"`
}

// SetDefaults registers the default for every key.
func SetDefaults(v *viper.Viper) {
	// Keys without a default are invisible to Unmarshal when only set via env.
	v.SetDefault("url", DefaultURL)
	v.SetDefault("token", "")
	v.SetDefault("trace_endpoint", "")
	v.SetDefault("verbose", false)
	v.SetDefault("json", false)
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("max_retries", 3)
	v.SetDefault("poll_timeout", 10*time.Minute)
	v.SetDefault("poll_initial_delay", time.Second)
	v.SetDefault("poll_max_delay", 10*time.Second)
	v.SetDefault("log_format", "text")
}

// BindEnv makes VERIFY_* variables visible to v, with dashes mapped to underscores.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// ReadFile reads cfgFile, or $HOME/.verifyctl.yaml when cfgFile is empty.
// A missing default file is not an error.
func ReadFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		v.AddConfigPath(home)
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("load config: %w", err)
	}
	return nil
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.URL = strings.TrimSuffix(strings.TrimSpace(cfg.URL), "/")
	cfg.Token = strings.TrimSpace(cfg.Token)

	if cfg.URL == "" {
		return Config{}, fmt.Errorf("url is required (flag --url or env %s_URL)", EnvPrefix)
	}
	if cfg.MaxRetries < -1 {
		return Config{}, fmt.Errorf("max_retries must be -1 (no retries) or greater, got %d", cfg.MaxRetries)
	}
	if cfg.PollTimeout <= 0 {
		return Config{}, fmt.Errorf("poll_timeout must be positive, got %s", cfg.PollTimeout)
	}
	switch cfg.LogFormat {
	case "", "text", "json":
	default:
		return Config{}, fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	return cfg, nil
}

// ErrNoToken is returned when no credential could be resolved.
var ErrNoToken = errors.New("API token not found. Set it with the --token flag or the " + EnvPrefix + "_TOKEN environment variable")

// RequireToken fails when no token is configured.
func (c Config) RequireToken() error {
	if c.Token == "" {
		return ErrNoToken
	}
	return nil
}

// Project is the per-project run configuration.
type Project struct {
	Type    string   `mapstructure:"type"`
	Package string   `mapstructure:"package"`
	Source  string   `mapstructure:"source"`
	Include []string `mapstructure:"include"`
}

// LoadProject reads verify.yaml from dir. A missing file yields an empty Project.
func LoadProject(dir string) (Project, error) {
	path := filepath.Join(dir, ProjectFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Project{}, nil
		}
		return Project{}, fmt.Errorf("stat %s: %w", path, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return Project{}, fmt.Errorf("load %s: %w", path, err)
	}

	var p Project
	if err := v.Unmarshal(&p); err != nil {
		return Project{}, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	return p, nil
}
