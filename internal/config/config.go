// Package config loads spoilercheck settings from flags, SPOILERCHECK_*
// environment variables, a YAML config file and a .env file, in that order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/storyspoiler/spoilercheck/internal/acceptance"
	"github.com/storyspoiler/spoilercheck/internal/logger"
)

// EnvPrefix is prepended to every environment variable, so base_url is read
// from SPOILERCHECK_BASE_URL and log.level from SPOILERCHECK_LOG_LEVEL.
const EnvPrefix = "SPOILERCHECK"

// DefaultConfigName is the config file looked up in the working directory
// when no explicit path is given.
const DefaultConfigName = "spoilercheck"

// DefaultEnvFile is loaded into the environment if it exists.
const DefaultEnvFile = ".env"

// Config is the resolved configuration of one run.
type Config struct {
	BaseURL  string `mapstructure:"base_url" yaml:"base_url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`

	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
	RateBurst int           `mapstructure:"rate_burst" yaml:"rate_burst"`

	Log    logger.LogConfig        `mapstructure:"log" yaml:"log"`
	Suite  SuiteConfig             `mapstructure:"suite" yaml:"suite"`
	Expect acceptance.Expectations `mapstructure:"expect" yaml:"expect"`
}

// SuiteConfig selects optional steps.
type SuiteConfig struct {
	RemovalChecks bool `mapstructure:"removal_checks" yaml:"removal_checks"`
}

// LoadOptions controls where Load looks.
type LoadOptions struct {
	// ConfigFile is an explicit config path. Empty means an optional
	// spoilercheck.yaml in the working directory.
	ConfigFile string
	// EnvFile is a dotenv file. Empty means DefaultEnvFile. A missing file
	// is not an error.
	EnvFile string
	// Flags are bound by FlagKeys. Only flags the user set take effect.
	Flags *pflag.FlagSet
}

// FlagKeys maps command-line flag names to config keys.
var FlagKeys = map[string]string{
	"base-url":       "base_url",
	"username":       "username",
	"timeout":        "timeout",
	"rate-limit":     "rate_limit",
	"log-level":      "log.level",
	"log-format":     "log.format",
	"removal-checks": "suite.removal_checks",
}

// Load resolves the configuration. It does not validate it; call Validate
// once every source has been applied.
func Load(opts LoadOptions) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
	} else {
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range FlagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	return &cfg, nil
}

// Validate reports every missing or malformed required setting.
func (c *Config) Validate() error {
	var errs []error

	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required (set SPOILERCHECK_BASE_URL or --base-url)"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("base_url %q must be an absolute http or https URL", c.BaseURL))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required (set SPOILERCHECK_USERNAME or --username)"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required (set SPOILERCHECK_PASSWORD)"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}

	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Password != "" {
		out.Password = "********"
	}
	return &out
}

// YAML renders the configuration, with the password redacted.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return data, nil
}
