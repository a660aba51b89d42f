// Package config loads service configuration from defaults, an optional
// rkas.yaml file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTP struct {
		Port              int      `mapstructure:"port"`
		AllowedOrigins    []string `mapstructure:"allowed_origins"`
		RequestsPerMinute int      `mapstructure:"requests_per_minute"`
	} `mapstructure:"http"`

	Cache struct {
		// Path of the SQLite cache; empty keeps the cache in memory
		Path string `mapstructure:"path"`
	} `mapstructure:"cache"`

	Remote struct {
		URL          string        `mapstructure:"url"`
		Key          string        `mapstructure:"key"`
		EnsureSchema bool          `mapstructure:"ensure_schema"`
		LoadTimeout  time.Duration `mapstructure:"load_timeout"`
	} `mapstructure:"remote"`

	Sync struct {
		Debounce time.Duration `mapstructure:"debounce"`
	} `mapstructure:"sync"`

	Reconcile struct {
		EmptyRemoteAuthoritative bool `mapstructure:"empty_remote_authoritative"`
	} `mapstructure:"reconcile"`

	AI struct {
		APIKey         string        `mapstructure:"api_key"`
		AuditModel     string        `mapstructure:"audit_model"`
		ChecklistModel string        `mapstructure:"checklist_model"`
		Timeout        time.Duration `mapstructure:"timeout"`
	} `mapstructure:"ai"`

	AMQP struct {
		URL      string `mapstructure:"url"`
		Exchange string `mapstructure:"exchange"`
		Queue    string `mapstructure:"queue"`
	} `mapstructure:"amqp"`

	Log struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"log"`
}

// IsSet reports whether a credential-like value is actually provided.
// Templated env files may leave the literal "undefined" behind.
func IsSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != "undefined"
}

// RemoteConfigured reports whether both remote URL and key are provided.
func (c *Config) RemoteConfigured() bool {
	return IsSet(c.Remote.URL) && IsSet(c.Remote.Key)
}

func (c *Config) AIConfigured() bool {
	return IsSet(c.AI.APIKey)
}

func (c *Config) AMQPConfigured() bool {
	return IsSet(c.AMQP.URL)
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.HTTP.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("http.requests_per_minute", 120)

	v.SetDefault("cache.path", "./data/rkas.db")

	v.SetDefault("remote.url", "")
	v.SetDefault("remote.key", "")
	v.SetDefault("remote.ensure_schema", false)
	v.SetDefault("remote.load_timeout", 10*time.Second)

	v.SetDefault("sync.debounce", 500*time.Millisecond)
	v.SetDefault("reconcile.empty_remote_authoritative", false)

	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.audit_model", "gemini-3-flash-preview")
	v.SetDefault("ai.checklist_model", "gemini-3-pro-preview")
	v.SetDefault("ai.timeout", 60*time.Second)

	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "rkas")
	v.SetDefault("amqp.queue", "budget_changes")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. configFile overrides the search for rkas.yaml
// when non-empty. The result is not validated.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("rkas")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rkas")
		v.AddConfigPath("/etc/rkas")
	}

	v.SetEnvPrefix("RKAS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unprefixed names used by existing deployments
	for key, env := range map[string]string{
		"remote.url": "SUPABASE_URL",
		"remote.key": "SUPABASE_ANON_KEY",
		"ai.api_key": "API_KEY",
		"amqp.url":   "AMQP_URL",
		"http.port":  "PORT",
	} {
		prefixed := "RKAS_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", c.HTTP.Port))
	}
	if c.HTTP.RequestsPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid requests per minute %d: must be at least 1", c.HTTP.RequestsPerMinute))
	}

	if c.RemoteConfigured() {
		if parsedURL, err := url.Parse(c.Remote.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid remote URL: %v", err))
		} else if parsedURL.Scheme != "postgres" && parsedURL.Scheme != "postgresql" && parsedURL.Scheme != "memory" {
			errs = append(errs, fmt.Sprintf("invalid remote URL scheme '%s': must be 'postgres', 'postgresql' or 'memory'", parsedURL.Scheme))
		}
	}
	if c.Remote.LoadTimeout < time.Second || c.Remote.LoadTimeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid remote load timeout %v: must be between 1s and 5m", c.Remote.LoadTimeout))
	}

	if c.Sync.Debounce < 0 {
		errs = append(errs, fmt.Sprintf("invalid sync debounce %v: must not be negative", c.Sync.Debounce))
	} else if c.Sync.Debounce > time.Minute {
		errs = append(errs, fmt.Sprintf("invalid sync debounce %v: must be at most 1 minute", c.Sync.Debounce))
	}

	if c.AI.Timeout < time.Second || c.AI.Timeout > 5*time.Minute {
		errs = append(errs, fmt.Sprintf("invalid AI timeout %v: must be between 1s and 5m", c.AI.Timeout))
	}
	if c.AIConfigured() && (c.AI.AuditModel == "" || c.AI.ChecklistModel == "") {
		errs = append(errs, "AI model names cannot be empty when an API key is provided")
	}

	if c.AMQPConfigured() {
		if parsedURL, err := url.Parse(c.AMQP.URL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL: %v", err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQP.Queue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.Log.Level))
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}
