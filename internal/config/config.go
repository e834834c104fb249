// Package config handles configuration loading for webmondiag.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Endpoint EndpointConfig `mapstructure:"endpoint" yaml:"endpoint"`
	Control  ControlConfig  `mapstructure:"control" yaml:"control"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Tracing  TracingConfig  `mapstructure:"tracing" yaml:"tracing"`

	file string
}

// EndpointConfig holds the initial values of the diagnostic endpoint.
// They are applied once at startup; runtime changes are never written back.
type EndpointConfig struct {
	Hostname     string `mapstructure:"hostname" yaml:"hostname"`
	Port         int    `mapstructure:"port" yaml:"port"` // 0 = must be given on the command line
	Path         string `mapstructure:"path" yaml:"path"`
	StatusCode   int    `mapstructure:"status_code" yaml:"status_code"`
	Body         string `mapstructure:"body" yaml:"body"`
	BodyFile     string `mapstructure:"body_file" yaml:"body_file"`
	DelayMs      int    `mapstructure:"delay_ms" yaml:"delay_ms"`
	DelayEnabled bool   `mapstructure:"delay_enabled" yaml:"delay_enabled"`
	Listen       bool   `mapstructure:"listen" yaml:"listen"`
	Respond      bool   `mapstructure:"respond" yaml:"respond"`
	EmptyBody    bool   `mapstructure:"empty_body" yaml:"empty_body"`
}

// ControlConfig represents the control API configuration.
type ControlConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Addr    string `mapstructure:"addr" yaml:"addr"`
}

// JournalConfig represents the event journal configuration.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file"`
}

// TracingConfig represents tracing configuration.
type TracingConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	File    string `mapstructure:"file" yaml:"file"`
}

// File returns the config file that was read, or "" when defaults and
// environment variables were used alone.
func (c *Config) File() string {
	return c.file
}

// Load loads the configuration from files and environment variables.
// A non-empty path selects an explicit config file that must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		v.AddConfigPath(".")
		v.AddConfigPath("./webmondiag")
		if dir, err := Dir(); err == nil {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("WEBMONDIAG")
	v.SetEnvKeyReplacer(envReplacer)
	v.AutomaticEnv()

	v.BindEnv("endpoint.hostname", "WEBMONDIAG_HOSTNAME")
	v.BindEnv("endpoint.port", "WEBMONDIAG_PORT")
	v.BindEnv("control.addr", "WEBMONDIAG_CONTROL_ADDR")
	v.BindEnv("journal.path", "WEBMONDIAG_JOURNAL_PATH")
	v.BindEnv("logging.level", "WEBMONDIAG_LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	cfg.file = v.ConfigFileUsed()

	cfg.Journal.Path = os.ExpandEnv(cfg.Journal.Path)
	cfg.Endpoint.BodyFile = os.ExpandEnv(cfg.Endpoint.BodyFile)
	cfg.Logging.File = os.ExpandEnv(cfg.Logging.File)
	cfg.Tracing.File = os.ExpandEnv(cfg.Tracing.File)

	return &cfg, nil
}

var envReplacer = strings.NewReplacer(".", "_")

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Endpoint defaults mirror a freshly reset endpoint
	v.SetDefault("endpoint.hostname", "127.0.0.1")
	v.SetDefault("endpoint.port", 0)
	v.SetDefault("endpoint.path", "/")
	v.SetDefault("endpoint.status_code", 200)
	v.SetDefault("endpoint.body", "")
	v.SetDefault("endpoint.body_file", "")
	v.SetDefault("endpoint.delay_ms", 1)
	v.SetDefault("endpoint.delay_enabled", false)
	v.SetDefault("endpoint.listen", true)
	v.SetDefault("endpoint.respond", true)
	v.SetDefault("endpoint.empty_body", false)

	v.SetDefault("control.enabled", true)
	v.SetDefault("control.addr", "127.0.0.1:8090")

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", DefaultJournalPath())

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.file", "")
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".config", "webmondiag"), nil
}

// DefaultJournalPath returns the default event journal location.
func DefaultJournalPath() string {
	dir, err := Dir()
	if err != nil {
		return "./webmondiag.db"
	}
	return filepath.Join(dir, "journal.db")
}

// EnsureDir ensures the directory holding path exists.
func EnsureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0755)
}

// WriteDefault writes a commented default config file to path. An existing
// file is left alone unless force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	if err := EnsureDir(path); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(defaultFile), 0644)
}

const defaultFile = `# webmondiag configuration

endpoint:
  hostname: 127.0.0.1
  # port: 8080          # required here or with --port
  path: /
  status_code: 200
  body: ""
  body_file: ""
  delay_ms: 1
  delay_enabled: false
  listen: true
  respond: true
  empty_body: false

control:
  enabled: true
  addr: 127.0.0.1:8090

journal:
  enabled: true
  # path: ~/.config/webmondiag/journal.db

logging:
  level: info           # debug, info, warn, error
  format: text          # text, json
  file: ""

tracing:
  enabled: false
  file: ""              # stdout when empty
`
