package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (FLOWC_PROJECT,
// FLOWC_LOG_LEVEL, ...).
const EnvPrefix = "FLOWC"

// Config is the merged configuration for both binaries: defaults, then
// the optional flowc.yaml, then FLOWC_* environment variables, then any
// flags bound to the viper instance.
type Config struct {
	Project   string `mapstructure:"project"`
	Domain    string `mapstructure:"domain"`
	Version   string `mapstructure:"version"`
	Server    string `mapstructure:"server"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Addr      string `mapstructure:"addr"`
	DB        string `mapstructure:"db"`
}

// CompileConfig is the context new workflows are compiled in. It
// supplies the project, domain and version of default identifiers.
type CompileConfig struct {
	Project string
	Domain  string
	Version string
}

// DefaultCompileConfig returns sensible defaults.
func DefaultCompileConfig() CompileConfig {
	return CompileConfig{
		Project: "flowc",
		Domain:  "development",
		Version: "latest",
	}
}

// ServerConfig holds configuration for the flowc control-plane server.
type ServerConfig struct {
	Addr      string // Listen address (default ":8080")
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: text, json
	DBPath    string // SQLite database path (default ~/.flowc/flowc.db, ":memory:" for testing)
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// New returns a viper instance with defaults and environment lookup
// configured. Callers may bind flags to it before calling Load.
func New() *viper.Viper {
	v := viper.New()
	cc := DefaultCompileConfig()
	sc := DefaultServerConfig()
	v.SetDefault("project", cc.Project)
	v.SetDefault("domain", cc.Domain)
	v.SetDefault("version", cc.Version)
	v.SetDefault("server", "http://localhost:8080")
	v.SetDefault("log_level", sc.LogLevel)
	v.SetDefault("log_format", sc.LogFormat)
	v.SetDefault("addr", sc.Addr)
	v.SetDefault("db", sc.DBPath)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads configuration into a Config. When file is empty, flowc.yaml
// is looked up in the working directory and ~/.flowc, and its absence is
// not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("flowc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.flowc")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Compile returns the compile context portion of c.
func (c *Config) Compile() CompileConfig {
	return CompileConfig{Project: c.Project, Domain: c.Domain, Version: c.Version}
}

// ServerConfig returns the server portion of c.
func (c *Config) ServerConfig() ServerConfig {
	return ServerConfig{Addr: c.Addr, LogLevel: c.LogLevel, LogFormat: c.LogFormat, DBPath: c.DB}
}
