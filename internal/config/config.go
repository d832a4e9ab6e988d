// Package config handles configuration loading and validation for codegraph.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/imyousuf/codegraph/internal/graph"
	"github.com/imyousuf/codegraph/internal/parser"
)

const (
	// DefaultConfigFile is the default configuration file name (without extension).
	DefaultConfigFile = ".codegraph"
	// DefaultConfigType is the default configuration file type.
	DefaultConfigType = "yaml"
	// EnvPrefix prefixes every environment override, e.g. CODEGRAPH_STORE_PATH.
	EnvPrefix = "CODEGRAPH"
)

// Config holds all configuration for codegraph.
type Config struct {
	// Backend is the graph backend (array or indexed).
	Backend string `mapstructure:"backend" yaml:"backend"`
	// Workers bounds parallel extraction; 0 means one per CPU.
	Workers int `mapstructure:"workers" yaml:"workers"`
	// Include lists globs a file must match to be built; empty admits all.
	Include []string `mapstructure:"include" yaml:"include,omitempty"`
	// Exclude lists globs of files left out of a build.
	Exclude []string `mapstructure:"exclude" yaml:"exclude,omitempty"`
	// Languages overrides language detection.
	Languages []string `mapstructure:"languages" yaml:"languages,omitempty"`
	// Prune removes leaf nodes after linking.
	Prune []graph.PruneRule `mapstructure:"prune" yaml:"prune,omitempty"`
	// Output is the default JSON output path of a build.
	Output string `mapstructure:"output" yaml:"output,omitempty"`

	Store  StoreConfig  `mapstructure:"store" yaml:"store"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
	Watch  WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Cache  CacheConfig  `mapstructure:"cache" yaml:"cache"`
	Git    GitConfig    `mapstructure:"git" yaml:"git"`
}

// StoreConfig holds snapshot store configuration.
type StoreConfig struct {
	// Path is the BadgerDB directory.
	Path string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds HTTP service configuration.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// WatchConfig holds file watching configuration.
type WatchConfig struct {
	// Debounce is the quiet period after the last change before a rebuild.
	Debounce time.Duration `mapstructure:"debounce" yaml:"debounce"`
}

// CacheConfig sizes the linker's parse cache.
type CacheConfig struct {
	Size int `mapstructure:"size" yaml:"size"`
}

// GitConfig holds credentials for cloning private repositories.
type GitConfig struct {
	Username string `mapstructure:"username" yaml:"username,omitempty"`
	// Token is a personal access token. It is never written to disk.
	Token string `mapstructure:"token" yaml:"-"`
}

// Load loads configuration from file, environment variables, and defaults.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Check if a specific config file was set via CLI flag (stored in global viper)
	globalViper := viper.GetViper()
	if configFile := globalViper.GetString("config_file"); configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(DefaultConfigFile)
		v.SetConfigType(DefaultConfigType)
		v.AddConfigPath(".")
	}

	// Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if _, err := graph.ParseKind(c.Backend); err != nil {
		return fmt.Errorf("backend must be 'array' or 'indexed', got %q", c.Backend)
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative, got %d", c.Workers)
	}
	if c.Cache.Size < 0 {
		return fmt.Errorf("cache.size must not be negative, got %d", c.Cache.Size)
	}
	if c.Watch.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %s", c.Watch.Debounce)
	}
	if c.Store.Path == "" {
		return errors.New("store.path is required")
	}
	for _, l := range c.Languages {
		if !knownLanguage(l) {
			return fmt.Errorf("unsupported language %q", l)
		}
	}
	for i, r := range c.Prune {
		if r.Parent == "" || r.Child == "" {
			return fmt.Errorf("prune rule %d: parent and child are required", i)
		}
	}
	return nil
}

// Kind returns the configured graph backend.
func (c *Config) Kind() graph.Kind {
	k, err := graph.ParseKind(c.Backend)
	if err != nil {
		return graph.KindArray
	}
	return k
}

// ParsedLanguages returns the configured language overrides.
func (c *Config) ParsedLanguages() []parser.Language {
	out := make([]parser.Language, 0, len(c.Languages))
	for _, l := range c.Languages {
		out = append(out, parser.Language(strings.ToLower(l)))
	}
	return out
}

func knownLanguage(l string) bool {
	switch parser.Language(strings.ToLower(l)) {
	case parser.LangGo, parser.LangPython, parser.LangRuby, parser.LangTypeScript, parser.LangReact, parser.LangSwift:
		return true
	}
	return false
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", string(graph.KindArray))
	v.SetDefault("workers", 0)
	v.SetDefault("output", "")
	v.SetDefault("store.path", ".codegraph/store")
	v.SetDefault("server.addr", ":3355")
	v.SetDefault("watch.debounce", "500ms")
	v.SetDefault("cache.size", 512)
	// Registered so env overrides reach Unmarshal.
	v.SetDefault("include", []string{})
	v.SetDefault("exclude", []string{})
	v.SetDefault("languages", []string{})
	v.SetDefault("git.username", "")
	v.SetDefault("git.token", "")
}
