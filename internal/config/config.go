// Package config loads the tops configuration file.
//
// The file may be YAML (.yaml, .yml) or TOML (.toml). Both are decoded into a
// generic map first and then into Config, so keys are the same in either
// format. Missing keys keep their defaults and unknown keys are rejected.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/aretw0/tops/pkg/domain"
)

// Candidates are the file names Discover looks for, in order.
var Candidates = []string{"tops.yaml", "tops.yml", "tops.toml"}

// Config is the complete tops configuration.
type Config struct {
	LogLevel string         `mapstructure:"log_level"`
	Chart    ChartConfig    `mapstructure:"chart"`
	Server   ServerConfig   `mapstructure:"server"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Logwatch LogwatchConfig `mapstructure:"logwatch"`
	Archiver ArchiverConfig `mapstructure:"archiver"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ChartConfig locates the statechart declarations and the session store.
type ChartConfig struct {
	// Dir holds the state declaration files.
	Dir string `mapstructure:"dir"`
	// Root is the state new sessions start in. Empty selects the first root.
	Root string `mapstructure:"root"`
	// Sessions is the directory of the file session store.
	Sessions string `mapstructure:"sessions"`
	// RedisURL selects the Redis session store and lock when set.
	RedisURL   string        `mapstructure:"redis_url"`
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	LockTTL    time.Duration `mapstructure:"lock_ttl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// FeedConfig points at the feed endpoints.
type FeedConfig struct {
	LogURL      string        `mapstructure:"log_url"`
	ArchiverURL string        `mapstructure:"archiver_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// LogwatchConfig holds the initial log viewer options.
type LogwatchConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	MaxMessages  int           `mapstructure:"max_messages"`
	SourceFilter string        `mapstructure:"source_filter"`
	MinLevel     domain.Level  `mapstructure:"min_level"`
}

// ArchiverConfig holds the initial archiver viewer options.
type ArchiverConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Pattern  string        `mapstructure:"pattern"`
	Selector string        `mapstructure:"selector"`
}

// MetricsConfig configures the Prometheus endpoint of the viewers. An empty address disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Chart: ChartConfig{
			Dir:        ".",
			Sessions:   ".tops/sessions",
			SessionTTL: 24 * time.Hour,
			LockTTL:    30 * time.Second,
		},
		Server: ServerConfig{Addr: ":8080"},
		Feed: FeedConfig{
			LogURL:      "http://localhost:8080/logwatch",
			ArchiverURL: "http://localhost:8080/archiver",
			Timeout:     5 * time.Second,
		},
		Logwatch: LogwatchConfig{
			Interval:     time.Second,
			MaxMessages:  1000,
			SourceFilter: "*",
			MinLevel:     domain.LevelDebug,
		},
		Archiver: ArchiverConfig{
			Interval: time.Second,
			Pattern:  "*",
		},
	}
}

// Discover returns the first candidate file found in dir, or "" if there is none.
func Discover(dir string) string {
	for _, name := range Candidates {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// Load reads path over the defaults. An empty path returns the defaults.
// The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	raw, err := parse(path, data)
	if err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := decode(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func parse(path string, data []byte) (map[string]any, error) {
	raw := map[string]any{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if _, err := toml.Decode(string(data), &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	return raw, nil
}

func decode(raw map[string]any, cfg *Config) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			levelHook,
		),
	})
	if err != nil {
		return err
	}
	return dec.Decode(raw)
}

var levelType = reflect.TypeOf(domain.Level(0))

// levelHook accepts level names ("INFO") as well as numbers for domain.Level fields.
func levelHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != levelType || from.Kind() != reflect.String {
		return data, nil
	}
	return domain.ParseLevel(data.(string))
}
