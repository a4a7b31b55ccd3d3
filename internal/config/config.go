package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	logpkg "github.com/rzbill/spool/pkg/log"
	"gopkg.in/yaml.v3"
)

// Backend names.
const (
	BackendPebble = "pebble"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	DataDir         string          `json:"dataDir" yaml:"dataDir"`
	Backend         string          `json:"backend" yaml:"backend"`
	Capacity        int             `json:"capacity" yaml:"capacity"`
	Fsync           string          `json:"fsync" yaml:"fsync"`
	FsyncIntervalMs int             `json:"fsyncIntervalMs" yaml:"fsyncIntervalMs"`
	Codec           string          `json:"codec" yaml:"codec"`
	Compression     string          `json:"compression" yaml:"compression"`
	Groups          []string        `json:"groups" yaml:"groups"`
	Filter          string          `json:"filter" yaml:"filter"`
	Ingestion       IngestionConfig `json:"ingestion" yaml:"ingestion"`
	Flush           FlushConfig     `json:"flush" yaml:"flush"`
	Log             logpkg.Config   `json:"log" yaml:"log"`
	HTTPAddr        string          `json:"httpAddr" yaml:"httpAddr"`
	GRPCAddr        string          `json:"grpcAddr" yaml:"grpcAddr"`
}

// IngestionConfig points at the upstream log service. An empty URL discards
// flushed batches.
type IngestionConfig struct {
	URL       string `json:"url" yaml:"url"`
	AppSecret string `json:"appSecret" yaml:"appSecret"`
	InstallID string `json:"installId" yaml:"installId"`
	// AuthToken is sent as a bearer token when set.
	AuthToken string `json:"authToken" yaml:"authToken"`
	TimeoutMs int    `json:"timeoutMs" yaml:"timeoutMs"`
}

// FlushConfig controls the background sender.
type FlushConfig struct {
	IntervalMs    int     `json:"intervalMs" yaml:"intervalMs"`
	BatchSize     int     `json:"batchSize" yaml:"batchSize"`
	RatePerSecond float64 `json:"ratePerSecond" yaml:"ratePerSecond"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:         DefaultDataDir(),
		Backend:         BackendPebble,
		Capacity:        300,
		Fsync:           "always",
		FsyncIntervalMs: 5,
		Codec:           "json",
		Compression:     "none",
		Groups:          []string{"default"},
		Ingestion: IngestionConfig{
			TimeoutMs: 30000,
		},
		Flush: FlushConfig{
			IntervalMs: 3000,
			BatchSize:  50,
		},
		Log:      logpkg.Config{Level: "info", Format: "text", Redact: []string{"app_secret", "auth_token"}},
		HTTPAddr: ":8080",
		GRPCAddr: ":9090",
	}
}

// Load reads configuration from a JSON or YAML file (by extension). If path
// is empty, returns defaults. Fields absent from the file keep their defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendPebble, BackendSQLite:
		if c.DataDir == "" {
			errs = append(errs, fmt.Errorf("dataDir is required for backend %q", c.Backend))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Capacity < 0 {
		errs = append(errs, errors.New("capacity must not be negative"))
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("unknown fsync mode %q", c.Fsync))
	}
	switch c.Codec {
	case "", "json", "cbor":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", c.Codec))
	}
	switch c.Compression {
	case "", "none", "zstd":
	default:
		errs = append(errs, fmt.Errorf("unknown compression %q", c.Compression))
	}
	for _, g := range c.Groups {
		if strings.TrimSpace(g) == "" {
			errs = append(errs, errors.New("groups must not contain empty names"))
			break
		}
	}
	if c.Ingestion.URL != "" && c.Ingestion.AppSecret == "" {
		errs = append(errs, errors.New("ingestion.appSecret is required when ingestion.url is set"))
	}
	if _, err := logpkg.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Flush.BatchSize < 0 || c.Flush.IntervalMs < 0 || c.Flush.RatePerSecond < 0 {
		errs = append(errs, errors.New("flush settings must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

// FsyncInterval returns FsyncIntervalMs as a duration.
func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

// FlushInterval returns Flush.IntervalMs as a duration.
func (c Config) FlushInterval() time.Duration {
	return time.Duration(c.Flush.IntervalMs) * time.Millisecond
}

// IngestionTimeout returns Ingestion.TimeoutMs as a duration.
func (c Config) IngestionTimeout() time.Duration {
	return time.Duration(c.Ingestion.TimeoutMs) * time.Millisecond
}
