// Package config loads and validates the YAML configuration described in
// the backup engine's external interface. It mirrors the narrow,
// per-concern config structs the rest of the codebase consumes
// (BackendConfig, HardwareConfig) rather than a generic config framework.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "2s" or "150ms" parse.
type Duration time.Duration

// UnmarshalYAML parses a Go duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("config error: parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const (
	// DefaultChunkSize is the clear-text chunk size used when chunks.size
	// is omitted.
	DefaultChunkSize = 100 * 1024 * 1024

	// MaxChunkSize caps chunks.size regardless of what the config requests.
	MaxChunkSize = 1024 * 1024 * 1024
)

// Config is the root of the YAML configuration file.
type Config struct {
	Database  string          `yaml:"database"`
	Root      string          `yaml:"root"`
	Cache     string          `yaml:"cache"`
	Chunks    ChunksConfig    `yaml:"chunks"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Ignore    []string        `yaml:"ignore"`
	Workers   int             `yaml:"workers"`
	QueueSize int             `yaml:"queue_size"`
	PGP       PGPConfig       `yaml:"pgp"`
	Store     StoreConfig     `yaml:"store"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Audit     AuditConfig     `yaml:"audit"`
}

// TracingConfig configures the optional span exporter (see internal/tracing).
type TracingConfig struct {
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// ChunksConfig controls the Planner's clear-text chunk size.
type ChunksConfig struct {
	Size int64 `yaml:"size"`
}

// AggregateConfig controls small-file bundling.
type AggregateConfig struct {
	MinSize int64 `yaml:"min_size"`
	Size    int64 `yaml:"size"`
}

// PGPConfig describes the encryption key material fed to the Encryptor.
type PGPConfig struct {
	Key        string `yaml:"key"`
	ASCII      bool   `yaml:"ascii"`
	Passphrase string `yaml:"passphrase"`
	KMIP       *KMIPConfig `yaml:"kmip"`
}

// KMIPConfig optionally wraps the PGP passphrase through a KMIP server
// instead of keeping it on local disk in the clear.
type KMIPConfig struct {
	Endpoint string `yaml:"endpoint"`
	KeyID    string `yaml:"key_id"`
	TLSCert  string `yaml:"tls_cert"`
	TLSKey   string `yaml:"tls_key"`
	CACert   string `yaml:"ca_cert"`
}

// StoreConfig selects and configures the object-store backend.
type StoreConfig struct {
	Type       string           `yaml:"type"`
	Local      LocalStoreConfig `yaml:"local"`
	S3         BackendConfig    `yaml:"s3"`
	S3Official S3OfficialConfig `yaml:"s3-official"`
	Redis      RedisCacheConfig `yaml:"redis"`
}

// LocalStoreConfig configures the "local" store backend.
type LocalStoreConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig configures the "s3" store backend.
type BackendConfig struct {
	Provider  string `yaml:"provider"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// S3OfficialConfig configures the "s3-official" store backend. It is built
// on the same internal/s3 Client as "s3", with connection settings from
// store.s3 and only the bucket taken from here; MultipartPartSize is parsed
// but not used, and every object is uploaded in a single PutObject.
type S3OfficialConfig struct {
	Bucket          string `yaml:"bucket"`
	MultipartPartSize int64 `yaml:"multipart_part_size"`
}

// RedisCacheConfig configures the optional redis-backed cache layer, an
// alternative to the filesystem cache.
type RedisCacheConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HardwareConfig toggles AES hardware-acceleration reporting.
type HardwareConfig struct {
	EnableAESNI    bool `yaml:"enable_aesni"`
	EnableARMv8AES bool `yaml:"enable_armv8_aes"`
}

// MetricsConfig configures the optional admin HTTP server.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// AuditConfig configures the optional audit trail of file/chunk completion
// events (see internal/audit).
type AuditConfig struct {
	Enabled             bool           `yaml:"enabled"`
	MaxEvents           int            `yaml:"max_events"`
	RedactMetadataKeys  []string       `yaml:"redact_metadata_keys"`
	Sink                AuditSinkConfig `yaml:"sink"`
}

// AuditSinkConfig selects and configures where audit events are written.
type AuditSinkConfig struct {
	Type          string            `yaml:"type"` // "stdout" (default), "file", "http"
	FilePath      string            `yaml:"file_path"`
	Endpoint      string            `yaml:"endpoint"`
	Headers       map[string]string `yaml:"headers"`
	BatchSize     int               `yaml:"batch_size"`
	FlushInterval Duration          `yaml:"flush_interval"`
	RetryCount    int               `yaml:"retry_count"`
	RetryBackoff  Duration          `yaml:"retry_backoff"`
}

// Load reads and validates a Config from path, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config error: read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config error: parse %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Chunks.Size <= 0 {
		c.Chunks.Size = DefaultChunkSize
	}
	if c.Chunks.Size > MaxChunkSize {
		c.Chunks.Size = MaxChunkSize
	}
	if c.Aggregate.Size <= 0 || c.Aggregate.Size > c.Chunks.Size {
		c.Aggregate.Size = c.Chunks.Size
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.QueueSize < 0 {
		c.QueueSize = 0
	}
	if c.Store.Type == "" {
		c.Store.Type = "local"
	}
}

func (c *Config) validate() error {
	if c.Database == "" {
		return fmt.Errorf("config error: database is required")
	}
	switch c.Store.Type {
	case "log", "local", "s3", "s3-official":
	default:
		return fmt.Errorf("config error: unknown store.type %q", c.Store.Type)
	}
	return nil
}

// RequireRootAndPGP validates the fields only mandatory for crawl/push
// (root, pgp.key), deferred from Load because pull/mount/ls/export/import
// don't need a source tree.
func (c *Config) RequireRootAndPGP() error {
	if c.Root == "" {
		return fmt.Errorf("config error: root is required")
	}
	if c.PGP.Key == "" {
		return fmt.Errorf("config error: pgp.key is required")
	}
	return nil
}
