package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "docrelay.json"

	// DefaultAddress is the default listen address.
	DefaultAddress = ":8433"

	// DefaultContentDir is the default content root.
	DefaultContentDir = "."

	// DefaultCleanupDelaySeconds is the grace period before an empty
	// document room is destroyed. -1 disables cleanup.
	DefaultCleanupDelaySeconds = 60.0

	// DefaultSaveDelaySeconds is the save debounce window.
	DefaultSaveDelaySeconds = 1.0

	// DefaultPollIntervalSeconds is how often loaders poll storage.
	// 0 disables polling.
	DefaultPollIntervalSeconds = 1.0
)

// Config represents the complete docrelay.json configuration.
type Config struct {
	// Address is the listen address (e.g., ":8433").
	Address string `json:"address,omitempty"`

	// AuthToken is the bearer token required on every API request.
	// Empty disables authentication.
	AuthToken string `json:"auth_token,omitempty"`

	// ContentDir is the root directory documents are served from when
	// the disk backend is used, and the root update logs are written
	// under for every backend.
	ContentDir string `json:"content_dir,omitempty"`

	// DocumentCleanupDelay is the grace period in seconds before an
	// empty document room is destroyed. -1 keeps rooms alive forever.
	DocumentCleanupDelay *float64 `json:"document_cleanup_delay,omitempty"`

	// DocumentSaveDelay is the save debounce window in seconds.
	DocumentSaveDelay *float64 `json:"document_save_delay,omitempty"`

	// FilePollInterval is how often loaders poll storage for
	// out-of-band changes, in seconds. 0 disables polling.
	FilePollInterval *float64 `json:"file_poll_interval,omitempty"`

	// FileIDPath is where the path-to-file-id index is persisted.
	// Empty keeps the index in memory only.
	FileIDPath string `json:"file_id_path,omitempty"`

	// Storage selects the durable content backend.
	Storage StorageConfig `json:"storage,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// StorageConfig selects and configures the content backend.
type StorageConfig struct {
	// Backend is "disk" (default) or "s3".
	Backend string `json:"backend,omitempty"`

	// Bucket is the S3 bucket, required for the s3 backend.
	Bucket string `json:"bucket,omitempty"`

	// Prefix is an optional key prefix for the s3 backend.
	Prefix string `json:"prefix,omitempty"`

	// Region is the AWS region for the s3 backend.
	Region string `json:"region,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Address:    DefaultAddress,
		ContentDir: DefaultContentDir,
		Storage:    StorageConfig{Backend: "disk"},
	}
}

// Load reads configuration from the specified directory. It looks for
// docrelay.json in the directory; a missing file yields the defaults.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path. A missing
// file yields the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.ContentDir == "" {
		c.ContentDir = DefaultContentDir
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "disk"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case "disk":
	case "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: s3 backend requires a bucket")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Storage.Backend)
	}
	if c.DocumentSaveDelay != nil && *c.DocumentSaveDelay <= 0 {
		return fmt.Errorf("config: document_save_delay must be positive")
	}
	if c.FilePollInterval != nil && *c.FilePollInterval < 0 {
		return fmt.Errorf("config: file_poll_interval must not be negative")
	}
	return nil
}

// CleanupDelay returns the room cleanup grace period. A negative value
// means cleanup is disabled.
func (c *Config) CleanupDelay() time.Duration {
	return seconds(c.DocumentCleanupDelay, DefaultCleanupDelaySeconds)
}

// SaveDelay returns the save debounce window.
func (c *Config) SaveDelay() time.Duration {
	return seconds(c.DocumentSaveDelay, DefaultSaveDelaySeconds)
}

// PollInterval returns the storage poll interval. Zero means polling
// is disabled.
func (c *Config) PollInterval() time.Duration {
	return seconds(c.FilePollInterval, DefaultPollIntervalSeconds)
}

func seconds(v *float64, def float64) time.Duration {
	s := def
	if v != nil {
		s = *v
	}
	if s < 0 {
		return -time.Second
	}
	return time.Duration(s * float64(time.Second))
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
