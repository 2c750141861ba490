package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// DefaultLFSThreshold is the file size at which uploads switch to lfs mode.
const DefaultLFSThreshold int64 = 10 * 1024 * 1024

// Config represents the main configuration for lfu.
type Config struct {
	HostID       string           `toml:"host_id"`
	BaseDir      string           `toml:"base_dir"`
	LogDir       string           `toml:"log_dir"`
	LogLevel     string           `toml:"log_level"` // debug, info (default), warn or error
	LFSThreshold int64            `toml:"lfs_threshold"`
	Remote       RemoteConfig     `toml:"remote"`
	Metadata     MetadataConfig   `toml:"metadata"`
	Database     DatabaseConfig   `toml:"database"`
	Encryption   EncryptionConfig `toml:"encryption"`
	Upload       UploadConfig     `toml:"upload"`
	Filesystem   FilesystemConfig `toml:"filesystem"`
}

// RemoteConfig represents configuration for the upload destination.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type RemoteConfig struct {
	Type string `toml:"type"` // "memory", "filesystem" or "s3"

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket          string `toml:"s3_bucket,omitempty"`
	S3Prefix          string `toml:"s3_prefix,omitempty"`
	S3Region          string `toml:"s3_region,omitempty"`
	S3Endpoint        string `toml:"s3_endpoint,omitempty"` // for S3-compatible stores
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`
}

// MetadataConfig selects where per-file upload progress is kept.
type MetadataConfig struct {
	Type string `toml:"type"` // "filesystem" (default), "sqlite" or "memory"
}

// DatabaseConfig represents configuration for the run history database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// EncryptionConfig holds paths to the age key pair used to encrypt staged objects.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "none" (default), "age" or "test"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
}

// UploadConfig tunes the upload engine.
type UploadConfig struct {
	Workers        int    `toml:"workers,omitempty"`         // 0 picks a default from the CPU count
	ReportInterval string `toml:"report_interval,omitempty"` // Go duration, e.g. "1m"
	CommitMessage  string `toml:"commit_message,omitempty"`
}

// FilesystemConfig holds filesystem-related settings.
type FilesystemConfig struct {
	Ignore []string `toml:"ignore"`
}

// NewConfig creates a new Config with the provided values and defaults.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:       hostID,
		BaseDir:      baseDir,
		LogDir:       filepath.Join(baseDir, "log"),
		LogLevel:     "info",
		LFSThreshold: DefaultLFSThreshold,
		Remote: RemoteConfig{
			Type:   "filesystem",
			FSRoot: filepath.Join(baseDir, "remote"),
		},
		Metadata: MetadataConfig{Type: "filesystem"},
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Encryption: EncryptionConfig{
			Type:           "none",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "lfu.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "lfu.key"),
		},
		Upload: UploadConfig{ReportInterval: "1m"},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if cfg.LFSThreshold <= 0 {
		cfg.LFSThreshold = DefaultLFSThreshold
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
