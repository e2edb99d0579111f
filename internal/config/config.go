package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the global ~/.msgvault/config.toml.
type Config struct {
	DefaultAccount string `toml:"default_account"`
	Engine         Engine `toml:"engine"`
	Daemon         Daemon `toml:"daemon"`
}

// Engine selects the storage backend and carries per-backend settings.
// Type is one of "memory", "fs", "sqlite", "redis", "s3" or "remote";
// empty means sqlite.
type Engine struct {
	Type   string `toml:"type"`
	FS     FS     `toml:"fs"`
	SQLite SQLite `toml:"sqlite"`
	Redis  Redis  `toml:"redis"`
	S3     S3     `toml:"s3"`
	Remote Remote `toml:"remote"`
}

// FS configures the directory-tree backend. An empty root means the
// account's store directory.
type FS struct {
	Root string `toml:"root"`
}

// SQLite configures the kv-table backend. An empty path means store.db
// inside the account directory.
type SQLite struct {
	Path string `toml:"path"`
}

// Redis configures the Redis backend.
type Redis struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"`
}

// S3 configures the object-store backend. Endpoint and PathStyle exist
// for MinIO and other S3-compatible services.
type S3 struct {
	Bucket    string `toml:"bucket"`
	Region    string `toml:"region"`
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Prefix    string `toml:"prefix"`
	PathStyle bool   `toml:"path_style"`
}

// Remote points at a running daemon's HTTP API.
type Remote struct {
	BaseURL string `toml:"base_url"`
}

// Daemon holds the HTTP listener settings.
type Daemon struct {
	Listen string `toml:"listen"`
}

// Default returns the config used when no file exists yet.
func Default() *Config {
	return &Config{
		DefaultAccount: "main",
		Engine:         Engine{Type: "sqlite", Redis: Redis{Addr: "localhost:6379"}},
		Daemon:         Daemon{Listen: "127.0.0.1:8420"},
	}
}

// Load reads config from the given path. Returns zero config and error if file missing.
func Load(path string) (*Config, error) {
	var cfg Config
	_, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
