package account

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.msgvault.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".msgvault")
}

// Dir returns the account-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "accounts", name)
}

// StoreDir returns the filesystem engine root for an account.
func StoreDir(name string) string {
	return filepath.Join(Dir(name), "store")
}

// DBPath returns the sqlite engine database path for an account.
func DBPath(name string) string {
	return filepath.Join(Dir(name), "store.db")
}

// LockPath returns the lock file path for an account.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// LogDir returns the log directory for an account.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "msgvaultd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the account directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		StoreDir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
