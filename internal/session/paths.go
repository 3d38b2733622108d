package session

import (
	"os"
	"path/filepath"
)

// BaseDir returns ~/.optsync.
func BaseDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".optsync")
}

// Dir returns the namespace-specific directory.
func Dir(name string) string {
	return filepath.Join(BaseDir(), "namespaces", name)
}

// LockPath returns the lock file path for a namespace.
func LockPath(name string) string {
	return filepath.Join(Dir(name), "LOCK")
}

// CacheDBPath returns the snapshot cache.db path.
func CacheDBPath(name string) string {
	return filepath.Join(Dir(name), "cache.db")
}

// LogDir returns the log directory for a namespace.
func LogDir(name string) string {
	return filepath.Join(Dir(name), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(name string) string {
	return filepath.Join(LogDir(name), "optsyncd.log")
}

// ConfigPath returns the global config file path.
func ConfigPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the namespace directory tree with proper permissions.
func EnsureDir(name string) error {
	dirs := []string{
		Dir(name),
		LogDir(name),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
