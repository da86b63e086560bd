// Package paths resolves where unisql keeps its configuration, its stores
// and its schema definitions.
//
// Each location follows the same precedence: command-line flag, then the
// value from config.yaml (data and schema only), then an environment
// variable, then a default.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "unisql"

// Defaults relative to the working directory and the config directory.
const (
	DefaultDataDirName   = ".unisql-db"
	DefaultSchemaDirName = "schemas"
)

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "UNISQL_CONFIG_DIR"
	EnvDataDir   = "UNISQL_DATA_DIR"
	EnvSchemaDir = "UNISQL_SCHEMA_DIR"
)

// platformDir holds platform lookups that tests override.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// xdgDir returns $<xdgVar>/unisql, or ~/<fallback...>/unisql when the
// variable is unset.
func xdgDir(xdgVar string, fallback ...string) (string, error) {
	if xdg := os.Getenv(xdgVar); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := platformDir.homeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(append(append([]string{home}, fallback...), appName)...), nil
}

// DefaultConfigDir returns the platform configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/unisql (fallback ~/.config/unisql)
// macOS:   ~/Library/Application Support/unisql
// Windows: %APPDATA%/unisql
func DefaultConfigDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	dir, err := platformDir.userConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DefaultDataDir returns the platform data directory.
//
// Linux:   $XDG_DATA_HOME/unisql (fallback ~/.local/share/unisql)
// macOS and Windows: same as DefaultConfigDir.
func DefaultDataDir() (string, error) {
	if runtime.GOOS == "linux" {
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	}
	return DefaultConfigDir()
}

// firstAbs returns the first non-empty candidate as an absolute path.
func firstAbs(candidates ...string) (string, bool, error) {
	for _, c := range candidates {
		if c != "" {
			abs, err := filepath.Abs(c)
			return abs, true, err
		}
	}
	return "", false, nil
}

// ResolveConfigDir follows flag > UNISQL_CONFIG_DIR > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if dir, ok, err := firstAbs(flag, os.Getenv(EnvConfigDir)); ok {
		return dir, err
	}
	return DefaultConfigDir()
}

// ResolveDataDir follows flag > config.yaml > UNISQL_DATA_DIR >
// $(CWD)/.unisql-db.
func ResolveDataDir(flag, configValue string) (string, error) {
	if dir, ok, err := firstAbs(flag, configValue, os.Getenv(EnvDataDir)); ok {
		return dir, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}

// ResolveSchemaDir follows flag > config.yaml > UNISQL_SCHEMA_DIR >
// <configDir>/schemas.
func ResolveSchemaDir(flag, configValue, configDir string) (string, error) {
	if dir, ok, err := firstAbs(flag, configValue, os.Getenv(EnvSchemaDir)); ok {
		return dir, err
	}
	return filepath.Join(configDir, DefaultSchemaDirName), nil
}
