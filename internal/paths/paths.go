// Package paths resolves configuration and data directory locations.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// DefaultDataDirName is the CWD-relative data directory used when no other
// location is configured.
const DefaultDataDirName = ".showcase-data"

// Environment variable names for directory overrides.
const (
	EnvConfigDir = "SHOWCASE_CONFIG_DIR"
	EnvDataDir   = "SHOWCASE_DATA_DIR"
)

const appDirName = "showcase"

// platformDir holds platform-detection functions that can be overridden in tests.
var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration directory.
//
// Linux:   $XDG_CONFIG_HOME/showcase (fallback ~/.config/showcase)
// macOS:   ~/Library/Application Support/showcase
// Windows: %APPDATA%/showcase
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, appDirName), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", appDirName), nil
	default:
		// os.UserConfigDir is ~/Library/Application Support on macOS and
		// %APPDATA% on Windows.
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, appDirName), nil
	}
}

// ResolveConfigDir returns the configuration directory following the precedence
// chain: flag > SHOWCASE_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir returns the data directory following the precedence chain:
// flag > SHOWCASE_DATA_DIR env > configValue > $(CWD)/.showcase-data.
// A site checkout thus carries its documents next to it.
func ResolveDataDir(flag, configValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	if configValue != "" {
		return filepath.Abs(configValue)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
