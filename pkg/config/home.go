package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const envHome = "WALLET_GLUE_HOME"

var (
	homeOnce sync.Once
	homeDir  string
)

// GetHome returns the runner home directory.
//
// Resolution order:
//  1. $WALLET_GLUE_HOME environment variable
//  2. Parent of the binary's directory (if binary is in <home>/bin/)
//  3. Current working directory (development fallback)
func GetHome() string {
	homeOnce.Do(func() {
		homeDir = resolveHome()
	})
	return homeDir
}

// GetLogsDir returns <home>/logs.
func GetLogsDir() string {
	return filepath.Join(GetHome(), "logs")
}

// DefaultLogPath returns a timestamped log file path for a run started at
// now, creating the logs directory if needed.
func DefaultLogPath(now time.Time) (string, error) {
	dir := GetLogsDir()
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create logs dir: %w", err)
	}
	return filepath.Join(dir, "glue-"+now.Format("20060102-150405")+".log"), nil
}

// LoadHome loads config.yaml from the runner home, or defaults when the home
// has none.
func LoadHome() (*Config, error) {
	return LoadFromDir(GetHome())
}

func resolveHome() string {
	// 1. Environment variable
	if env := os.Getenv(envHome); env != "" {
		return env
	}

	// 2. Binary-relative: if binary is at <home>/bin/glue-metamask-ios, use <home>
	if execPath, err := os.Executable(); err == nil {
		if resolved, err := filepath.EvalSymlinks(execPath); err == nil {
			execPath = resolved
		}
		binDir := filepath.Dir(execPath)
		if filepath.Base(binDir) == "bin" {
			return filepath.Dir(binDir)
		}
	}

	// 3. Current working directory
	if cwd, err := os.Getwd(); err == nil {
		return cwd
	}

	return "."
}

// ResetHome resets the cached home directory (for testing).
func ResetHome() {
	homeOnce = sync.Once{}
	homeDir = ""
}
