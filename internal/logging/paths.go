package logging

import (
	"os"
	"path/filepath"
)

// DefaultLogDir returns ~/.amanvis/logs, or a temp directory without a home.
func DefaultLogDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".amanvis", "logs")
	}
	return filepath.Join(home, ".amanvis", "logs")
}

// DefaultLogPath returns the log file used by all commands.
func DefaultLogPath() string {
	return filepath.Join(DefaultLogDir(), "amanvis.log")
}
