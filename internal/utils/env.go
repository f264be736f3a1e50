package utils

import (
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/kelsos/approvals/internal/logger"
)

// LoadEnvironment loads environment variables from .env files.
// Values already present in the process environment win; the current
// directory is consulted before the directory of the executable.
func LoadEnvironment() []string {
	candidates := []string{".env"}
	if execPath, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(execPath), ".env"))
	} else {
		logger.Debug("Could not determine executable path: %v", err)
	}

	return loadFiles(candidates)
}

func loadFiles(paths []string) []string {
	loaded := make([]string, 0, len(paths))
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			logger.Debug("No .env file at %s", path)
			continue
		}
		if err := godotenv.Load(path); err != nil {
			logger.Warn("Failed to load %s: %v", path, err)
			continue
		}
		logger.Info("Loaded environment from %s", path)
		loaded = append(loaded, path)
	}
	return loaded
}
