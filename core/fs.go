package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// Common constants
const (
	VecDirName = ".vec"
)

// FileExists checks if a file exists.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetVecRoot returns the root directory of the Vec repository.
// It searches for the .vec directory in the current and parent directories,
// or honors VEC_REPOSITORY_PATH when set.
func GetVecRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}

	startDir := currentDir

	if forcedRoot := os.Getenv("VEC_REPOSITORY_PATH"); forcedRoot != "" {
		vecDir := filepath.Join(forcedRoot, VecDirName)
		if FileExists(vecDir) {
			return forcedRoot, nil
		}
		return "", fmt.Errorf("VEC_REPOSITORY_PATH is set to '%s' but no repository found there", forcedRoot)
	}

	for {
		vecDir := filepath.Join(currentDir, VecDirName)
		if FileExists(vecDir) {
			return currentDir, nil
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir { // Reached root
			return "", fmt.Errorf("not a vec repository (or any of the parent directories): %s", startDir)
		}
		currentDir = parentDir
	}
}
