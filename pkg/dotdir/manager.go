// Package dotdir manages the .engram/ and ~/.engram directories.
//
// The dotdir holds the config.toml, the SQLite database, the
// content-addressed attachments directory, and per-engine data
// directories. A project-local .engram/ takes precedence over the
// home directory one.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the engram directory.
	dirName = ".engram"

	// AttachmentsDir is the attachments subdirectory name.
	AttachmentsDir = "attachments"

	// EnginesDir is the per-engine data subdirectory name.
	EnginesDir = "engines"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .engram/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.engram/ dir
//  3. Home ~/.engram/ dir
//  4. If none found, attempt to create ~/.engram/ dir
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating engram directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// AttachmentsPath returns the attachments directory under the resolved
// dotdir, creating it if needed.
func (m *Manager) AttachmentsPath(overrideDir string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(target, AttachmentsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating attachments directory %s: %w", dir, err)
	}

	return dir, nil
}

// EngineDataPath returns the data directory for a named engine under the
// resolved dotdir, creating it if needed.
func (m *Manager) EngineDataPath(overrideDir, engine string) (string, error) {
	target, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(target, EnginesDir, engine)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating engine data directory %s: %w", dir, err)
	}

	return dir, nil
}

// localDirExists checks whether a .engram/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
