package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Attachments is a content-addressed blob directory. Each file is named
// by the first 16 hex chars of the sha256 of its bytes plus the original
// name, so byte-identical content always resolves to the same path and
// writes are naturally idempotent.
type Attachments struct {
	root string
}

// NewAttachments creates an attachment store rooted at the given directory.
// The directory is created lazily on first write.
func NewAttachments(root string) *Attachments {
	return &Attachments{root: root}
}

// Root returns the attachment root directory.
func (a *Attachments) Root() string { return a.root }

// Save writes data into the attachment store under a content-addressed
// name derived from name's base. Returns the path relative to the root
// and the absolute path. Saving identical bytes twice writes once.
func (a *Attachments) Save(name string, data []byte) (string, string, error) {
	if name == "" {
		return "", "", &InvalidArgumentError{Reason: "attachment name is required"}
	}

	if err := os.MkdirAll(a.root, 0o755); err != nil {
		return "", "", &StorageError{Op: "attachment mkdir", Err: err}
	}

	sum := sha256.Sum256(data)
	rel := hex.EncodeToString(sum[:])[:16] + "-" + filepath.Base(name)
	abs := filepath.Join(a.root, rel)

	// Check-exists-before-write: identical content maps to an identical
	// path, so a concurrent duplicate write is a harmless no-op.
	if _, err := os.Stat(abs); err == nil {
		return rel, abs, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", "", &StorageError{Op: "attachment stat", Err: err}
	}

	if err := os.WriteFile(abs, data, 0o644); err != nil {
		return "", "", &StorageError{Op: "attachment write", Err: err}
	}

	return rel, abs, nil
}

// SaveLocal reads a file from an absolute local path and saves it into
// the attachment store. Relative paths are rejected: resolution would
// depend on the server's working directory at call time, not the
// caller's.
func (a *Attachments) SaveLocal(path string) (string, string, error) {
	if !filepath.IsAbs(path) {
		return "", "", &InvalidArgumentError{
			Reason: fmt.Sprintf("expected absolute path, got %q", path),
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", "", &NotFoundError{Ref: path}
	}
	if err != nil {
		return "", "", &StorageError{Op: "attachment read", Err: err}
	}

	return a.Save(filepath.Base(path), data)
}
