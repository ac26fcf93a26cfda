// Package storage defines the notes-directory file-system abstraction.
package storage

import "github.com/starford/noteban/internal/models"

// Provider is the interface for note file operations. All paths are
// relative to the notes root and use forward slashes.
type Provider interface {
	// List returns metadata for every .md file under dir, recursively.
	// Hidden directories are skipped.
	List(dir string) ([]models.FileMeta, error)
	// ListDirs returns the relative paths of every directory under dir,
	// recursively, excluding hidden directories and dir itself.
	ListDirs(dir string) ([]string, error)
	// Stat returns metadata for a single file.
	Stat(path string) (models.FileMeta, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Move renames oldPath to newPath; it serves files and directories.
	Move(oldPath, newPath string) error
	// MkdirAll creates a directory (and parents) under the root.
	MkdirAll(dir string) error
	// DeleteDir removes a directory and everything beneath it.
	DeleteDir(dir string) error
	// Root returns the absolute path of the notes root.
	Root() string
}
