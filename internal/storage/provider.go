// Package storage defines the vault file-system abstraction.
package storage

import "github.com/starford/ansuz/internal/models"

// DirEntry is one shallow directory listing entry.
type DirEntry struct {
	Name  string
	IsDir bool
}

// Provider is the interface for vault file operations. All paths are
// relative to the vault root and use forward slashes.
type Provider interface {
	// List walks dir recursively and returns metadata for every .md file.
	// A missing directory yields an empty listing, not an error.
	List(dir string) ([]models.RecordMeta, error)
	// ListShallow returns the immediate entries of dir. A missing directory
	// yields an empty listing, not an error.
	ListShallow(dir string) ([]DirEntry, error)
	// Read returns the raw bytes of the file at path.
	Read(path string) ([]byte, error)
	// Write atomically writes content to path, creating parent directories.
	Write(path string, content []byte) error
	// Delete removes the file at path.
	Delete(path string) error
	// Exists reports whether path names an existing file or directory.
	Exists(path string) bool
}
