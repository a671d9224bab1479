// Package models defines the domain types for Ansuz.
package models

import "time"

// Record represents a parsed Markdown record in the vault.
type Record struct {
	Path     string         `json:"path"`
	TypePath string         `json:"type_path,omitempty"`
	Title    string         `json:"title,omitempty"`
	Attrs    map[string]any `json:"attrs,omitempty"`
	Body     string         `json:"body"`
	Checksum string         `json:"checksum"`
	File     FileMeta       `json:"file"`
}

// FileMeta carries filesystem metadata for a record, used by filter
// expressions and list output. Zero-valued fields mean the stat data
// was unavailable (e.g. the file vanished between listing and read).
type FileMeta struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Folder     string    `json:"folder"`
	Ext        string    `json:"ext"`
	Size       int64     `json:"size,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty"`
}

// RecordMeta is a lightweight representation returned by list operations.
type RecordMeta struct {
	Path     string   `json:"path"`
	Checksum string   `json:"checksum"`
	File     FileMeta `json:"file"`
}

// Stem returns the record's identifying name: the file base name
// without its extension.
func (m RecordMeta) Stem() string {
	name := m.File.Name
	if name == "" {
		return ""
	}
	if ext := m.File.Ext; ext != "" && len(name) > len(ext) {
		return name[:len(name)-len(ext)]
	}
	return name
}
