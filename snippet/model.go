// Package snippet aggregates the match files under one Espanso match
// directory into a single addressable collection and implements every
// mutation the editor offers. Each operation is one load-mutate-save cycle
// per touched file; the Manager serializes them so two browser tabs degrade
// to last-save-wins rather than interleaved writes.
package snippet

import (
	"errors"

	"matchbook/espanso"
)

var (
	// ErrNotFound is returned when a file or trigger is unknown to the
	// managed directory.
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for entries that fail the one hard rule:
	// a trigger must be non-empty.
	ErrValidation = errors.New("validation failed")

	// ErrImport is returned when an external file cannot be brought into the
	// managed directory. The directory is left untouched.
	ErrImport = errors.New("import failed")
)

// Snippet is one match entry together with its source-file identity.
type Snippet struct {
	espanso.Match
	File  string `json:"file"`  // path relative to the match dir
	Label string `json:"label"` // display name of the source file
}

// FileInfo describes one managed match file.
type FileInfo struct {
	Path        string `json:"path"` // relative to the match dir
	Label       string `json:"label"`
	Count       int    `json:"count"`
	Fingerprint string `json:"fingerprint"` // xxh3 of the raw bytes
}

// FileError reports a file that could not be loaded. The file stays on disk
// and is excluded from the aggregate view; nothing else aborts.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Ref addresses one entry for move/export operations.
type Ref struct {
	File    string `json:"file"`
	Trigger string `json:"trigger"`
}
