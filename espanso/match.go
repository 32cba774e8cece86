// Package espanso reads and writes Espanso match files.
//
// The format is owned by Espanso: a YAML document whose top-level "matches"
// key holds a sequence of trigger/replacement entries. Users keep hand-written
// comments and extension keys (vars, label, regex, ...) in these files, so
// every write goes through the original YAML tree and only touches what the
// editor actually changed.
package espanso

import (
	"errors"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sentinel errors for match file and config directory handling.
var (
	// ErrConfigNotFound is returned when no Espanso config directory exists
	// and no override was given.
	ErrConfigNotFound = errors.New("espanso config directory not found")

	// ErrCorrupt is returned when a match file cannot be parsed as an
	// Espanso document. The wrapped message carries the path and cause.
	ErrCorrupt = errors.New("match file is corrupt")

	// ErrWrite is returned when a document cannot be persisted. The original
	// file is left intact.
	ErrWrite = errors.New("match file write failed")

	// ErrExists is returned when creating a file that is already present.
	ErrExists = errors.New("match file already exists")
)

// ContentType selects which Espanso key carries the replacement body.
type ContentType string

const (
	PlainText ContentType = "text"     // serialized under "replace"
	Markdown  ContentType = "markdown" // serialized under "markdown"
)

// key returns the Espanso field name the replacement body lives under.
func (t ContentType) key() string {
	if t == Markdown {
		return "markdown"
	}
	return "replace"
}

// Match is one trigger/replacement entry. The exported fields are the ones
// this editor models; anything else in the entry (vars, label, regex, ...)
// rides along on the original YAML node and is written back untouched.
type Match struct {
	Trigger       string      `json:"trigger"`
	Replace       string      `json:"replace"`
	Type          ContentType `json:"type"`
	Word          bool        `json:"word"`
	PropagateCase bool        `json:"propagate_case"`

	node *yaml.Node // original mapping node; nil for entries built in memory
}

// Merge returns a copy of m carrying v's editable fields. The underlying
// YAML node (comments, unmodeled keys) stays with the result.
func (m Match) Merge(v Match) Match {
	m.Trigger = v.Trigger
	m.Replace = v.Replace
	m.Type = v.Type
	m.Word = v.Word
	m.PropagateCase = v.PropagateCase
	return m
}

// Clone returns a deep copy whose YAML node no longer aliases m's. Use it
// when the same entry must live in two documents at once (export/copy).
func (m Match) Clone() Match {
	m.node = cloneNode(m.node)
	return m
}

// FileLabel returns the display name for a match file: the file stem, except
// Espanso package files ("package.yml") label as their parent directory.
func FileLabel(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if strings.EqualFold(stem, "package") {
		return filepath.Base(filepath.Dir(path))
	}
	return stem
}

func cloneNode(n *yaml.Node) *yaml.Node {
	if n == nil {
		return nil
	}
	cp := *n
	if len(n.Content) > 0 {
		cp.Content = make([]*yaml.Node, len(n.Content))
		for i, c := range n.Content {
			cp.Content[i] = cloneNode(c)
		}
	}
	return &cp
}
