package snippet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/xxh3"

	"matchbook/espanso"
)

// DefaultFile is where entries land when no target file is chosen.
const DefaultFile = "base.yml"

// Manager is the aggregate view over one match directory plus every mutation
// the editor performs on it. The directory is passed in at construction;
// nothing reads ambient global state.
type Manager struct {
	mu  sync.Mutex
	dir string
}

// NewManager returns a Manager rooted at the given match directory.
func NewManager(dir string) *Manager {
	return &Manager{dir: filepath.Clean(dir)}
}

// Dir returns the managed match directory.
func (m *Manager) Dir() string { return m.dir }

// List aggregates entries from every readable match file, in sorted-path
// order. An optional filter restricts the result to one source file. Files
// that fail to load are reported alongside the listing, never aborting it.
func (m *Manager) List(filter string) ([]Snippet, []FileError, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rels, err := m.matchFiles()
	if err != nil {
		return nil, nil, err
	}

	snippets := []Snippet{}
	fileErrs := []FileError{}
	for _, rel := range rels {
		if filter != "" && rel != filter {
			continue
		}
		doc, err := espanso.Load(filepath.Join(m.dir, rel))
		if err != nil {
			fileErrs = append(fileErrs, FileError{Path: rel, Error: err.Error()})
			continue
		}
		for _, match := range doc.Matches {
			snippets = append(snippets, Snippet{
				Match: match,
				File:  rel,
				Label: espanso.FileLabel(rel),
			})
		}
	}
	return snippets, fileErrs, nil
}

// SortAlphabetical orders snippets by trigger, case-insensitively. The sort
// is stable: equal triggers keep their original relative order.
func SortAlphabetical(snippets []Snippet) {
	sort.SliceStable(snippets, func(i, j int) bool {
		return strings.ToLower(snippets[i].Trigger) < strings.ToLower(snippets[j].Trigger)
	})
}

// Files lists every managed match file with its label, entry count, and an
// xxh3 fingerprint of the raw bytes. Unparseable files still appear (they
// exist and can be exported); their count is zero.
func (m *Manager) Files() ([]FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rels, err := m.matchFiles()
	if err != nil {
		return nil, err
	}

	infos := make([]FileInfo, 0, len(rels))
	for _, rel := range rels {
		info := FileInfo{Path: rel, Label: espanso.FileLabel(rel)}
		data, err := os.ReadFile(filepath.Join(m.dir, rel))
		if err == nil {
			info.Fingerprint = fmt.Sprintf("%016x", xxh3.Hash(data))
			if doc, err := espanso.Parse(rel, data); err == nil {
				info.Count = len(doc.Matches)
			}
		}
		infos = append(infos, info)
	}
	return infos, nil
}

// FileByPath loads the managed file at the given relative path. Paths
// outside the match directory or not present in it yield ErrNotFound.
func (m *Manager) FileByPath(rel string) (*espanso.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadRel(rel)
}

// Create appends entry to the named file, creating the file on demand. An
// empty target defaults to DefaultFile. Duplicate triggers are permitted;
// Espanso itself resolves them last-wins. Returns the file actually used.
func (m *Manager) Create(file string, entry espanso.Match) (string, error) {
	if strings.TrimSpace(entry.Trigger) == "" {
		return "", fmt.Errorf("%w: trigger must not be empty", ErrValidation)
	}
	if file == "" {
		file = DefaultFile
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	abs, err := m.absPath(file)
	if err != nil {
		return "", err
	}
	doc, err := espanso.Load(abs)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		doc = &espanso.Document{Path: abs}
	}
	doc.Matches = append(doc.Matches, entry)
	return file, doc.Save()
}

// Edit replaces the editable fields of the first entry matching trigger.
// The entry's YAML node rides along, so comments and unmodeled keys
// (vars, label, regex, ...) survive the edit.
func (m *Manager) Edit(file, trigger string, entry espanso.Match) error {
	if strings.TrimSpace(entry.Trigger) == "" {
		return fmt.Errorf("%w: trigger must not be empty", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadRel(file)
	if err != nil {
		return err
	}
	for i := range doc.Matches {
		if doc.Matches[i].Trigger == trigger {
			doc.Matches[i] = doc.Matches[i].Merge(entry)
			return doc.Save()
		}
	}
	return fmt.Errorf("%w: no entry with trigger %q in %s", ErrNotFound, trigger, file)
}

// Delete removes every entry matching trigger from the named file. If none
// match it returns ErrNotFound — retrying a completed delete reports the
// absence rather than silently succeeding. A file emptied by a delete keeps
// its document (matches becomes []), preserving any comments.
func (m *Manager) Delete(file, trigger string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	doc, err := m.loadRel(file)
	if err != nil {
		return err
	}
	kept := doc.Matches[:0]
	for _, match := range doc.Matches {
		if match.Trigger != trigger {
			kept = append(kept, match)
		}
	}
	if len(kept) == len(doc.Matches) {
		return fmt.Errorf("%w: no entry with trigger %q in %s", ErrNotFound, trigger, file)
	}
	doc.Matches = kept
	return doc.Save()
}

// Move transfers every entry matching trigger from one file to another.
// The destination is saved before the source: a failure between the two
// saves can leave the entry in both files, never in neither.
func (m *Manager) Move(fromFile, trigger, toFile string) error {
	if strings.TrimSpace(fromFile) == "" || strings.TrimSpace(toFile) == "" {
		return fmt.Errorf("%w: source and destination file names are required", ErrValidation)
	}
	if fromFile == toFile {
		return fmt.Errorf("%w: source and destination are the same file", ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	src, err := m.loadRel(fromFile)
	if err != nil {
		return err
	}

	var moved []espanso.Match
	kept := src.Matches[:0]
	for _, match := range src.Matches {
		if match.Trigger == trigger {
			moved = append(moved, match.Clone())
		} else {
			kept = append(kept, match)
		}
	}
	if len(moved) == 0 {
		return fmt.Errorf("%w: no entry with trigger %q in %s", ErrNotFound, trigger, fromFile)
	}

	destAbs, err := m.absPath(toFile)
	if err != nil {
		return err
	}
	dest, err := espanso.Load(destAbs)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		dest = &espanso.Document{Path: destAbs}
	}
	dest.Matches = append(dest.Matches, moved...)
	if err := dest.Save(); err != nil {
		return err
	}

	src.Matches = kept
	return src.Save()
}

// Import brings external YAML content into the managed directory. The data
// must parse as a match file and carry a matches key, otherwise ErrImport
// and the directory stays untouched. With mergeInto empty a new file is created under a name derived
// from filename (deduplicated name.yml, name_1.yml, ...); otherwise the
// entries are appended to the named managed file. Returns the file written.
func (m *Manager) Import(filename string, data []byte, mergeInto string) (string, error) {
	imported, err := espanso.Parse(filename, data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImport, err)
	}
	if !imported.HasMatches() {
		return "", fmt.Errorf("%w: %s: no matches key found", ErrImport, filename)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if mergeInto == "" {
		rel := m.dedupName(sanitizeName(filename))
		abs, err := m.absPath(rel)
		if err != nil {
			return "", err
		}
		// New file: keep the external document byte-for-byte.
		if err := writeAtomic(abs, data); err != nil {
			return "", err
		}
		return rel, nil
	}

	doc, err := m.loadRel(mergeInto)
	if err != nil {
		return "", err
	}
	for _, match := range imported.Matches {
		doc.Matches = append(doc.Matches, match.Clone())
	}
	if err := doc.Save(); err != nil {
		return "", err
	}
	return mergeInto, nil
}

// ImportFile is Import reading from a path outside the managed directory.
func (m *Manager) ImportFile(sourcePath, mergeInto string) (string, error) {
	data, err := os.ReadFile(sourcePath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrImport, err)
	}
	return m.Import(filepath.Base(sourcePath), data, mergeInto)
}

// ExportFile copies the managed file at rel, byte for byte, to destPath.
func (m *Manager) ExportFile(rel, destPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	abs, err := m.absPath(rel)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", espanso.ErrWrite, destPath, err)
	}
	return nil
}

// ExportSnippets writes the referenced entries into a fresh match file at
// destPath, carrying each entry's original YAML node (comments included).
func (m *Manager) ExportSnippets(refs []Ref, destPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := map[string]*espanso.Document{}
	var matches []espanso.Match
	for _, ref := range refs {
		doc, ok := docs[ref.File]
		if !ok {
			var err error
			doc, err = m.loadRel(ref.File)
			if err != nil {
				return err
			}
			docs[ref.File] = doc
		}
		found := false
		for _, match := range doc.Matches {
			if match.Trigger == ref.Trigger {
				matches = append(matches, match.Clone())
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: no entry with trigger %q in %s", ErrNotFound, ref.Trigger, ref.File)
		}
	}
	_, err := espanso.CreateNew(destPath, matches...)
	return err
}

// CreateFile creates an empty match file under a sanitized version of name.
func (m *Manager) CreateFile(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rel := sanitizeName(name)
	if rel == ".yml" {
		return "", fmt.Errorf("%w: file name must not be empty", ErrValidation)
	}
	abs, err := m.absPath(rel)
	if err != nil {
		return "", err
	}
	if _, err := espanso.CreateNew(abs); err != nil {
		return "", err
	}
	return rel, nil
}

// loadRel loads a managed file by relative path. Caller holds m.mu.
func (m *Manager) loadRel(rel string) (*espanso.Document, error) {
	abs, err := m.absPath(rel)
	if err != nil {
		return nil, err
	}
	doc, err := espanso.Load(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return doc, err
}

// absPath resolves rel under the match dir, rejecting traversal outside it.
func (m *Manager) absPath(rel string) (string, error) {
	abs := filepath.Join(m.dir, filepath.FromSlash(rel))
	if abs != m.dir && !strings.HasPrefix(abs, m.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, rel)
	}
	return abs, nil
}

// matchFiles walks the match dir for YAML files, relative paths in sorted
// order. Caller holds m.mu.
func (m *Manager) matchFiles() ([]string, error) {
	var rels []string
	err := filepath.WalkDir(m.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yml", ".yaml":
			rel, err := filepath.Rel(m.dir, path)
			if err != nil {
				return err
			}
			rels = append(rels, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(rels)
	return rels, nil
}

// dedupName returns rel, or rel with a _1, _2, ... suffix until the name is
// free in the match dir. Caller holds m.mu.
func (m *Manager) dedupName(rel string) string {
	stem := strings.TrimSuffix(rel, filepath.Ext(rel))
	candidate := rel
	for i := 1; ; i++ {
		if _, err := os.Stat(filepath.Join(m.dir, candidate)); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
		candidate = fmt.Sprintf("%s_%d.yml", stem, i)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// sanitizeName reduces a user- or upload-supplied file name to a safe flat
// .yml name inside the match dir.
func sanitizeName(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = unsafeNameChars.ReplaceAllString(stem, "-")
	stem = strings.Trim(stem, "-.")
	if ext != ".yml" && ext != ".yaml" {
		ext = ".yml"
	}
	return stem + ext
}

// writeAtomic writes to a temp file then renames it over path.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", espanso.ErrWrite, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", espanso.ErrWrite, path, err)
	}
	return nil
}
