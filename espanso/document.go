package espanso

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Document is one match file held in memory: the decoded entries plus the
// full YAML tree they came from. Saving rebuilds only the matches sequence;
// the rest of the tree (comments, key order, unknown top-level keys such as
// global_vars) is emitted exactly as loaded.
type Document struct {
	Path    string
	Matches []Match

	root       *yaml.Node // document node; nil when the file was empty
	hasMatches bool
}

// HasMatches reports whether the parsed document carries a matches key,
// even an empty or null one. Files without it are valid YAML but not
// Espanso match files.
func (d *Document) HasMatches() bool { return d.hasMatches }

// Load reads and parses the match file at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, data)
}

// Parse decodes data as the match file at path. A file that is empty or has
// no matches key yields a document with zero entries; malformed YAML, a
// non-mapping root, a non-sequence matches value, or a non-mapping entry
// yield ErrCorrupt.
func Parse(path string, data []byte) (*Document, error) {
	doc := &Document{Path: path}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		// Comment-only file: nothing parsed into the tree.
		return doc, nil
	}
	doc.root = &root

	mapping := root.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: document root is not a mapping", ErrCorrupt, path)
	}

	seq := findMatches(mapping)
	if seq == nil {
		return doc, nil
	}
	doc.hasMatches = true
	if seq.Kind != yaml.SequenceNode {
		if isNull(seq) {
			return doc, nil
		}
		return nil, fmt.Errorf("%w: %s: matches is not a sequence", ErrCorrupt, path)
	}

	doc.Matches = make([]Match, 0, len(seq.Content))
	for i, n := range seq.Content {
		if n.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %s: match %d is not a mapping", ErrCorrupt, path, i)
		}
		doc.Matches = append(doc.Matches, matchFromNode(n))
	}
	return doc, nil
}

// CreateNew writes a fresh match file at path holding the given entries.
// Fails with ErrExists if the path is already present.
func CreateNew(path string, matches ...Match) (*Document, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	doc := &Document{Path: path, Matches: matches}
	if err := doc.Save(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Save serializes the document and writes it atomically (temp file in the
// same directory, then rename). On failure the original file is intact.
func (d *Document) Save() error {
	out, err := d.Marshal()
	if err != nil {
		return err
	}
	return writeAtomic(d.Path, out)
}

// Marshal renders the document to YAML. Entries loaded from the file re-emit
// their original nodes, updated in place, so save(load(f)) with no mutations
// preserves comments, key order, and keys this editor does not model.
func (d *Document) Marshal() ([]byte, error) {
	root := d.ensureRoot()
	seq := ensureMatches(root.Content[0])

	content := make([]*yaml.Node, 0, len(d.Matches))
	for i := range d.Matches {
		content = append(content, d.Matches[i].syncNode())
	}
	seq.Content = content
	if len(content) == 0 {
		seq.Style = yaml.FlowStyle // emits "matches: []"
	} else if seq.Style == yaml.FlowStyle {
		seq.Style = 0
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWrite, d.Path, err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrWrite, d.Path, err)
	}
	return buf.Bytes(), nil
}

// ensureRoot returns the document's YAML tree, building a minimal one for
// documents that started from an empty or missing file.
func (d *Document) ensureRoot() *yaml.Node {
	if d.root == nil || len(d.root.Content) == 0 || d.root.Content[0].Kind != yaml.MappingNode {
		d.root = &yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{Kind: yaml.MappingNode, Tag: "!!map"},
			},
		}
	}
	return d.root
}

// findMatches returns the value node of the matches key, or nil.
func findMatches(mapping *yaml.Node) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "matches" {
			return mapping.Content[i+1]
		}
	}
	return nil
}

// ensureMatches returns the matches sequence node, appending the key or
// converting a null value (bare "matches:") as needed.
func ensureMatches(mapping *yaml.Node) *yaml.Node {
	if v := findMatches(mapping); v != nil {
		if v.Kind != yaml.SequenceNode {
			*v = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		}
		return v
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	mapping.Content = append(mapping.Content, keyNode("matches"), seq)
	return seq
}

func matchFromNode(n *yaml.Node) Match {
	m := Match{Type: PlainText, node: n}
	var replace, markdown string
	var hasMarkdown bool
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		switch k.Value {
		case "trigger":
			m.Trigger = scalarString(v)
		case "replace":
			replace = scalarString(v)
		case "markdown":
			markdown = scalarString(v)
			hasMarkdown = true
		case "word":
			m.Word = boolValue(v)
		case "propagate_case":
			m.PropagateCase = boolValue(v)
		}
	}
	if hasMarkdown {
		m.Type = Markdown
		m.Replace = markdown
	} else {
		m.Replace = replace
	}
	return m
}

// syncNode folds the entry's current field values back into its YAML node,
// building a fresh node for entries that never had one. Keys the editor does
// not own keep their place, comments included.
func (m *Match) syncNode() *yaml.Node {
	if m.node == nil {
		m.node = m.buildNode()
		return m.node
	}
	n := m.node
	setScalar(n, "trigger", m.Trigger)

	// The replacement body lives under "replace" or "markdown" depending on
	// the content type; flipping the type renames the key in place.
	want, other := m.Type.key(), PlainText.key()
	if m.Type != Markdown {
		other = Markdown.key()
	}
	if i := keyIndex(n, want); i >= 0 {
		updateString(n.Content[i+1], m.Replace)
		removeKey(n, other)
	} else if i := keyIndex(n, other); i >= 0 {
		n.Content[i].Value = want
		updateString(n.Content[i+1], m.Replace)
	} else {
		n.Content = append(n.Content, keyNode(want), stringNode(m.Replace))
	}

	setFlag(n, "word", m.Word)
	setFlag(n, "propagate_case", m.PropagateCase)
	return n
}

func (m *Match) buildNode() *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	n.Content = append(n.Content, keyNode("trigger"), stringNode(m.Trigger))
	n.Content = append(n.Content, keyNode(m.Type.key()), stringNode(m.Replace))
	if m.Word {
		n.Content = append(n.Content, keyNode("word"), boolNode(true))
	}
	if m.PropagateCase {
		n.Content = append(n.Content, keyNode("propagate_case"), boolNode(true))
	}
	return n
}

// ---- node helpers ----

func keyIndex(mapping *yaml.Node, name string) int {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == name {
			return i
		}
	}
	return -1
}

func setScalar(mapping *yaml.Node, name, value string) {
	if i := keyIndex(mapping, name); i >= 0 {
		updateString(mapping.Content[i+1], value)
		return
	}
	mapping.Content = append(mapping.Content, keyNode(name), stringNode(value))
}

// setFlag writes a boolean the way Espanso files conventionally do: the key
// is present only when true.
func setFlag(mapping *yaml.Node, name string, value bool) {
	i := keyIndex(mapping, name)
	switch {
	case value && i >= 0:
		v := mapping.Content[i+1]
		v.Kind = yaml.ScalarNode
		v.Tag = "!!bool"
		v.Value = "true"
		v.Style = 0
	case value:
		mapping.Content = append(mapping.Content, keyNode(name), boolNode(true))
	case i >= 0:
		removeKey(mapping, name)
	}
}

func removeKey(mapping *yaml.Node, name string) {
	if i := keyIndex(mapping, name); i >= 0 {
		mapping.Content = append(mapping.Content[:i], mapping.Content[i+2:]...)
	}
}

// updateString sets a scalar's value in place, keeping its comments and, for
// single-line values, its quoting style.
func updateString(n *yaml.Node, value string) {
	head, line, foot := n.HeadComment, n.LineComment, n.FootComment
	style := n.Style
	n.SetString(value)
	n.HeadComment, n.LineComment, n.FootComment = head, line, foot
	if n.Style == 0 && style != yaml.LiteralStyle && style != yaml.FoldedStyle {
		n.Style = style
	}
}

func keyNode(name string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: name}
}

func stringNode(value string) *yaml.Node {
	n := &yaml.Node{}
	n.SetString(value)
	return n
}

func boolNode(v bool) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v)}
}

func scalarString(n *yaml.Node) string {
	if n == nil {
		return ""
	}
	if n.Kind == yaml.ScalarNode {
		if isNull(n) {
			return ""
		}
		return n.Value
	}
	// Non-scalar bodies are rare; stringify so they at least display.
	b, err := yaml.Marshal(n)
	if err != nil {
		return ""
	}
	return string(bytes.TrimSuffix(b, []byte("\n")))
}

func boolValue(n *yaml.Node) bool {
	var b bool
	if n == nil || n.Decode(&b) != nil {
		return false
	}
	return b
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && (n.Tag == "!!null" || n.Value == "~" || n.Value == "null" || n.Value == "")
}

// writeAtomic writes to a temp file then renames it over path.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %s: %v", ErrWrite, path, err)
	}
	return nil
}
