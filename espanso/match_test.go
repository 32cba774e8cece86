package espanso_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/espanso"
)

func TestFileLabel(t *testing.T) {
	assert.Equal(t, "work", espanso.FileLabel("work.yml"))
	assert.Equal(t, "emails", espanso.FileLabel("sub/emails.yaml"))
	// Espanso package convention: package.yml files label as their parent.
	assert.Equal(t, "greek-letters", espanso.FileLabel("packages/greek-letters/package.yml"))
}

// A cloned entry must not share its YAML node with the original: mutating
// one through a save must not leak into the other.
func TestCloneDetachesNode(t *testing.T) {
	doc, err := espanso.Parse("f.yml", []byte("matches:\n  - trigger: \":a\"\n    replace: one\n    label: keepme\n"))
	require.NoError(t, err)

	clone := doc.Matches[0].Clone()
	doc.Matches[0] = doc.Matches[0].Merge(espanso.Match{Trigger: ":a", Replace: "changed"})
	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "changed")

	other := &espanso.Document{Matches: []espanso.Match{clone}}
	out2, err := other.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out2), "one")
	assert.Contains(t, string(out2), "label: keepme")
	assert.NotContains(t, string(out2), "changed")
}
