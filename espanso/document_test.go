package espanso_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/espanso"
)

// sample is a hand-written match file with the things users actually put in
// these files: comments, unmodeled keys, multiline bodies, both body kinds.
const sample = `# My personal snippets
# Managed by hand since 2021.
matches:
  # Expands to today's date
  - trigger: ":date"
    replace: "2024-01-01"
  - trigger: ":sig"
    label: Email signature
    replace: |-
      Best,
      Alice
    word: true
  - trigger: ":md"
    markdown: "**bold** text"
    propagate_case: true
`

func unifiedDiff(t *testing.T, want, got string) string {
	t.Helper()
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(want),
		B:        difflib.SplitLines(got),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	})
	require.NoError(t, err)
	return diff
}

func TestParseSample(t *testing.T) {
	doc, err := espanso.Parse("base.yml", []byte(sample))
	require.NoError(t, err)
	require.Len(t, doc.Matches, 3)

	assert.Equal(t, ":date", doc.Matches[0].Trigger)
	assert.Equal(t, "2024-01-01", doc.Matches[0].Replace)
	assert.Equal(t, espanso.PlainText, doc.Matches[0].Type)

	assert.Equal(t, ":sig", doc.Matches[1].Trigger)
	assert.Equal(t, "Best,\nAlice", doc.Matches[1].Replace)
	assert.True(t, doc.Matches[1].Word)

	assert.Equal(t, ":md", doc.Matches[2].Trigger)
	assert.Equal(t, espanso.Markdown, doc.Matches[2].Type)
	assert.Equal(t, "**bold** text", doc.Matches[2].Replace)
	assert.True(t, doc.Matches[2].PropagateCase)
}

// The round-trip contract: saving an unmodified document keeps every entry,
// every comment, the key order, and keys this editor does not model.
func TestRoundTripPreservesDocument(t *testing.T) {
	doc, err := espanso.Parse("base.yml", []byte(sample))
	require.NoError(t, err)

	first, err := doc.Marshal()
	require.NoError(t, err)

	for _, fragment := range []string{
		"# My personal snippets",
		"# Managed by hand since 2021.",
		"# Expands to today's date",
		"label: Email signature",
		"word: true",
		"propagate_case: true",
	} {
		assert.Contains(t, string(first), fragment)
	}
	// Key order inside the :sig entry: label was written before replace.
	assert.Less(t,
		strings.Index(string(first), "label: Email signature"),
		strings.Index(string(first), "Best,"))

	// A second load/save cycle must be byte-stable.
	doc2, err := espanso.Parse("base.yml", first)
	require.NoError(t, err)
	second, err := doc2.Marshal()
	require.NoError(t, err)
	if string(first) != string(second) {
		t.Fatalf("round-trip not stable:\n%s", unifiedDiff(t, string(first), string(second)))
	}
}

// Documents written by this editor must round-trip byte-identically.
func TestRoundTripCanonicalByteIdentity(t *testing.T) {
	path := filepath.Join(t.TempDir(), "canon.yml")
	_, err := espanso.CreateNew(path,
		espanso.Match{Trigger: ":a", Replace: "alpha"},
		espanso.Match{Trigger: ":b", Replace: "line one\nline two", Word: true},
		espanso.Match{Trigger: ":c", Replace: "# heading", Type: espanso.Markdown, PropagateCase: true},
	)
	require.NoError(t, err)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	doc, err := espanso.Load(path)
	require.NoError(t, err)
	require.NoError(t, doc.Save())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	if string(before) != string(after) {
		t.Fatalf("canonical document changed on save:\n%s", unifiedDiff(t, string(before), string(after)))
	}
}

func TestLoadSaveKeepsEntryFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "e.yml")
	want := espanso.Match{
		Trigger:       ":sig",
		Replace:       "Best,\nAlice",
		Type:          espanso.PlainText,
		Word:          true,
		PropagateCase: true,
	}
	_, err := espanso.CreateNew(path, want)
	require.NoError(t, err)

	doc, err := espanso.Load(path)
	require.NoError(t, err)
	require.Len(t, doc.Matches, 1)
	got := doc.Matches[0]
	assert.Equal(t, want.Trigger, got.Trigger)
	assert.Equal(t, want.Replace, got.Replace)
	assert.Equal(t, want.Type, got.Type)
	assert.Equal(t, want.Word, got.Word)
	assert.Equal(t, want.PropagateCase, got.PropagateCase)
}

func TestEditKeepsCommentsAndUnknownKeys(t *testing.T) {
	doc, err := espanso.Parse("base.yml", []byte(sample))
	require.NoError(t, err)

	doc.Matches[0] = doc.Matches[0].Merge(espanso.Match{
		Trigger: ":date",
		Replace: "2024-12-31",
		Type:    espanso.PlainText,
	})
	out, err := doc.Marshal()
	require.NoError(t, err)

	assert.Contains(t, string(out), "2024-12-31")
	assert.NotContains(t, string(out), "2024-01-01")
	assert.Contains(t, string(out), "# Expands to today's date")
	assert.Contains(t, string(out), "label: Email signature")

	// Reload: trigger unchanged, replacement updated.
	doc2, err := espanso.Parse("base.yml", out)
	require.NoError(t, err)
	assert.Equal(t, ":date", doc2.Matches[0].Trigger)
	assert.Equal(t, "2024-12-31", doc2.Matches[0].Replace)
}

func TestContentTypeFlipRenamesKey(t *testing.T) {
	doc, err := espanso.Parse("base.yml", []byte(sample))
	require.NoError(t, err)

	doc.Matches[0] = doc.Matches[0].Merge(espanso.Match{
		Trigger: ":date",
		Replace: "*today*",
		Type:    espanso.Markdown,
	})
	out, err := doc.Marshal()
	require.NoError(t, err)

	doc2, err := espanso.Parse("base.yml", out)
	require.NoError(t, err)
	assert.Equal(t, espanso.Markdown, doc2.Matches[0].Type)
	assert.Equal(t, "*today*", doc2.Matches[0].Replace)
	// The old body key must be gone from the entry, not duplicated.
	assert.Equal(t, 1, strings.Count(string(out), "*today*"))
}

func TestDeleteAllKeepsDocumentAndComments(t *testing.T) {
	doc, err := espanso.Parse("base.yml", []byte(sample))
	require.NoError(t, err)

	doc.Matches = nil
	out, err := doc.Marshal()
	require.NoError(t, err)

	assert.Contains(t, string(out), "# My personal snippets")
	assert.Contains(t, string(out), "matches: []")

	doc2, err := espanso.Parse("base.yml", out)
	require.NoError(t, err)
	assert.Empty(t, doc2.Matches)
}

func TestMultilineReplaceUsesBlockStyle(t *testing.T) {
	doc := &espanso.Document{Matches: []espanso.Match{
		{Trigger: ":sig", Replace: "Best,\nAlice"},
	}}
	out, err := doc.Marshal()
	require.NoError(t, err)
	assert.Contains(t, string(out), "replace: |")
}

func TestParseEmptyAndMissingMatches(t *testing.T) {
	for name, data := range map[string]string{
		"empty":        "",
		"whitespace":   "  \n\n",
		"comment only": "# nothing here yet\n",
		"no matches":   "global_vars:\n  - name: x\n    type: date\n",
		"null matches": "matches:\n",
	} {
		doc, err := espanso.Parse("f.yml", []byte(data))
		require.NoError(t, err, name)
		assert.Empty(t, doc.Matches, name)
	}
}

func TestHasMatches(t *testing.T) {
	cases := []struct {
		data string
		want bool
	}{
		{"matches: []\n", true},
		{"matches:\n", true},
		{"matches:\n  - trigger: \":a\"\n    replace: b\n", true},
		{"", false},
		{"# just a comment\n", false},
		{"global_vars:\n  - name: x\n    type: date\n", false},
	}
	for _, tc := range cases {
		doc, err := espanso.Parse("f.yml", []byte(tc.data))
		require.NoError(t, err, tc.data)
		assert.Equal(t, tc.want, doc.HasMatches(), "%q", tc.data)
	}
}

func TestParseCorrupt(t *testing.T) {
	for name, data := range map[string]string{
		"bad yaml":          "matches: [",
		"root not mapping":  "- just\n- a list\n",
		"matches scalar":    "matches: 42\n",
		"entry not mapping": "matches:\n  - just-a-string\n",
	} {
		_, err := espanso.Parse("f.yml", []byte(data))
		require.Error(t, err, name)
		assert.ErrorIs(t, err, espanso.ErrCorrupt, name)
	}
}

func TestCreateNewRefusesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.yml")
	_, err := espanso.CreateNew(path)
	require.NoError(t, err)
	_, err = espanso.CreateNew(path)
	assert.ErrorIs(t, err, espanso.ErrExists)
}

func TestSaveFailureReportsErrWrite(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	// Path nested under a regular file cannot be created.
	doc := &espanso.Document{
		Path:    filepath.Join(blocker, "nested.yml"),
		Matches: []espanso.Match{{Trigger: ":a", Replace: "b"}},
	}
	err := doc.Save()
	assert.ErrorIs(t, err, espanso.ErrWrite)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := espanso.Load(filepath.Join(t.TempDir(), "absent.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
