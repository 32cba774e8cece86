package api

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var (
	previewMarkdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
	previewPolicy   = bluemonday.UGCPolicy()
)

// preview renders a markdown replacement body to a sanitized HTML fragment
// for the edit form's preview pane.
func (h *handler) preview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Markdown string `json:"markdown"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	var buf bytes.Buffer
	if err := previewMarkdown.Convert([]byte(req.Markdown), &buf); err != nil {
		badRequest(w, "could not render markdown")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"html": previewPolicy.Sanitize(buf.String()),
	})
}
