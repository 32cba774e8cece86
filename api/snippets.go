package api

import (
	"encoding/json"
	"net/http"

	"matchbook/espanso"
	"matchbook/snippet"
)

// listResponse is the aggregate view the list page renders from: every
// readable entry, the managed files, and the files that failed to load.
type listResponse struct {
	Snippets []snippet.Snippet   `json:"snippets"`
	Files    []snippet.FileInfo  `json:"files"`
	Errors   []snippet.FileError `json:"errors"`
}

func (h *handler) listSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, fileErrs, err := h.manager.List(r.URL.Query().Get("file"))
	if err != nil {
		writeError(w, err)
		return
	}
	switch r.URL.Query().Get("sort") {
	case "az":
		snippet.SortAlphabetical(snippets)
	case "za":
		snippet.SortAlphabetical(snippets)
		for i, j := 0, len(snippets)-1; i < j; i, j = i+1, j-1 {
			snippets[i], snippets[j] = snippets[j], snippets[i]
		}
	}

	files, err := h.manager.Files()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Snippets: snippets, Files: files, Errors: fileErrs})
}

// snippetRequest is the body of create and edit calls.
type snippetRequest struct {
	File          string `json:"file"`
	Trigger       string `json:"trigger"` // edit only: the entry to replace
	NewTrigger    string `json:"newTrigger,omitempty"`
	Replace       string `json:"replace"`
	Type          string `json:"type"` // "text" or "markdown"
	Word          bool   `json:"word"`
	PropagateCase bool   `json:"propagate_case"`
}

func (req snippetRequest) match(trigger string) espanso.Match {
	contentType := espanso.PlainText
	if req.Type == string(espanso.Markdown) {
		contentType = espanso.Markdown
	}
	return espanso.Match{
		Trigger:       trigger,
		Replace:       req.Replace,
		Type:          contentType,
		Word:          req.Word,
		PropagateCase: req.PropagateCase,
	}
}

func (h *handler) createSnippet(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	file, err := h.manager.Create(req.File, req.match(req.Trigger))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": file})
}

func (h *handler) editSnippet(w http.ResponseWriter, r *http.Request) {
	var req snippetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	trigger := req.NewTrigger
	if trigger == "" {
		trigger = req.Trigger
	}
	if err := h.manager.Edit(req.File, req.Trigger, req.match(trigger)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": req.File})
}

func (h *handler) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	trigger := r.URL.Query().Get("trigger")
	if file == "" || trigger == "" {
		badRequest(w, "file and trigger are required")
		return
	}
	if err := h.manager.Delete(file, trigger); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"file": file})
}

func (h *handler) moveSnippet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From    string `json:"from"`
		Trigger string `json:"trigger"`
		To      string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := h.manager.Move(req.From, req.Trigger, req.To); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"from": req.From, "to": req.To})
}
