package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"matchbook/snippet"
)

// exportStore keeps the files staged for download, keyed by a one-time
// token: a successful download consumes the entry and removes the staged
// temp file. Anything never downloaded vanishes with the process.
type exportStore struct {
	mu    sync.Mutex
	files map[string]stagedExport
}

type stagedExport struct {
	name string // download filename
	path string // staged temp file
}

func newExportStore() *exportStore {
	return &exportStore{files: map[string]stagedExport{}}
}

func (s *exportStore) put(name, path string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.files[id] = stagedExport{name: name, path: path}
	s.mu.Unlock()
	return id
}

// take removes and returns the staged export for id.
func (s *exportStore) take(id string) (stagedExport, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.files[id]
	if ok {
		delete(s.files, id)
	}
	return e, ok
}

// exportFile stages a whole managed file for download (plain byte copy).
func (h *handler) exportFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File string `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if req.File == "" {
		badRequest(w, "file is required")
		return
	}
	staged := filepath.Join(os.TempDir(), "matchbook-export-"+uuid.NewString()+".yml")
	if err := h.manager.ExportFile(req.File, staged); err != nil {
		writeError(w, err)
		return
	}
	id := h.exports.put(filepath.Base(req.File), staged)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": filepath.Base(req.File)})
}

// exportSnippets stages a fresh match file holding the selected entries.
func (h *handler) exportSnippets(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string        `json:"name"`
		Refs []snippet.Ref `json:"refs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if len(req.Refs) == 0 {
		badRequest(w, "refs is required")
		return
	}
	name := req.Name
	if name == "" {
		name = "export.yml"
	}
	staged := filepath.Join(os.TempDir(), "matchbook-export-"+uuid.NewString()+".yml")
	if err := h.manager.ExportSnippets(req.Refs, staged); err != nil {
		writeError(w, err)
		return
	}
	id := h.exports.put(name, staged)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id, "name": name})
}

func (h *handler) downloadExport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	staged, ok := h.exports.take(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "export not found"})
		return
	}
	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", staged.name))
	http.ServeFile(w, r, staged.path)
	os.Remove(staged.path)
}
