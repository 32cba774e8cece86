package api

import (
	"encoding/json"
	"io"
	"net/http"

	"matchbook/snippet"
	"matchbook/sysopen"
)

func (h *handler) listFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.manager.Files()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]snippet.FileInfo{"files": files})
}

func (h *handler) createFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	rel, err := h.manager.CreateFile(req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": rel})
}

// importFile accepts a multipart upload. Mode "new" (default) creates a
// fresh managed file under a deduplicated name; mode "merge" appends the
// uploaded entries to the file named in the "target" field.
func (h *handler) importFile(w http.ResponseWriter, r *http.Request) {
	const maxUpload = 4 << 20
	if err := r.ParseMultipartForm(maxUpload); err != nil {
		badRequest(w, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file field")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUpload))
	if err != nil {
		badRequest(w, "could not read upload")
		return
	}

	mergeInto := ""
	if r.FormValue("mode") == "merge" {
		mergeInto = r.FormValue("target")
		if mergeInto == "" {
			badRequest(w, "merge mode requires a target file")
			return
		}
	}
	rel, err := h.manager.Import(header.Filename, data, mergeInto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": rel})
}

// openFolder reveals the match dir (or a file inside it) in the OS file
// manager. Pure pass-through, no core logic.
func (h *handler) openFolder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		File string `json:"file"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	path := h.manager.Dir()
	if req.File != "" {
		doc, err := h.manager.FileByPath(req.File)
		if err != nil {
			writeError(w, err)
			return
		}
		path = doc.Path
	}
	if err := sysopen.Reveal(path); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}
