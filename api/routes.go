// Package api is the HTTP surface of the editor: a JSON API consumed by the
// embedded frontend, plus the pages and assets themselves. Handlers are thin
// glue over snippet.Manager; every error kind maps to an HTTP status via
// errors.Is.
package api

import (
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"matchbook/espanso"
	"matchbook/snippet"
)

func RegisterRoutes(manager *snippet.Manager, hub *Hub, staticFS fs.FS) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := &handler{manager: manager, hub: hub, exports: newExportStore()}

	// Snippets
	r.Get("/api/snippets", h.listSnippets)
	r.Post("/api/snippets", h.createSnippet)
	r.Put("/api/snippets", h.editSnippet)
	r.Delete("/api/snippets", h.deleteSnippet)
	r.Post("/api/snippets/move", h.moveSnippet)

	// Files
	r.Get("/api/files", h.listFiles)
	r.Post("/api/files", h.createFile)
	r.Post("/api/files/import", h.importFile)
	r.Post("/api/files/export", h.exportFile)

	// Export downloads
	r.Post("/api/exports", h.exportSnippets)
	r.Get("/api/exports/{id}", h.downloadExport)

	// Markdown preview for the edit form
	r.Post("/api/preview", h.preview)

	// OS pass-through: reveal a managed path in the file manager
	r.Post("/api/open-folder", h.openFolder)

	// Change stream for open tabs
	r.Get("/api/events", h.handleEvents)

	// Static sub-FS: strip the "static/" prefix present in the embed.FS.
	// In tests staticFS is already rooted, so probe index.html to detect it.
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		staticSub = staticFS
	} else if _, statErr := fs.Stat(staticSub, "index.html"); statErr != nil {
		staticSub = staticFS
	}

	// Serve HTML pages by reading from the FS directly.
	// Using http.FileServer with a path ending in "index.html" triggers
	// Go's built-in redirect to "./" — avoid that by reading the file manually.
	r.Get("/", serveFile(staticSub, "index.html"))
	r.Get("/edit", serveFile(staticSub, "edit.html"))

	fileServer := http.FileServer(http.FS(staticSub))
	r.Get("/css/*", fileServer.ServeHTTP)
	r.Get("/js/*", fileServer.ServeHTTP)

	return r
}

// serveFile returns a handler that reads a single file from fsys and sends it.
func serveFile(fsys fs.FS, name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(content)
	}
}

type handler struct {
	manager *snippet.Manager
	hub     *Hub
	exports *exportStore
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy to HTTP statuses and sends the message
// as a JSON body. Nothing here is fatal to the process.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, snippet.ErrValidation):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, snippet.ErrNotFound), errors.Is(err, espanso.ErrConfigNotFound):
		status = http.StatusNotFound
	case errors.Is(err, espanso.ErrExists):
		status = http.StatusConflict
	case errors.Is(err, espanso.ErrCorrupt), errors.Is(err, snippet.ErrImport):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
