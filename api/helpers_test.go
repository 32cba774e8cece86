package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"matchbook/api"
	"matchbook/snippet"
)

const testBaseYML = `# base collection
matches:
  - trigger: ":date"
    replace: "2024-01-01"
  - trigger: ":sig"
    replace: "Best, Alice"
    word: true
`

const testWorkYML = `matches:
  - trigger: ":hello"
    replace: "Hello!"
`

type testServer struct {
	*httptest.Server
	dir string
	hub *api.Hub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "base.yml"), []byte(testBaseYML), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "work.yml"), []byte(testWorkYML), 0644); err != nil {
		t.Fatal(err)
	}

	static := fstest.MapFS{
		"index.html": &fstest.MapFile{Data: []byte("<!DOCTYPE html><title>matchbook</title>")},
		"edit.html":  &fstest.MapFile{Data: []byte("<!DOCTYPE html><title>edit</title>")},
	}

	hub := api.NewHub()
	router := api.RegisterRoutes(snippet.NewManager(dir), hub, static)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, dir: dir, hub: hub}
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var decoded map[string]any
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

// listBody fetches the aggregate listing.
func (s *testServer) listBody(t *testing.T, query string) map[string]any {
	t.Helper()
	resp, body := s.do(t, http.MethodGet, "/api/snippets"+query, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /api/snippets%s: expected 200, got %d", query, resp.StatusCode)
	}
	return body
}

func snippetTriggers(body map[string]any) []string {
	var out []string
	snippets, _ := body["snippets"].([]any)
	for _, raw := range snippets {
		s := raw.(map[string]any)
		out = append(out, s["trigger"].(string))
	}
	return out
}

func writeTestFile(dir, name, content string) error {
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0644)
}

// uploadYAML builds a multipart import request body.
func uploadYAML(t *testing.T, filename string, content []byte, fields map[string]string) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write(content)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}
