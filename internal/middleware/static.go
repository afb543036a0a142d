// Package middleware holds HTTP handlers shared by the hub's routes.
package middleware

import (
	"io/fs"
	"net/http"
	"os"
	"strings"
)

// StaticHandler serves regular files from a directory tree. Directories
// and paths outside the tree are not found.
type StaticHandler struct {
	fsys   fs.FS
	prefix string
}

// NewStaticHandler serves dir under the URL prefix, e.g. "/assets/".
func NewStaticHandler(dir, prefix string) *StaticHandler {
	return &StaticHandler{fsys: os.DirFS(dir), prefix: prefix}
}

func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.NotFound(w, r)
		return
	}

	name := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, h.prefix), "/")
	if !fs.ValidPath(name) || name == "." {
		http.NotFound(w, r)
		return
	}
	stat, err := fs.Stat(h.fsys, name)
	if err != nil || stat.IsDir() {
		http.NotFound(w, r)
		return
	}
	http.ServeFileFS(w, r, h.fsys, name)
}

// PageHandler serves one HTML file chosen per request from a directory.
type PageHandler struct {
	fsys   fs.FS
	choose func(*http.Request) string
}

// NewPageHandler serves the file named by choose from dir.
func NewPageHandler(dir string, choose func(*http.Request) string) *PageHandler {
	return &PageHandler{fsys: os.DirFS(dir), choose: choose}
}

// Page serves the fixed file name from dir.
func Page(dir, name string) *PageHandler {
	return NewPageHandler(dir, func(*http.Request) string { return name })
}

func (h *PageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.fsys, h.choose(r))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}
