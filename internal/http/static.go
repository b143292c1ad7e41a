package http

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// spa serves built frontend files and falls back to index.html for client-side routes.
func (s *server) spa(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	clean := path.Clean("/" + r.URL.Path)
	file := filepath.Join(s.StaticDir, filepath.FromSlash(clean))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		http.ServeFile(w, r, file)
		return
	}
	index := filepath.Join(s.StaticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}
	http.ServeFile(w, r, index)
}
