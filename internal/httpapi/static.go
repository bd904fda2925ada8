package httpapi

import (
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// mountFrontend serves index.html at / and the directory under /frontend/.
func mountFrontend(r chi.Router, dir string) {
	if dir == "" {
		return
	}
	fs := http.StripPrefix("/frontend/", http.FileServer(http.Dir(dir)))
	r.Get("/frontend/*", fs.ServeHTTP)
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, filepath.Join(dir, "index.html"))
	})
}
