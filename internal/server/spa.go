package server

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// spaFileServer serves static files from an fs.FS and falls back to
// index.html for any path that isn't a real file, so client-side routes such
// as /customers?page=2 or /public/surveys/<token> load the app shell.
// Unknown paths under /api and /ws still 404.
func spaFileServer(assets fs.FS) http.Handler {
	fileServer := http.FileServerFS(assets)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ws/") {
			http.NotFound(w, r)
			return
		}

		name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
		if name == "" {
			name = "index.html"
		}

		if _, err := fs.Stat(assets, name); err != nil {
			r.URL.Path = "/"
		}

		fileServer.ServeHTTP(w, r)
	})
}
