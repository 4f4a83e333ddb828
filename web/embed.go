// Package web embeds the built operator frontend (dist/) and serves it as a
// single-page application. The UI runs on shop-floor tablets and browsers next
// to the press; everything it needs ships inside the server binary so no
// external asset host is required on the print-shop network.
//
// In development, point FRONTEND_URL at the Vite dev server instead.
package web

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// SPAHandler returns an http.Handler serving the embedded frontend. Static
// assets are served from dist/; any other path falls back to index.html for
// client-side routing. The index is served with no-store so operators always
// get the shell matching the running server after an upgrade.
func SPAHandler() http.Handler {
	subFS, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: failed to create sub filesystem: " + err.Error())
	}

	fileServer := http.FileServer(http.FS(subFS))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/")
		if path != "" && path != "index.html" {
			if f, err := subFS.Open(path); err == nil {
				if closeErr := f.Close(); closeErr != nil {
					slog.Debug("web: failed to close embedded file", "path", path, "error", closeErr)
				}
				fileServer.ServeHTTP(w, r)
				return
			}
		}

		// index.html itself, or SPA fallback for an unknown route.
		w.Header().Set("Cache-Control", "no-store")
		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}
