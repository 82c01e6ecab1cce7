package webui

import (
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
)

//go:embed assets
var assetFS embed.FS

var allowedExtensions = map[string]bool{
	".css": true, ".js": true,
	".png": true, ".svg": true, ".ico": true,
}

func (ui *WebUI) assetsHandler(w http.ResponseWriter, r *http.Request) {
	fileName := filepath.Base(r.URL.Path)

	ext := strings.ToLower(filepath.Ext(fileName))
	if !allowedExtensions[ext] {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	// Ensure no path traversal attempts
	if strings.Contains(fileName, "..") || strings.ContainsAny(fileName, `/\`) {
		http.Error(w, "Invalid file name", http.StatusBadRequest)
		return
	}

	name := "assets/" + fileName
	if !fs.ValidPath(name) {
		slog.Warn("invalid asset path blocked", "path", r.URL.Path)
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	stat, err := fs.Stat(assetFS, name)
	if err != nil || stat.IsDir() {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFileFS(w, r, assetFS, name)
}
