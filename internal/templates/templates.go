// Package templates holds the embedded HTML pages and static assets served
// by the web UI.
package templates

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed html/*.html static/*
var assetsFS embed.FS

// Load parses the embedded page templates. Templates are addressed by file
// base name, e.g. c.HTML(http.StatusOK, "signin.html", ...).
func Load() *template.Template {
	return template.Must(template.ParseFS(assetsFS, "html/*.html"))
}

// StaticFS returns the embedded static asset filesystem rooted at static/
func StaticFS() (fs.FS, error) {
	return fs.Sub(assetsFS, "static")
}
