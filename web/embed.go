// Package web carries the embedded assets for the portal: HTML
// templates, static files, and the schema migrations shared by all
// three binaries.
package web

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed all:templates all:static all:migrations
var content embed.FS

func sub(dir string) fs.FS {
	fsys, err := fs.Sub(content, dir)
	if err != nil {
		panic(err)
	}
	return fsys
}

// TemplateFS is rooted at the templates directory, so callers parse
// files by bare name.
func TemplateFS() fs.FS {
	return sub("templates")
}

func MigrationsFS() fs.FS {
	return sub("migrations")
}

// StaticHandler serves the bundled assets under /static/.
func StaticHandler() http.Handler {
	return http.StripPrefix("/static/", http.FileServer(http.FS(sub("static"))))
}
