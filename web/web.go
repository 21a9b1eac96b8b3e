// Package web holds the embedded static assets and HTML templates.
package web

import "embed"

//go:embed templates/*.html
var TemplateFiles embed.FS
