package spacetraveling

import (
	"embed"
	"io/fs"
)

// EmbeddedAssets contains static assets shipped with the app:
// style.css and logo.svg.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// embeddedNames lists the files under embedded/.
func embeddedNames() []string {
	entries, err := fs.ReadDir(EmbeddedAssets, "embedded")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}
