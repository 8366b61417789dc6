package page

import (
	"embed"
	"io/fs"
)

//go:embed defaults/*.cue
var defaults embed.FS

// Defaults returns the built-in page definitions, one or more pages per
// .cue file.
func Defaults() fs.FS {
	sub, err := fs.Sub(defaults, "defaults")
	if err != nil {
		panic(err)
	}
	return sub
}
