// Package resources embeds the fallback graphics shipped inside the binaries.
// They are searched after every configured directory.
package resources

import (
	"embed"
	"io/fs"
)

//go:embed graphics
var graphics embed.FS

// FS returns the embedded tree. Files live under graphics/, which the asset
// locator searches by default.
func FS() fs.FS {
	return graphics
}
