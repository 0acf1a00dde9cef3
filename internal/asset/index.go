package asset

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultExtensions is the probe order for keys given without an extension.
var DefaultExtensions = []string{".png", ".bmp", ".jpg", ".PNG", ".BMP", ".JPG"}

// compressedSuffix marks a zstd-compressed source asset ("12.png.zst").
const compressedSuffix = ".zst"

// Index maps normalized texture keys to filesystem paths.
// Earlier directories win over later ones; within a directory the extension
// with the lower rank in the probe order wins.
type Index struct {
	entries map[string]indexEntry // key.lower() → entry
	rank    map[string]int        // ext.lower() → probe rank
}

type indexEntry struct {
	path string
	rank int
	dir  int
}

// BuildIndex walks dirs and records every file whose extension is in exts
// (optionally followed by ".zst"). Missing directories are skipped.
func BuildIndex(dirs []string, exts []string) *Index {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	rank := make(map[string]int, len(exts))
	for i, ext := range exts {
		lower := strings.ToLower(ext)
		if _, seen := rank[lower]; !seen {
			rank[lower] = i
		}
	}

	idx := &Index{entries: make(map[string]indexEntry), rank: rank}
	for d, dir := range dirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		filepath.WalkDir(dir, func(path string, e fs.DirEntry, err error) error {
			if err != nil || e.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			name := strings.TrimSuffix(filepath.ToSlash(rel), compressedSuffix)
			ext := strings.ToLower(filepath.Ext(name))
			r, ok := rank[ext]
			if !ok {
				return nil
			}
			key := normalizeKey(strings.TrimSuffix(name, filepath.Ext(name)))

			existing, exists := idx.entries[key]
			switch {
			case !exists:
			case d > existing.dir:
				return nil
			case d == existing.dir && r >= existing.rank:
				return nil
			}
			idx.entries[key] = indexEntry{path: path, rank: r, dir: d}
			return nil
		})
	}
	return idx
}

// ResolvePath returns the indexed path for key, or ("", false).
// Backslash separators and a trailing extension on key are ignored.
func (idx *Index) ResolvePath(key string) (string, bool) {
	if idx == nil {
		return "", false
	}
	k := filepath.ToSlash(strings.ReplaceAll(key, "\\", "/"))
	if ext := filepath.Ext(k); ext != "" {
		if _, known := idx.rank[strings.ToLower(ext)]; known {
			k = strings.TrimSuffix(k, ext)
		}
	}
	e, ok := idx.entries[normalizeKey(k)]
	return e.path, ok
}

// Len returns the number of indexed textures.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimPrefix(k, "./"))
}
