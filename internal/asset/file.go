package asset

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// DefaultResourceDirs are searched after the configured graphics directory.
var DefaultResourceDirs = []string{
	filepath.Join("resources", "graphics"),
	filepath.Join("resources", "gui"),
	"resources",
}

// DefaultEmbeddedRoots are searched inside the embedded filesystem last.
var DefaultEmbeddedRoots = []string{"graphics", "gui", "."}

// FileOptions configures a FileLocator.
type FileOptions struct {
	// GraphicsDir is searched first. Empty means none.
	GraphicsDir string
	// ResourceDirs follow GraphicsDir. Nil means DefaultResourceDirs.
	ResourceDirs []string
	// Extensions is the probe order for bare keys. Nil means DefaultExtensions.
	Extensions []string
	// Embedded is the last-resort filesystem (usually an embed.FS).
	Embedded fs.FS
	// EmbeddedRoots are directories inside Embedded. Nil means DefaultEmbeddedRoots.
	EmbeddedRoots []string
	// Index enables a stem index over the search directories, built once at
	// construction and on Reindex. Lookups that miss the index still probe.
	Index bool
}

// FileLocator resolves texture keys against local directories and an
// optional embedded filesystem.
type FileLocator struct {
	dirs  []string
	exts  []string
	emb   fs.FS
	roots []string

	useIndex bool
	index    atomic.Pointer[Index]
}

// NewFileLocator creates a locator from opts.
func NewFileLocator(opts FileOptions) *FileLocator {
	l := &FileLocator{
		exts:     opts.Extensions,
		emb:      opts.Embedded,
		roots:    opts.EmbeddedRoots,
		useIndex: opts.Index,
	}
	if len(l.exts) == 0 {
		l.exts = DefaultExtensions
	}
	if l.roots == nil {
		l.roots = DefaultEmbeddedRoots
	}
	if opts.GraphicsDir != "" {
		l.dirs = append(l.dirs, opts.GraphicsDir)
	}
	if opts.ResourceDirs == nil {
		l.dirs = append(l.dirs, DefaultResourceDirs...)
	} else {
		l.dirs = append(l.dirs, opts.ResourceDirs...)
	}
	if l.useIndex {
		l.Reindex()
	}
	return l
}

// Reindex rebuilds the stem index. Safe to call while Locate is running.
func (l *FileLocator) Reindex() int {
	idx := BuildIndex(l.dirs, l.exts)
	l.index.Store(idx)
	return idx.Len()
}

// Dirs returns the directory search order.
func (l *FileLocator) Dirs() []string {
	return append([]string(nil), l.dirs...)
}

// Locate returns the raw bytes for key. It returns an error wrapping
// ErrNotFound when no candidate exists, and a read error when a candidate
// exists but cannot be read (locked file, permissions).
func (l *FileLocator) Locate(ctx context.Context, key string) ([]byte, error) {
	name := filepath.FromSlash(strings.ReplaceAll(key, "\\", "/"))
	if name == "" || !filepath.IsLocal(name) {
		return nil, fmt.Errorf("asset: %q: %w", key, ErrInvalidKey)
	}

	if l.useIndex {
		if p, ok := l.index.Load().ResolvePath(key); ok {
			data, err := readFile(p)
			if err == nil || !errors.Is(err, fs.ErrNotExist) {
				return data, err
			}
		}
	}

	candidates := l.candidates(name)
	for _, dir := range l.dirs {
		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			data, err := readFirst(filepath.Join(dir, c))
			if err == nil || !errors.Is(err, fs.ErrNotExist) {
				return data, err
			}
		}
	}

	if l.emb != nil {
		for _, root := range l.roots {
			for _, c := range candidates {
				data, err := fs.ReadFile(l.emb, path.Join(root, filepath.ToSlash(c)))
				if err == nil {
					return data, nil
				}
			}
		}
	}

	return nil, fmt.Errorf("asset: %q in %d dirs: %w", key, len(l.dirs), ErrNotFound)
}

// candidates lists file names to probe for name, in order.
func (l *FileLocator) candidates(name string) []string {
	ext := filepath.Ext(name)
	if ext != "" && l.known(ext) {
		out := []string{name}
		if swapped := swapCase(ext); swapped != ext {
			out = append(out, strings.TrimSuffix(name, ext)+swapped)
		}
		return out
	}
	out := make([]string, len(l.exts))
	for i, e := range l.exts {
		out[i] = name + e
	}
	return out
}

func (l *FileLocator) known(ext string) bool {
	for _, e := range l.exts {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// swapCase maps ".png" to ".PNG" and anything else to lower case.
func swapCase(ext string) string {
	if lower := strings.ToLower(ext); lower != ext {
		return lower
	}
	return strings.ToUpper(ext)
}

// readFirst reads p, falling back to its zstd-compressed sibling.
func readFirst(p string) ([]byte, error) {
	data, err := readFile(p)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return data, err
	}
	return readFile(p + compressedSuffix)
}

func readFile(p string) ([]byte, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("asset: read %s: %w", p, err)
	}
	if strings.HasSuffix(p, compressedSuffix) {
		data, err := decompress(raw)
		if err != nil {
			return nil, fmt.Errorf("asset: decompress %s: %w", p, err)
		}
		return data, nil
	}
	return raw, nil
}
