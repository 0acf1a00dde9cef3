package asset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, p string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
}

func TestBuildIndex_Priority(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()

	writeFile(t, filepath.Join(first, "12.jpg"), []byte("first-jpg"))
	writeFile(t, filepath.Join(first, "12.png"), []byte("first-png"))
	writeFile(t, filepath.Join(second, "12.png"), []byte("second-png"))
	writeFile(t, filepath.Join(second, "gui", "Button.BMP"), []byte("bmp"))
	writeFile(t, filepath.Join(second, "notes.txt"), []byte("ignored"))

	idx := BuildIndex([]string{first, second, filepath.Join(first, "missing")}, nil)
	require.Equal(t, 2, idx.Len())

	p, ok := idx.ResolvePath("12")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(first, "12.png"), p)

	p, ok = idx.ResolvePath(`GUI\button.png`)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(second, "gui", "Button.BMP"), p)

	_, ok = idx.ResolvePath("notes")
	assert.False(t, ok)
}

func TestFileLocator_ProbeOrder(t *testing.T) {
	gfx := t.TempDir()
	res := t.TempDir()

	writeFile(t, filepath.Join(gfx, "7.BMP"), []byte("gfx-bmp"))
	writeFile(t, filepath.Join(res, "7.png"), []byte("res-png"))
	writeFile(t, filepath.Join(res, "8.jpg"), []byte("res-jpg"))

	l := NewFileLocator(FileOptions{GraphicsDir: gfx, ResourceDirs: []string{res}})
	ctx := context.Background()

	data, err := l.Locate(ctx, "7")
	require.NoError(t, err)
	assert.Equal(t, "gfx-bmp", string(data))

	data, err = l.Locate(ctx, "8")
	require.NoError(t, err)
	assert.Equal(t, "res-jpg", string(data))

	_, err = l.Locate(ctx, "9")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileLocator_ExplicitExtensionCaseSwap(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "gui", "panel.PNG"), []byte("panel"))

	l := NewFileLocator(FileOptions{GraphicsDir: dir, ResourceDirs: []string{}})
	data, err := l.Locate(context.Background(), "gui/panel.png")
	require.NoError(t, err)
	assert.Equal(t, "panel", string(data))
}

func TestFileLocator_EmbeddedFallback(t *testing.T) {
	emb := fstest.MapFS{
		"gui/logo.png":    {Data: []byte("logo")},
		"graphics/42.bmp": {Data: []byte("forty-two")},
	}
	l := NewFileLocator(FileOptions{ResourceDirs: []string{}, Embedded: emb})
	ctx := context.Background()

	data, err := l.Locate(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "forty-two", string(data))

	data, err = l.Locate(ctx, "logo.png")
	require.NoError(t, err)
	assert.Equal(t, "logo", string(data))
}

func TestFileLocator_RejectsEscapingKeys(t *testing.T) {
	l := NewFileLocator(FileOptions{ResourceDirs: []string{t.TempDir()}})

	for _, key := range []string{"", "../secret", "/etc/passwd"} {
		_, err := l.Locate(context.Background(), key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestFileLocator_Compressed(t *testing.T) {
	dir := t.TempDir()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	payload := []byte("compressed pixels, compressed pixels, compressed pixels")
	writeFile(t, filepath.Join(dir, "300.png.zst"), enc.EncodeAll(payload, nil))
	require.NoError(t, enc.Close())

	for _, indexed := range []bool{false, true} {
		l := NewFileLocator(FileOptions{GraphicsDir: dir, ResourceDirs: []string{}, Index: indexed})
		data, err := l.Locate(context.Background(), "300")
		require.NoError(t, err)
		assert.Equal(t, payload, data)
	}
}

func TestFileLocator_ReindexPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	l := NewFileLocator(FileOptions{GraphicsDir: dir, ResourceDirs: []string{}, Index: true})

	_, err := l.Locate(context.Background(), "5")
	require.ErrorIs(t, err, ErrNotFound)

	writeFile(t, filepath.Join(dir, "5.png"), []byte("late"))

	// Probing finds it even before the index is rebuilt.
	data, err := l.Locate(context.Background(), "5")
	require.NoError(t, err)
	assert.Equal(t, "late", string(data))
	assert.Equal(t, 1, l.Reindex())
}

func TestFileLocator_CanceledContext(t *testing.T) {
	l := NewFileLocator(FileOptions{ResourceDirs: []string{t.TempDir()}})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Locate(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

type stubSource struct {
	data []byte
	err  error
	hits int
}

func (s *stubSource) Locate(context.Context, string) ([]byte, error) {
	s.hits++
	return s.data, s.err
}

func TestChain(t *testing.T) {
	miss := &stubSource{err: ErrNotFound}
	hit := &stubSource{data: []byte("x")}
	never := &stubSource{data: []byte("y")}

	data, err := Chain{miss, hit, never}.Locate(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
	assert.Equal(t, 0, never.hits)

	locked := &stubSource{err: errors.New("sharing violation")}
	_, err = Chain{locked, hit}.Locate(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = Chain{miss}.Locate(context.Background(), "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestObjectLocator_Keys(t *testing.T) {
	l := NewObjectLocatorFromClient(nil, "assets", "tiles", nil)

	assert.Equal(t, []string{
		"tiles/12.png", "tiles/12.bmp", "tiles/12.jpg",
		"tiles/12.PNG", "tiles/12.BMP", "tiles/12.JPG",
	}, l.objectKeys("12"))
	assert.Equal(t, []string{"tiles/gui/a.png"}, l.objectKeys(`gui\a.png`))
	assert.Equal(t, []string{"tiles/x.png"}, l.objectKeys("../x.png"))
}

func TestNewObjectLocator_Validates(t *testing.T) {
	_, err := NewObjectLocator(ObjectOptions{Bucket: "b"})
	require.Error(t, err)

	l, err := NewObjectLocator(ObjectOptions{Endpoint: "localhost:9000", Bucket: "b"})
	require.NoError(t, err)
	assert.NotNil(t, l)
}
