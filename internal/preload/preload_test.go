package preload

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilerender/internal/asset"
	"tilerender/internal/decode"
	"tilerender/internal/gpu"
	"tilerender/internal/texture"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+3] = 200, 255
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func newCache(t *testing.T, dir string) (*texture.Cache, *gpu.Soft) {
	t.Helper()
	dev := gpu.NewSoft(0)
	loc := asset.NewFileLocator(asset.FileOptions{GraphicsDir: dir, ResourceDirs: []string{}})
	c := texture.New(dev, loc, decode.New(decode.ColorKeyOff, 0), texture.Options{Workers: 2, UploadBatch: 4})
	t.Cleanup(func() { _ = c.Close() })
	return c, dev
}

func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "1.png"), 4, 4)
	writePNG(t, filepath.Join(dir, "2.png"), 8, 2)
	writePNG(t, filepath.Join(dir, "3.png"), 1, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.png"), []byte("\x89PNG\r\n\x1a\nnope"), 0o644))
	return dir
}

func TestRun_Streaming(t *testing.T) {
	c, dev := newCache(t, fixtureDir(t))
	keys := []string{"1", "2", "3", "broken", "absent"}

	results, err := Run(context.Background(), Config{Cache: c, Keys: keys, FrameInterval: time.Millisecond})
	require.NoError(t, err)
	require.Len(t, results, len(keys))

	assert.True(t, results[0].Success)
	assert.Equal(t, [2]int{8, 2}, [2]int{results[1].Width, results[1].Height})
	assert.True(t, results[2].Success)
	assert.False(t, results[3].Success)
	assert.Contains(t, results[3].Error, "decode")
	assert.False(t, results[4].Success)
	assert.Contains(t, results[4].Error, "not found")

	// Three tiles plus White and Missing.
	assert.Equal(t, 5, dev.Live())

	h := c.Get("2")
	require.True(t, h.Ready())
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, dev.Sample(h.ID(), 0.5, 0.5))
}

func TestRun_Sync(t *testing.T) {
	c, _ := newCache(t, fixtureDir(t))

	results, err := Run(context.Background(), Config{Cache: c, Keys: []string{"1", "broken"}, Sync: true, FrameInterval: time.Millisecond})
	require.NoError(t, err)
	assert.True(t, results[0].Success)
	assert.False(t, results[1].Success)

	st := c.Stats()
	assert.Equal(t, uint64(1), st.Preloaded)
	assert.Equal(t, uint64(0), st.Submitted)
}

func TestRun_Canceled(t *testing.T) {
	c, _ := newCache(t, fixtureDir(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, Config{Cache: c, Keys: []string{"1"}, Sync: true})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestManifestRoundTrip(t *testing.T) {
	results := []Result{
		{Key: "1", Success: true, Width: 4, Height: 4},
		{Key: "absent", Error: "texture: absent: io: not found"},
	}
	path := filepath.Join(t.TempDir(), "manifest.json")
	require.NoError(t, WriteManifest(path, results))

	entries, err := ReadManifest(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, ManifestEntry{Key: "1", Status: "ready", Width: 4, Height: 4}, entries[0])
	assert.Equal(t, "missing", entries[1].Status)

	assert.Equal(t, []string{"absent"}, Keys(entries, "missing"))
	assert.Equal(t, []string{"1", "absent"}, Keys(entries, ""))

	_, err = ReadManifest(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}
