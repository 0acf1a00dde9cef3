package gpu

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
	"github.com/gogpu/wgpu/hal/software"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilerender/internal/decode"
	"tilerender/internal/texture"
)

func openHAL(t *testing.T, backend hal.Backend) *HAL {
	t.Helper()
	d, err := OpenHAL(backend, 0)
	require.NoError(t, err)
	t.Cleanup(d.Close)
	return d
}

func TestHAL_CreateViewDestroy(t *testing.T) {
	d := openHAL(t, noop.API{})

	id, err := d.CreateTexture(texture.TextureDesc{Label: "a", Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.True(t, d.TextureValid(id))
	assert.Equal(t, 1, d.Live())

	view, sampler, err := d.View(id)
	require.NoError(t, err)
	assert.NotNil(t, view)
	assert.NotNil(t, sampler)

	d.DestroyTexture(id)
	d.DestroyTexture(id)
	assert.False(t, d.TextureValid(id))
	assert.Equal(t, 0, d.Live())

	_, _, err = d.View(id)
	assert.Error(t, err)
}

func TestHAL_SamplerSharedPerFilter(t *testing.T) {
	d := openHAL(t, software.API{})

	a, err := d.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)
	b, err := d.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)
	c, err := d.CreateTexture(texture.TextureDesc{Width: 2, Height: 1, Filter: texture.FilterLinear}, twoByOne)
	require.NoError(t, err)

	_, sa, err := d.View(a)
	require.NoError(t, err)
	_, sb, err := d.View(b)
	require.NoError(t, err)
	_, sc, err := d.View(c)
	require.NoError(t, err)

	assert.Same(t, sa, sb)
	assert.NotSame(t, sa, sc)

	desc := sc.(*software.SamplerResource).Desc
	assert.Equal(t, "tile_sampler_linear", desc.Label)
}

func TestHAL_WritesPixels(t *testing.T) {
	d := openHAL(t, software.API{})

	id, err := d.CreateTexture(texture.TextureDesc{Label: "px", Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)

	d.mu.RLock()
	tex := d.textures[id].tex.(*software.Texture)
	d.mu.RUnlock()
	assert.Equal(t, twoByOne, tex.GetData())
}

func TestHAL_RejectsBadInput(t *testing.T) {
	d := openHAL(t, noop.API{})

	_, err := d.CreateTexture(texture.TextureDesc{Width: 0, Height: 1}, nil)
	assert.ErrorIs(t, err, ErrBadSize)

	_, err = d.CreateTexture(texture.TextureDesc{Width: 2, Height: 2}, twoByOne)
	assert.ErrorIs(t, err, ErrPixelLength)
	assert.Equal(t, 0, d.Live())
}

func TestHAL_CloseReleasesEverything(t *testing.T) {
	d, err := OpenHAL(noop.API{}, 0)
	require.NoError(t, err)

	id, err := d.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)
	_, _, err = d.View(id)
	require.NoError(t, err)

	d.Close()
	assert.False(t, d.TextureValid(id))
	assert.Equal(t, 0, d.Live())
	d.Close()
}

type pngLocator map[string][]byte

func (l pngLocator) Locate(_ context.Context, key string) ([]byte, error) {
	return l[key], nil
}

func TestHAL_BacksTextureCache(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for i := range src.Pix {
		src.Pix[i] = 200
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	d := openHAL(t, software.API{})
	cache := texture.New(d, pngLocator{"tile": buf.Bytes()}, decode.New(decode.ColorKeyOff, 0), texture.Options{Workers: 1})

	h := cache.SyncLoad("tile")
	require.True(t, h.Ready())
	w, ht := h.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 4, ht)
	assert.True(t, d.TextureValid(h.ID()))

	assert.True(t, d.TextureValid(cache.MissingTexture().ID()))
	assert.True(t, d.TextureValid(cache.WhiteTexture().ID()))
	assert.Equal(t, 3, d.Live())

	require.NoError(t, cache.Close())
	assert.Equal(t, 0, d.Live())
}
