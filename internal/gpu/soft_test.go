package gpu

import (
	"bytes"
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilerender/internal/texture"
)

// twoByOne is red on the left, blue on the right.
var twoByOne = []byte{255, 0, 0, 255, 0, 0, 255, 255}

func TestSoft_CreateDestroy(t *testing.T) {
	s := NewSoft(0)

	id, err := s.CreateTexture(texture.TextureDesc{Label: "a", Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.True(t, s.TextureValid(id))
	assert.Equal(t, 1, s.Live())

	img, ok := s.Image(id)
	require.True(t, ok)
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, img.NRGBAAt(0, 0))

	s.DestroyTexture(id)
	s.DestroyTexture(id)
	assert.False(t, s.TextureValid(id))
	assert.Equal(t, 0, s.Live())
	assert.Equal(t, 1, s.Created())
}

func TestSoft_CopiesPixels(t *testing.T) {
	s := NewSoft(0)
	pix := append([]byte(nil), twoByOne...)
	id, err := s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, pix)
	require.NoError(t, err)

	pix[0] = 0
	img, _ := s.Image(id)
	assert.Equal(t, uint8(255), img.Pix[0])
}

func TestSoft_RejectsBadInput(t *testing.T) {
	s := NewSoft(4)

	_, err := s.CreateTexture(texture.TextureDesc{Width: 0, Height: 1}, nil)
	assert.ErrorIs(t, err, ErrBadSize)

	_, err = s.CreateTexture(texture.TextureDesc{Width: 8, Height: 1}, make([]byte, 32))
	assert.ErrorIs(t, err, ErrBadSize)

	_, err = s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, make([]byte, 4))
	assert.ErrorIs(t, err, ErrPixelLength)
	assert.Equal(t, 0, s.Live())
}

func TestSoft_SampleClampToEdge(t *testing.T) {
	s := NewSoft(0)
	nearest, err := s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1, Filter: texture.FilterNearest}, twoByOne)
	require.NoError(t, err)
	linear, err := s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1, Filter: texture.FilterLinear}, twoByOne)
	require.NoError(t, err)

	red := color.NRGBA{R: 255, A: 255}
	blue := color.NRGBA{B: 255, A: 255}

	assert.Equal(t, red, s.Sample(nearest, 0.1, 0.5))
	assert.Equal(t, blue, s.Sample(nearest, 0.9, 0.5))
	// Outside [0,1] clamps instead of wrapping.
	assert.Equal(t, red, s.Sample(nearest, -3, 0.5))
	assert.Equal(t, blue, s.Sample(nearest, 1.7, 0.5))

	assert.Equal(t, red, s.Sample(linear, 0, 0.5))
	assert.Equal(t, blue, s.Sample(linear, 1, 0.5))
	mid := s.Sample(linear, 0.5, 0.5)
	assert.Equal(t, color.NRGBA{R: 128, B: 128, A: 255}, mid)

	assert.Equal(t, color.NRGBA{}, s.Sample(999, 0.5, 0.5))
}

func TestSoft_Reset(t *testing.T) {
	s := NewSoft(0)
	id, err := s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)

	s.Reset()
	assert.False(t, s.TextureValid(id))
}

func TestSoft_Draw(t *testing.T) {
	s := NewSoft(0)
	id, err := s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)

	dst := image.NewNRGBA(image.Rect(0, 0, 4, 2))
	s.Draw(dst, id, image.Rect(0, 0, 4, 2))

	assert.Equal(t, color.NRGBA{R: 255, A: 255}, dst.NRGBAAt(0, 0))
	assert.Equal(t, color.NRGBA{R: 255, A: 255}, dst.NRGBAAt(1, 1))
	assert.Equal(t, color.NRGBA{B: 255, A: 255}, dst.NRGBAAt(3, 1))

	// Clipped to dst.
	s.Draw(dst, id, image.Rect(-10, -10, -1, -1))
}

func TestBlend_HalfAlphaOverOpaque(t *testing.T) {
	dst := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	dst.SetNRGBA(0, 0, color.NRGBA{B: 255, A: 255})

	blend(dst, 0, 0, color.NRGBA{R: 255, A: 128})
	got := dst.NRGBAAt(0, 0)
	assert.Equal(t, uint8(255), got.A)
	assert.InDelta(t, 128, int(got.R), 1)
	assert.InDelta(t, 127, int(got.B), 1)
}

func TestEncodeWebP(t *testing.T) {
	s := NewSoft(0)
	id, err := s.CreateTexture(texture.TextureDesc{Width: 2, Height: 1}, twoByOne)
	require.NoError(t, err)

	img, _ := s.Image(id)
	var buf bytes.Buffer
	require.NoError(t, EncodeWebP(&buf, img))
	assert.Equal(t, "RIFF", buf.String()[:4])
	assert.Equal(t, "WEBP", buf.String()[8:12])

	path := filepath.Join(t.TempDir(), "tex.webp")
	require.NoError(t, s.Snapshot(id, path))
	assert.Error(t, s.Snapshot(12345, path))
}
