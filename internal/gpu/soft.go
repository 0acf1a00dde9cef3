// Package gpu provides texture.Device implementations: Soft keeps textures
// in memory for headless runs and tests, HAL uploads through gogpu/wgpu.
package gpu

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"tilerender/internal/texture"
)

// DefaultMaxDimension matches the common WebGPU maxTextureDimension2D limit.
const DefaultMaxDimension = 8192

var (
	ErrBadSize     = errors.New("gpu: invalid texture size")
	ErrPixelLength = errors.New("gpu: pixel data does not match size")
)

// Soft is an in-memory device. Textures are NRGBA images addressed by ID.
type Soft struct {
	mu       sync.RWMutex
	next     texture.TextureID
	textures map[texture.TextureID]*softTexture
	maxDim   int
	created  int
}

type softTexture struct {
	label  string
	img    *image.NRGBA
	filter texture.Filter
}

// NewSoft returns an empty device. maxDimension <= 0 means
// DefaultMaxDimension.
func NewSoft(maxDimension int) *Soft {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	return &Soft{
		textures: make(map[texture.TextureID]*softTexture),
		maxDim:   maxDimension,
	}
}

func checkDesc(desc texture.TextureDesc, pix []byte, maxDim int) error {
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > maxDim || desc.Height > maxDim {
		return fmt.Errorf("%w: %s %dx%d (max %d)", ErrBadSize, desc.Label, desc.Width, desc.Height, maxDim)
	}
	if len(pix) != 4*desc.Width*desc.Height {
		return fmt.Errorf("%w: %s has %d bytes for %dx%d", ErrPixelLength, desc.Label, len(pix), desc.Width, desc.Height)
	}
	return nil
}

// CreateTexture copies pix into a new texture.
func (s *Soft) CreateTexture(desc texture.TextureDesc, pix []byte) (texture.TextureID, error) {
	if err := checkDesc(desc, pix, s.maxDim); err != nil {
		return 0, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	copy(img.Pix, pix)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.created++
	s.textures[s.next] = &softTexture{label: desc.Label, img: img, filter: desc.Filter}
	return s.next, nil
}

// DestroyTexture frees id. Unknown IDs are ignored.
func (s *Soft) DestroyTexture(id texture.TextureID) {
	s.mu.Lock()
	delete(s.textures, id)
	s.mu.Unlock()
}

// TextureValid reports whether id is live.
func (s *Soft) TextureValid(id texture.TextureID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.textures[id]
	return ok
}

// Image returns the pixels of id. The image must not be modified.
func (s *Soft) Image(id texture.TextureID) (*image.NRGBA, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.textures[id]
	if !ok {
		return nil, false
	}
	return t.img, true
}

// Live returns the number of textures not yet destroyed.
func (s *Soft) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.textures)
}

// Created returns the number of textures ever created.
func (s *Soft) Created() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.created
}

// Reset drops every texture, as a lost device would.
func (s *Soft) Reset() {
	s.mu.Lock()
	clear(s.textures)
	s.mu.Unlock()
}

// Sample reads id at normalized (u, v) with clamp-to-edge addressing and the
// texture's filter. Unknown IDs sample transparent black.
func (s *Soft) Sample(id texture.TextureID, u, v float64) color.NRGBA {
	s.mu.RLock()
	t, ok := s.textures[id]
	s.mu.RUnlock()
	if !ok {
		return color.NRGBA{}
	}
	if t.filter == texture.FilterLinear {
		return sampleLinear(t.img, u, v)
	}
	return sampleNearest(t.img, u, v)
}

func clamp01(f float64) float64 {
	if f < 0 || math.IsNaN(f) {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func sampleNearest(tex *image.NRGBA, u, v float64) color.NRGBA {
	w, h := tex.Rect.Dx(), tex.Rect.Dy()
	x := min(int(clamp01(u)*float64(w)), w-1)
	y := min(int(clamp01(v)*float64(h)), h-1)
	i := y*tex.Stride + x*4
	p := tex.Pix[i : i+4 : i+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// sampleLinear is bilinear filtering over texel centers, clamped to the edge.
func sampleLinear(tex *image.NRGBA, u, v float64) color.NRGBA {
	w, h := tex.Rect.Dx(), tex.Rect.Dy()

	fx := clamp01(u)*float64(w) - 0.5
	fy := clamp01(v)*float64(h) - 0.5
	fx = math.Max(0, math.Min(fx, float64(w-1)))
	fy = math.Max(0, math.Min(fy, float64(h-1)))

	x0, y0 := int(fx), int(fy)
	x1, y1 := min(x0+1, w-1), min(y0+1, h-1)
	dx, dy := fx-float64(x0), fy-float64(y0)

	stride := tex.Stride
	pix := tex.Pix

	i00 := y0*stride + x0*4
	i10 := y0*stride + x1*4
	i01 := y1*stride + x0*4
	i11 := y1*stride + x1*4

	w00 := (1 - dx) * (1 - dy)
	w10 := dx * (1 - dy)
	w01 := (1 - dx) * dy
	w11 := dx * dy

	var out [4]uint8
	for c := 0; c < 4; c++ {
		f := float64(pix[i00+c])*w00 + float64(pix[i10+c])*w10 + float64(pix[i01+c])*w01 + float64(pix[i11+c])*w11
		out[c] = uint8(f + 0.5)
	}
	return color.NRGBA{R: out[0], G: out[1], B: out[2], A: out[3]}
}

// Draw scales texture id into r on dst with source-over blending.
func (s *Soft) Draw(dst *image.NRGBA, id texture.TextureID, r image.Rectangle) {
	r = r.Intersect(dst.Rect)
	if r.Empty() {
		return
	}
	w, h := float64(r.Dx()), float64(r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		v := (float64(y-r.Min.Y) + 0.5) / h
		for x := r.Min.X; x < r.Max.X; x++ {
			u := (float64(x-r.Min.X) + 0.5) / w
			blend(dst, x, y, s.Sample(id, u, v))
		}
	}
}

func blend(dst *image.NRGBA, x, y int, src color.NRGBA) {
	if src.A == 0 {
		return
	}
	i := dst.PixOffset(x, y)
	d := dst.Pix[i : i+4 : i+4]
	if src.A == 255 {
		d[0], d[1], d[2], d[3] = src.R, src.G, src.B, 255
		return
	}
	sa := float64(src.A) / 255
	da := float64(d[3]) / 255
	oa := sa + da*(1-sa)
	for c, sv := range [3]uint8{src.R, src.G, src.B} {
		f := (float64(sv)*sa + float64(d[c])*da*(1-sa)) / oa
		d[c] = uint8(f + 0.5)
	}
	d[3] = uint8(oa*255 + 0.5)
}
