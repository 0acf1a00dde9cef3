package texture

import (
	"context"
	"image"
)

// TextureID names a texture on a Device. Zero means "no texture".
type TextureID uint64

// Filter selects the sampling filter of an uploaded texture.
type Filter uint8

const (
	FilterNearest Filter = iota
	FilterLinear
)

// ParseFilter maps "nearest" and "linear".
func ParseFilter(s string) (Filter, bool) {
	switch s {
	case "", "nearest":
		return FilterNearest, true
	case "linear":
		return FilterLinear, true
	}
	return FilterNearest, false
}

func (f Filter) String() string {
	if f == FilterLinear {
		return "linear"
	}
	return "nearest"
}

// TextureDesc describes a texture to create. Wrapping is always
// clamp-to-edge.
type TextureDesc struct {
	Label  string
	Width  int
	Height int
	Filter Filter
}

// Device is the graphics binding. Every call happens on the goroutine that
// owns the graphics context. pix is straight-alpha RGBA8, exactly
// 4*Width*Height bytes, and must not be retained after CreateTexture returns.
type Device interface {
	CreateTexture(desc TextureDesc, pix []byte) (TextureID, error)
	DestroyTexture(id TextureID)
}

// textureValidator is implemented by devices that can tell whether an ID is
// still live (for example after a device reset).
type textureValidator interface {
	TextureValid(id TextureID) bool
}

// Locator resolves a key to encoded bytes.
type Locator interface {
	Locate(ctx context.Context, key string) ([]byte, error)
}

// Decoder turns encoded bytes into pixels.
type Decoder interface {
	Decode(key string, raw []byte) (*image.NRGBA, error)
}

// releaser is implemented by decoders that recycle pixel buffers.
type releaser interface {
	Release(img *image.NRGBA)
}

// Executor runs decode jobs off the calling goroutine. Submit must not block
// and reports false once the executor is shut down.
type Executor interface {
	Submit(job func(ctx context.Context)) bool
}
