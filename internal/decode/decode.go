// Package decode turns encoded image bytes into straight-alpha RGBA8 pixels.
//
// Formats: PNG, JPEG, GIF, BMP, WebP and TGA. The codec is picked from the
// leading magic bytes; TGA has none and is the fallback.
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"regexp"

	"golang.org/x/image/draw"
)

// MaxDimension bounds the width and height of a decoded texture.
const MaxDimension = 16384

var (
	// ErrEmpty is returned for zero-length input.
	ErrEmpty = errors.New("decode: empty input")

	// ErrTooLarge is returned when the image header exceeds MaxDimension.
	ErrTooLarge = errors.New("decode: image too large")
)

// ColorKeyMode selects which textures get near-black made transparent.
type ColorKeyMode uint8

const (
	// ColorKeyNumeric applies the key to legacy graphics whose key starts with a digit.
	ColorKeyNumeric ColorKeyMode = iota
	// ColorKeyAll applies the key to every texture.
	ColorKeyAll
	// ColorKeyOff disables the key.
	ColorKeyOff
)

// ParseColorKeyMode maps "numeric", "all" and "off" to a mode.
func ParseColorKeyMode(s string) (ColorKeyMode, error) {
	switch s {
	case "", "numeric":
		return ColorKeyNumeric, nil
	case "all":
		return ColorKeyAll, nil
	case "off", "none":
		return ColorKeyOff, nil
	}
	return ColorKeyOff, fmt.Errorf("decode: unknown color key mode %q", s)
}

// DefaultColorKeyThreshold: r, g and b all below this become transparent.
const DefaultColorKeyThreshold = 12

var legacyKey = regexp.MustCompile(`^\d+`)

// Decoder decodes texture bytes. The zero value keys numeric textures with
// the default threshold. A Decoder must not be copied after first use.
type Decoder struct {
	ColorKey          ColorKeyMode
	ColorKeyThreshold uint8

	pool Pool
}

// New returns a Decoder with the given color key settings.
// threshold 0 means DefaultColorKeyThreshold.
func New(mode ColorKeyMode, threshold uint8) *Decoder {
	if threshold == 0 {
		threshold = DefaultColorKeyThreshold
	}
	return &Decoder{ColorKey: mode, ColorKeyThreshold: threshold}
}

// Decode decodes raw into an NRGBA image whose bounds start at (0,0) and
// whose stride is exactly 4*width.
func (d *Decoder) Decode(key string, raw []byte) (*image.NRGBA, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode: %s: %w", key, ErrEmpty)
	}

	c := sniff(raw)
	cfg, err := c.config(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %s (%s): %w", key, c.name, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxDimension || cfg.Height > MaxDimension {
		return nil, fmt.Errorf("decode: %s: %dx%d %s: %w", key, cfg.Width, cfg.Height, c.name, ErrTooLarge)
	}

	src, err := c.decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode: %s (%s): %w", key, c.name, err)
	}

	img := d.toNRGBA(src)
	if d.keyed(key) {
		applyColorKey(img, d.threshold())
	}
	return img, nil
}

// Release hands a decoded image's buffer back for reuse. The caller must not
// touch img afterwards.
func (d *Decoder) Release(img *image.NRGBA) {
	d.pool.Put(img)
}

func (d *Decoder) keyed(key string) bool {
	switch d.ColorKey {
	case ColorKeyAll:
		return true
	case ColorKeyNumeric:
		return legacyKey.MatchString(key)
	}
	return false
}

func (d *Decoder) threshold() uint8 {
	if d.ColorKeyThreshold == 0 {
		return DefaultColorKeyThreshold
	}
	return d.ColorKeyThreshold
}

// toNRGBA converts any image to a tightly packed NRGBA at the origin.
func (d *Decoder) toNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	if n, ok := src.(*image.NRGBA); ok && b.Min == (image.Point{}) && n.Stride == 4*b.Dx() {
		return n
	}
	dst := d.pool.Get(b.Dx(), b.Dy())
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// applyColorKey makes near-black pixels fully transparent.
func applyColorKey(img *image.NRGBA, threshold uint8) {
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		if pix[i] < threshold && pix[i+1] < threshold && pix[i+2] < threshold {
			pix[i], pix[i+1], pix[i+2], pix[i+3] = 0, 0, 0, 0
		}
	}
}
