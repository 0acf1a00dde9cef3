package texture

import (
	"image"
	"image/color"
)

const (
	whiteKey   = "$white"
	missingKey = "$missing"

	missingSize = 32
	missingCell = 16
)

var (
	missingOn  = color.NRGBA{R: 255, G: 0, B: 255, A: 255}
	missingOff = color.NRGBA{A: 255}
)

// WhiteTexture returns the 1x1 opaque white texture used for untextured
// fills. Graphics goroutine only.
func (c *Cache) WhiteTexture() *Handle {
	defer c.owner.enter("WhiteTexture")()
	if !c.closed.Load() {
		c.ensureSentinel(c.white, whiteImage())
	}
	return c.white
}

// MissingTexture returns the magenta and black checkerboard that failed keys
// resolve to. Graphics goroutine only.
func (c *Cache) MissingTexture() *Handle {
	defer c.owner.enter("MissingTexture")()
	if !c.closed.Load() {
		c.ensureSentinel(c.missing, missingImage())
	}
	return c.missing
}

func (c *Cache) ensureSentinels() {
	c.ensureSentinel(c.white, nil)
	c.ensureSentinel(c.missing, nil)
}

// ensureSentinel creates h's texture if it has none, or if the device says
// the old one is gone. img nil builds the default image for h.
func (c *Cache) ensureSentinel(h *Handle, img *image.NRGBA) {
	if id := h.ID(); id != 0 {
		v, ok := c.dev.(textureValidator)
		if !ok || v.TextureValid(id) {
			return
		}
		slogger().Debug("texture: recreating lost sentinel", "key", h.key)
	}

	if img == nil {
		if h == c.white {
			img = whiteImage()
		} else {
			img = missingImage()
		}
	}

	w, ht := img.Rect.Dx(), img.Rect.Dy()
	id, err := c.dev.CreateTexture(TextureDesc{Label: h.key, Width: w, Height: ht, Filter: FilterNearest}, img.Pix)
	if err != nil {
		slogger().Warn("texture: sentinel upload failed", "key", h.key, "err", err)
		return
	}
	h.publish(StateReady, id, w, ht)
	slogger().Debug("texture: sentinel created", "key", h.key, "id", id)
}

func whiteImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, 1, 1))
	copy(img.Pix, []byte{255, 255, 255, 255})
	return img
}

// missingImage is a 32x32 checkerboard of 16px magenta and black cells.
func missingImage() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, missingSize, missingSize))
	for y := 0; y < missingSize; y++ {
		for x := 0; x < missingSize; x++ {
			c := missingOff
			if (x/missingCell+y/missingCell)%2 == 0 {
				c = missingOn
			}
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}
