package decode

import (
	"image"
	"sync"
)

type poolKey struct {
	w, h int
}

// Pool recycles NRGBA buffers by dimension. Tile sets use a handful of
// distinct sizes, so the map of pools stays tiny.
type Pool struct {
	pools sync.Map // poolKey → *sync.Pool
}

// Get returns an NRGBA of size w×h at the origin. Pixel contents are
// undefined; callers overwrite every pixel.
func (p *Pool) Get(w, h int) *image.NRGBA {
	if sp, ok := p.pools.Load(poolKey{w, h}); ok {
		if v := sp.(*sync.Pool).Get(); v != nil {
			return v.(*image.NRGBA)
		}
	}
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// Put returns img for reuse. Images not at the origin or not tightly packed
// are dropped.
func (p *Pool) Put(img *image.NRGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) || img.Stride != 4*img.Rect.Dx() {
		return
	}
	key := poolKey{img.Rect.Dx(), img.Rect.Dy()}
	sp, _ := p.pools.LoadOrStore(key, &sync.Pool{})
	sp.(*sync.Pool).Put(img)
}
