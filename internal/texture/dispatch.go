package texture

import "image"

// DispatchUploads uploads at most Options.UploadBatch decoded textures into
// their placeholders, then rebinds keys that failed since the last call to
// the Missing handle. It returns the number of textures uploaded. Call it
// once per frame from the graphics goroutine.
func (c *Cache) DispatchUploads() int {
	defer c.owner.enter("DispatchUploads")()
	if c.closed.Load() {
		return 0
	}

	c.ensureSentinels()

	n := 0
	for _, p := range c.queue.drain(c.opts.UploadBatch) {
		if c.upload(p) {
			n++
		}
	}
	c.sweepFailures()
	return n
}

// upload binds one payload to its placeholder. The payload buffer is always
// released.
func (c *Cache) upload(p payload) bool {
	defer c.releaseImage(p.img)

	if !c.current(p.job) {
		c.dropped.Add(1)
		slogger().Debug("texture: dropped stale upload", "key", p.job.key)
		return false
	}

	w, h := p.img.Rect.Dx(), p.img.Rect.Dy()
	id, err := c.dev.CreateTexture(TextureDesc{
		Label:  p.job.key,
		Width:  w,
		Height: h,
		Filter: c.opts.Filter,
	}, pixels(p.img))
	if err != nil {
		c.dropped.Add(1)
		c.fail(p.job, FailureUpload, err)
		return false
	}

	p.job.handle.publish(StateReady, id, w, h)
	c.pending.CompareAndDelete(p.job.key, p.job)
	c.uploaded.Add(1)
	return true
}

// sweepFailures rebinds newly failed keys to Missing and marks their
// placeholders Failed. A key retried or evicted in the meantime keeps its
// new binding.
func (c *Cache) sweepFailures() {
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()
	for _, f := range c.unswept.take() {
		if cur, ok := c.failed.Load(f.job.key); ok && cur == f {
			c.entries.CompareAndSwap(f.job.key, f.job.handle, c.missing)
		}
		f.job.handle.publish(StateFailed, 0, 0, 0)
	}
}

// pixels returns img as tightly packed RGBA8 rows starting at the origin.
func pixels(img *image.NRGBA) []byte {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	row := 4 * w
	if img.Stride == row {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y)
		return img.Pix[off : off+row*h]
	}
	out := make([]byte, row*h)
	for y := 0; y < h; y++ {
		off := img.PixOffset(img.Rect.Min.X, img.Rect.Min.Y+y)
		copy(out[y*row:], img.Pix[off:off+row])
	}
	return out
}
