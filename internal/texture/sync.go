package texture

import (
	"context"
	"image"

	"golang.org/x/sync/errgroup"
)

type loaded struct {
	img  *image.NRGBA
	kind FailureKind
	err  error
	skip bool
}

// PreloadSync decodes keys in parallel and uploads them before returning,
// for loading screens. Keys that are already Ready or failed are skipped.
// Per-key failures are recorded as usual and do not stop the preload; only
// ctx cancellation is returned. Graphics goroutine only.
func (c *Cache) PreloadSync(ctx context.Context, keys []string) error {
	defer c.owner.enter("PreloadSync")()
	if c.closed.Load() {
		return ErrClosed
	}
	c.ensureSentinels()

	results := make([]loaded, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Workers)
	for i, key := range keys {
		if c.settled(key) {
			results[i].skip = true
			continue
		}
		g.Go(func() error {
			img, kind, err := c.load(gctx, key)
			results[i] = loaded{img: img, kind: kind, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		for _, r := range results {
			c.releaseImage(r.img)
		}
		return err
	}

	for i, key := range keys {
		if !results[i].skip {
			c.install(key, results[i])
		}
	}
	c.sweepFailures()
	return nil
}

// SyncLoad loads key on the calling goroutine and uploads it immediately.
// It returns the Ready handle, or Missing if the key failed now or earlier.
// Graphics goroutine only.
func (c *Cache) SyncLoad(key string) *Handle {
	defer c.owner.enter("SyncLoad")()
	if c.closed.Load() {
		return c.missing
	}
	c.ensureSentinels()

	if h, ok := c.entries.Load(key); ok && h.Ready() {
		return h
	}
	if _, failed := c.failed.Load(key); failed {
		c.sweepFailures()
		return c.missing
	}

	img, kind, err := c.load(context.Background(), key)
	h := c.install(key, loaded{img: img, kind: kind, err: err})
	c.sweepFailures()
	if h == nil || !h.Ready() {
		return c.missing
	}
	return h
}

// settled reports whether key needs no further loading.
func (c *Cache) settled(key string) bool {
	if _, failed := c.failed.Load(key); failed {
		return true
	}
	h, ok := c.entries.Load(key)
	return ok && h.Ready()
}

// install uploads a synchronously loaded result into key's placeholder,
// taking over from any asynchronous request still in flight. It returns the
// placeholder, or nil if the key failed before.
func (c *Cache) install(key string, r loaded) *Handle {
	c.gate.RLock()
	if _, failed := c.failed.Load(key); failed {
		c.gate.RUnlock()
		c.releaseImage(r.img)
		return nil
	}
	h, _ := c.entries.LoadOrCreate(key, func() *Handle {
		return newHandle(key, StateUninitialized)
	})
	if j, ok := c.pending.Load(key); ok {
		c.pending.CompareAndDelete(key, j)
	}
	c.gate.RUnlock()

	if h.Ready() {
		c.releaseImage(r.img)
		return h
	}

	j := &job{key: key, handle: h}
	if r.err != nil {
		c.recordSync(j, r.kind, r.err)
		return h
	}
	defer c.releaseImage(r.img)

	w, ht := r.img.Rect.Dx(), r.img.Rect.Dy()
	id, err := c.dev.CreateTexture(TextureDesc{Label: key, Width: w, Height: ht, Filter: c.opts.Filter}, pixels(r.img))
	if err != nil {
		c.recordSync(j, FailureUpload, err)
		return h
	}
	h.publish(StateReady, id, w, ht)
	c.preloaded.Add(1)
	return h
}

func (c *Cache) recordSync(j *job, kind FailureKind, err error) {
	c.gate.RLock()
	c.recordFailure(j, kind, err)
	c.gate.RUnlock()
}
