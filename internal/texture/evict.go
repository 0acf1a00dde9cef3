package texture

// EvictAll releases every texture except the White and Missing sentinels
// and forgets all pending requests, failures and queued uploads. It does
// nothing while the cache holds fewer than Options.EvictThreshold entries
// and reports whether it ran. Graphics goroutine only.
//
// Decodes still running finish into nothing: their registrations are gone,
// so the results are dropped on arrival.
func (c *Cache) EvictAll() bool {
	defer c.owner.enter("EvictAll")()

	size := c.entries.Len()
	if size < c.opts.EvictThreshold {
		slogger().Info("texture: eviction skipped", "entries", size, "threshold", c.opts.EvictThreshold)
		return false
	}

	c.gate.Lock()
	released := c.releaseAll()
	c.gate.Unlock()

	slogger().Info("texture: evicted", "entries", size, "released", released)
	return true
}

// releaseAll destroys non-sentinel textures and empties every set. Caller
// holds gate exclusively. It returns the number of textures destroyed.
func (c *Cache) releaseAll() int {
	released := 0
	seen := make(map[*Handle]struct{})
	c.entries.Range(func(_ string, h *Handle) bool {
		if h == c.white || h == c.missing {
			return true
		}
		if _, dup := seen[h]; dup {
			return true
		}
		seen[h] = struct{}{}
		if id := h.ID(); id != 0 {
			c.dev.DestroyTexture(id)
			released++
		}
		h.publish(StateUninitialized, 0, 0, 0)
		return true
	})

	c.entries.Clear()
	c.pending.Clear()
	c.failed.Clear()
	c.unswept.take()

	for _, p := range c.queue.reset() {
		c.releaseImage(p.img)
		c.dropped.Add(1)
	}
	return released
}

// RetryFailedTextures clears the FailedSet and rebinds each failed key to a
// fresh placeholder, so the next Get for it decodes again. It returns the
// number of keys retried. It may run concurrently with DispatchUploads.
func (c *Cache) RetryFailedTextures() int {
	c.gate.RLock()
	defer c.gate.RUnlock()
	c.sweepMu.Lock()
	defer c.sweepMu.Unlock()

	n := 0
	c.failed.Range(func(key string, f *failure) bool {
		if !c.failed.CompareAndDelete(key, f) {
			return true
		}
		fresh := newHandle(key, StateUninitialized)
		if !c.entries.CompareAndSwap(key, c.missing, fresh) {
			c.entries.CompareAndSwap(key, f.job.handle, fresh)
		}
		n++
		return true
	})

	if n == 0 {
		slogger().Info("texture: no failed textures to retry")
	} else {
		slogger().Info("texture: retrying failed textures", "count", n)
	}
	return n
}
