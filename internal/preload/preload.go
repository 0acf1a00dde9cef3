// Package preload warms a list of texture keys through a texture.Cache and
// reports what became of each one.
package preload

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"tilerender/internal/texture"
)

// Config holds the inputs for a preload run.
type Config struct {
	Cache *texture.Cache
	Keys  []string

	// Sync decodes everything up front with PreloadSync instead of
	// streaming through the per-frame upload path.
	Sync bool

	// FrameInterval paces DispatchUploads calls. 0 means 16ms.
	FrameInterval time.Duration
	// ProgressEvery is the progress log period. 0 means 2s.
	ProgressEvery time.Duration

	// Logger receives progress. nil means the texture package logger.
	Logger *slog.Logger
}

// Result holds the outcome for one key.
type Result struct {
	Key     string
	Success bool
	Width   int
	Height  int
	Error   string
}

// Run loads every key and returns one Result per key, in order. It must be
// called from the goroutine that owns the graphics context, since it drives
// DispatchUploads. On cancellation the results gathered so far are returned
// with ctx.Err().
func Run(ctx context.Context, cfg Config) ([]Result, error) {
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = 16 * time.Millisecond
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 2 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = texture.Logger()
	}

	total := len(cfg.Keys)
	results := make([]Result, total)
	for i, k := range cfg.Keys {
		results[i].Key = k
	}
	var processed atomic.Int64
	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(cfg.ProgressEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					log.Info("preload progress", "done", p, "total", total, "per_sec", rate)
				}
			}
		}
	}()

	c := cfg.Cache
	if cfg.Sync {
		if err := c.PreloadSync(ctx, cfg.Keys); err != nil {
			return results, err
		}
	}

	missing := c.MissingTexture()
	handles := make([]*texture.Handle, total)
	remaining := make([]int, 0, total)
	for i, k := range cfg.Keys {
		handles[i] = c.Get(k)
		remaining = append(remaining, i)
	}

	frame := time.NewTicker(cfg.FrameInterval)
	defer frame.Stop()

	for {
		c.DispatchUploads()

		next := remaining[:0]
		for _, i := range remaining {
			h := handles[i]
			switch {
			case h == missing || h.State() == texture.StateFailed:
				results[i].Error = "failed"
				processed.Add(1)
			case h.Ready():
				results[i].Success = true
				results[i].Width, results[i].Height = h.Size()
				processed.Add(1)
			case h.State() == texture.StateUninitialized:
				// Evicted while loading.
				handles[i] = c.Get(cfg.Keys[i])
				next = append(next, i)
			default:
				next = append(next, i)
			}
		}
		remaining = next
		if len(remaining) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return results, ctx.Err()
		case <-frame.C:
		}
	}

	attachErrors(results, c.Failures())
	ok := 0
	for _, r := range results {
		if r.Success {
			ok++
		}
	}
	log.Info("preload done", "ok", ok, "failed", total-ok, "elapsed", time.Since(start).Round(time.Millisecond))
	return results, nil
}

func attachErrors(results []Result, failures []texture.Failure) {
	if len(failures) == 0 {
		return
	}
	byKey := make(map[string]error, len(failures))
	for _, f := range failures {
		byKey[f.Key] = f.Err
	}
	for i := range results {
		if err, ok := byKey[results[i].Key]; ok && !results[i].Success {
			results[i].Error = err.Error()
		}
	}
}
