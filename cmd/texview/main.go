// Command texview drives the texture cache the way a tile renderer's frame
// loop does: every frame it asks for a sliding window of keys and uploads a
// bounded batch, with periodic scene changes that evict everything.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gogpu/wgpu/hal/software"

	"tilerender/internal/config"
	"tilerender/internal/gpu"
	"tilerender/internal/preload"
	"tilerender/internal/resources"
	"tilerender/internal/texture"
	"tilerender/internal/worker"
)

type options struct {
	device     string
	keysFile   string
	count      int
	window     int
	step       int
	fps        int
	frames     int
	evictEvery int
	retryEvery int
	preload    bool
	sync       bool
	manifest   string
	snapshot   string
}

func main() {
	// The frame loop owns the graphics context.
	runtime.LockOSThread()

	configFile := flag.String("config", "", "Path to config JSON file")
	graphicsDir := flag.String("graphics", "", "Graphics directory (default: auto-detect)")
	workers := flag.Int("workers", 0, "Decode workers (default: NumCPU)")
	batch := flag.Int("batch", 0, "Uploads per frame (default: 50)")
	evict := flag.Int("evict-threshold", 0, "Minimum entries before eviction (default: 3000)")
	filter := flag.String("filter", "", "Texture filter: nearest or linear")
	logLevel := flag.String("log-level", "", "debug, info, warn or error")
	logFormat := flag.String("log-format", "", "text or json")

	var o options
	flag.StringVar(&o.device, "device", "soft", "Texture device: soft (in memory) or hal (wgpu software backend)")
	flag.StringVar(&o.keysFile, "keys", "", "File with one texture key per line (default: numeric keys)")
	flag.IntVar(&o.count, "count", 1000, "Number of numeric keys when -keys is not set")
	flag.IntVar(&o.window, "window", 64, "Keys requested per frame")
	flag.IntVar(&o.step, "step", 8, "Window advance per frame")
	flag.IntVar(&o.fps, "fps", 60, "Frames per second")
	flag.IntVar(&o.frames, "frames", 0, "Stop after N frames (default: until interrupted)")
	flag.IntVar(&o.evictEvery, "evict-every", 600, "Frames between scene changes (0: never)")
	flag.IntVar(&o.retryEvery, "retry-every", 0, "Frames between failure retries (0: never)")
	flag.BoolVar(&o.preload, "preload", false, "Warm every key before the frame loop")
	flag.BoolVar(&o.sync, "preload-sync", false, "Preload with parallel synchronous decode")
	flag.StringVar(&o.manifest, "manifest", "", "Write the preload manifest to this path")
	flag.StringVar(&o.snapshot, "snapshot", "", "Write the last frame as WebP to this path")
	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{
		GraphicsDir:    *graphicsDir,
		Workers:        *workers,
		UploadBatch:    *batch,
		EvictThreshold: *evict,
		Filter:         *filter,
		LogLevel:       *logLevel,
		LogFormat:      *logFormat,
	})

	if err := run(cfg, o); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, o options) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := cfg.NewLogger(os.Stderr)
	if err != nil {
		return err
	}
	texture.SetLogger(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if o.snapshot != "" && o.device != "soft" {
		return fmt.Errorf("-snapshot needs -device soft")
	}

	loc, files, err := cfg.Locator(resources.FS())
	if err != nil {
		return err
	}
	keys, err := loadKeys(o.keysFile, o.count)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return fmt.Errorf("no keys")
	}

	dev, soft, closeDev, err := openDevice(o.device)
	if err != nil {
		return err
	}
	defer closeDev()

	pool := worker.New(cfg.Workers)
	defer pool.Close()

	opts := cfg.CacheOptions()
	opts.Executor = pool
	cache := texture.New(dev, loc, cfg.Decoder(), opts)
	defer cache.Close()

	logger.Info("texview starting",
		"device", o.device,
		"keys", len(keys),
		"dirs", strings.Join(files.Dirs(), string(os.PathListSeparator)),
		"workers", pool.Size(),
		"batch", cfg.UploadBatch,
		"evict_threshold", cfg.EvictThreshold)

	if o.preload {
		results, err := preload.Run(ctx, preload.Config{Cache: cache, Keys: keys, Sync: o.sync, Logger: logger})
		if err != nil {
			return err
		}
		if o.manifest != "" {
			if err := preload.WriteManifest(o.manifest, results); err != nil {
				return err
			}
			logger.Info("manifest written", "path", o.manifest)
		}
	}

	last := frameLoop(ctx, cache, pool, keys, o, logger)

	if o.snapshot != "" {
		settle(cache, pool)
		frame := compose(soft, cache, last)
		if err := gpu.WriteWebP(o.snapshot, frame); err != nil {
			return err
		}
		logger.Info("snapshot written", "path", o.snapshot)
	}
	return nil
}

// openDevice returns the texture device named by name and a func releasing
// it. soft is non-nil only for the in-memory device.
func openDevice(name string) (dev texture.Device, soft *gpu.Soft, closeDev func(), err error) {
	switch name {
	case "soft":
		soft = gpu.NewSoft(0)
		return soft, soft, func() {}, nil
	case "hal":
		h, err := gpu.OpenHAL(software.API{}, 0)
		if err != nil {
			return nil, nil, nil, err
		}
		return h, nil, h.Close, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown device %q (want soft or hal)", name)
	}
}

// settle waits for in-flight decodes and uploads everything they produced.
func settle(cache *texture.Cache, pool *worker.Pool) {
	pool.Wait()
	for cache.Stats().Queued > 0 {
		cache.DispatchUploads()
	}
	cache.DispatchUploads()
}

// frameLoop runs until ctx ends or o.frames have elapsed and returns the
// handles of the final frame.
func frameLoop(ctx context.Context, cache *texture.Cache, pool *worker.Pool, keys []string, o options, log *slog.Logger) []*texture.Handle {
	fps := max(o.fps, 1)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	window := min(o.window, len(keys))
	handles := make([]*texture.Handle, window)
	uploaded := 0
	lastReport := time.Now()

	for frame := 0; o.frames == 0 || frame < o.frames; frame++ {
		select {
		case <-ctx.Done():
			log.Info("interrupted", "frame", frame)
			return handles
		case <-ticker.C:
		}

		start := (frame * o.step) % len(keys)
		for i := range handles {
			handles[i] = cache.Get(keys[(start+i)%len(keys)])
		}
		uploaded += cache.DispatchUploads()

		if o.evictEvery > 0 && frame > 0 && frame%o.evictEvery == 0 {
			cache.EvictAll()
		}
		if o.retryEvery > 0 && frame > 0 && frame%o.retryEvery == 0 {
			cache.RetryFailedTextures()
		}

		if time.Since(lastReport) >= time.Second {
			st, ps := cache.Stats(), pool.Stats()
			log.Info("frame stats",
				"frame", frame,
				"uploaded", uploaded,
				"entries", st.Entries,
				"pending", st.Pending,
				"queued", st.Queued,
				"failed", st.Failed,
				"dropped", st.Dropped,
				"decode_backlog", ps.Queued,
				"decoding", ps.Running,
				"decoder_panics", ps.Panics)
			uploaded = 0
			lastReport = time.Now()
		}
	}
	return handles
}

// compose lays the frame's textures out on a grid of 32px cells. Textures
// still loading draw as white.
func compose(dev *gpu.Soft, cache *texture.Cache, handles []*texture.Handle) *image.NRGBA {
	const cell = 32
	cols := 8
	rows := (len(handles) + cols - 1) / cols
	dst := image.NewNRGBA(image.Rect(0, 0, cols*cell, max(rows, 1)*cell))
	for i := 0; i < len(dst.Pix); i += 4 {
		c := color.NRGBA{R: 40, G: 40, B: 48, A: 255}
		dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2], dst.Pix[i+3] = c.R, c.G, c.B, c.A
	}

	white := cache.WhiteTexture()
	for i, h := range handles {
		if h == nil {
			continue
		}
		id := h.ID()
		if id == 0 {
			id = white.ID()
		}
		x, y := (i%cols)*cell, (i/cols)*cell
		dev.Draw(dst, id, image.Rect(x+1, y+1, x+cell-1, y+cell-1))
	}
	return dst
}

// loadKeys reads one key per line, skipping blanks and # comments. Without a
// file it returns the keys "0" through count-1.
func loadKeys(path string, count int) ([]string, error) {
	if path == "" {
		keys := make([]string, count)
		for i := range keys {
			keys[i] = strconv.Itoa(i)
		}
		return keys, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("keys: %s: %w", path, err)
	}
	return keys, nil
}
