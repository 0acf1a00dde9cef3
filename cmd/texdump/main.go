// Command texdump decodes texture keys through the cache and writes them as
// WebP files, with color key and format handling identical to the renderer.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tilerender/internal/config"
	"tilerender/internal/gpu"
	"tilerender/internal/resources"
	"tilerender/internal/texture"
)

func main() {
	configFile := flag.String("config", "", "Path to config JSON file")
	graphicsDir := flag.String("graphics", "", "Graphics directory (default: auto-detect)")
	outDir := flag.String("out", ".", "Output directory")
	sentinels := flag.Bool("sentinels", false, "Also dump the white and missing textures")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: texdump [flags] key...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && !*sentinels {
		flag.Usage()
		os.Exit(2)
	}

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{GraphicsDir: *graphicsDir, Workers: 1})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	loc, _, err := cfg.Locator(resources.FS())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	dev := gpu.NewSoft(0)
	cache := texture.New(dev, loc, cfg.Decoder(), cfg.CacheOptions())
	defer cache.Close()

	errors := 0
	for _, key := range flag.Args() {
		h := cache.SyncLoad(key)
		if h == cache.MissingTexture() {
			msg := "not loaded"
			for _, f := range cache.Failures() {
				if f.Key == key {
					msg = f.Err.Error()
				}
			}
			fmt.Fprintf(os.Stderr, "ERR %s: %s\n", key, msg)
			errors++
			continue
		}
		if err := dump(dev, h, *outDir); err != nil {
			fmt.Fprintf(os.Stderr, "ERR %v\n", err)
			errors++
		}
	}

	if *sentinels {
		for _, h := range []*texture.Handle{cache.WhiteTexture(), cache.MissingTexture()} {
			if err := dump(dev, h, *outDir); err != nil {
				fmt.Fprintf(os.Stderr, "ERR %v\n", err)
				errors++
			}
		}
	}

	if errors > 0 {
		fmt.Printf("\nDone with %d error(s).\n", errors)
		cache.Close()
		os.Exit(1)
	}
	fmt.Println("\nDone. All textures written.")
}

func dump(dev *gpu.Soft, h *texture.Handle, outDir string) error {
	name := strings.NewReplacer("/", "_", "\\", "_", "$", "").Replace(h.Key()) + ".webp"
	dst := filepath.Join(outDir, name)
	if err := dev.Snapshot(h.ID(), dst); err != nil {
		return fmt.Errorf("%s: %w", h.Key(), err)
	}
	w, ht := h.Size()
	fmt.Printf("OK  %s -> %s  (%dx%d)\n", h.Key(), dst, w, ht)
	return nil
}
