package config

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"

	"tilerender/internal/asset"
	"tilerender/internal/decode"
	"tilerender/internal/texture"
)

// CacheOptions converts the cache settings. Call Validate first.
func (c *Config) CacheOptions() texture.Options {
	filter, _ := texture.ParseFilter(c.Filter)
	return texture.Options{
		Workers:        c.Workers,
		UploadBatch:    c.UploadBatch,
		EvictThreshold: c.EvictThreshold,
		Filter:         filter,
	}
}

// Decoder builds the image decoder. Call Validate first.
func (c *Config) Decoder() *decode.Decoder {
	mode, _ := decode.ParseColorKeyMode(c.ColorKey)
	return decode.New(mode, uint8(c.ColorKeyThreshold)) //nolint:gosec // checked by Validate
}

// Locator builds the local file locator, followed by the object store when
// one is configured. emb may be nil.
func (c *Config) Locator(emb fs.FS) (asset.Chain, *asset.FileLocator, error) {
	files := asset.NewFileLocator(asset.FileOptions{
		GraphicsDir:  c.GraphicsDir,
		ResourceDirs: c.ResourceDirs,
		Extensions:   c.Extensions,
		Embedded:     emb,
		Index:        c.Index,
	})
	chain := asset.Chain{files}

	if o := c.ObjectStore; o != nil {
		objects, err := asset.NewObjectLocator(asset.ObjectOptions{
			Endpoint:   o.Endpoint,
			Bucket:     o.Bucket,
			Prefix:     o.Prefix,
			AccessKey:  o.AccessKey,
			SecretKey:  o.SecretKey,
			Region:     o.Region,
			Secure:     o.Secure,
			Extensions: c.Extensions,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("config: object store: %w", err)
		}
		chain = append(chain, objects)
	}
	return chain, files, nil
}

// NewLogger builds a text or JSON slog logger writing to w.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("config: log level: %w", err)
	}
	return level, nil
}
