package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"tilerender/internal/decode"
	"tilerender/internal/texture"
)

// Config holds texture cache, asset lookup and logging settings.
type Config struct {
	// Assets
	GraphicsDir  string       `json:"graphics_dir"`
	ResourceDirs []string     `json:"resource_dirs"`
	Extensions   []string     `json:"extensions"`
	Index        bool         `json:"index"`
	ObjectStore  *ObjectStore `json:"object_store,omitempty"`

	// Cache
	Workers        int    `json:"workers"`
	UploadBatch    int    `json:"upload_batch"`
	EvictThreshold int    `json:"evict_threshold"`
	Filter         string `json:"filter"`

	// Decoding
	ColorKey          string `json:"color_key"`
	ColorKeyThreshold int    `json:"color_key_threshold"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// ObjectStore configures an S3-compatible bucket searched after local
// directories.
type ObjectStore struct {
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
	Prefix    string `json:"prefix"`
	AccessKey string `json:"access_key"`
	SecretKey string `json:"secret_key"`
	Region    string `json:"region"`
	Secure    bool   `json:"secure"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	GraphicsDir    string
	Workers        int
	UploadBatch    int
	EvictThreshold int
	Filter         string
	LogLevel       string
	LogFormat      string
}

// Resolve applies flags and fills in any empty fields with defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	if flags.GraphicsDir != "" {
		c.GraphicsDir = flags.GraphicsDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.UploadBatch > 0 {
		c.UploadBatch = flags.UploadBatch
	}
	if flags.EvictThreshold > 0 {
		c.EvictThreshold = flags.EvictThreshold
	}
	if flags.Filter != "" {
		c.Filter = flags.Filter
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}
	if flags.LogFormat != "" {
		c.LogFormat = flags.LogFormat
	}

	if c.GraphicsDir == "" {
		c.GraphicsDir = detectGraphicsDir()
	}

	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.UploadBatch <= 0 {
		c.UploadBatch = texture.DefaultUploadBatch
	}
	if c.EvictThreshold <= 0 {
		c.EvictThreshold = texture.DefaultEvictThreshold
	}
	if c.Filter == "" {
		c.Filter = "nearest"
	}
	if c.ColorKey == "" {
		c.ColorKey = "numeric"
	}
	if c.ColorKeyThreshold <= 0 {
		c.ColorKeyThreshold = decode.DefaultColorKeyThreshold
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "text"
	}
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if _, ok := texture.ParseFilter(c.Filter); !ok {
		return fmt.Errorf("config: unknown filter %q", c.Filter)
	}
	if _, err := decode.ParseColorKeyMode(c.ColorKey); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.ColorKeyThreshold > 255 {
		return fmt.Errorf("config: color_key_threshold %d out of range", c.ColorKeyThreshold)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		return fmt.Errorf("config: unknown log format %q", c.LogFormat)
	}
	if o := c.ObjectStore; o != nil && (o.Endpoint == "" || o.Bucket == "") {
		return fmt.Errorf("config: object_store needs endpoint and bucket")
	}
	return nil
}

// detectGraphicsDir looks for a "graphics" directory next to the executable,
// in its parents, then in the working directory.
func detectGraphicsDir() string {
	exe, _ := os.Executable()
	if exe != "" {
		dir := filepath.Dir(exe)
		for _, base := range []string{dir, filepath.Dir(dir), filepath.Join(dir, "..", "..")} {
			if isDir(filepath.Join(base, "graphics")) {
				return filepath.Join(base, "graphics")
			}
		}
	}

	cwd, _ := os.Getwd()
	for _, p := range []string{filepath.Join(cwd, "graphics"), filepath.Join(cwd, "resources", "graphics")} {
		if isDir(p) {
			return p
		}
	}
	return ""
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}
