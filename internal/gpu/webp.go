package gpu

import (
	"fmt"
	"image"
	"io"
	"os"

	"github.com/HugoSmits86/nativewebp"

	"tilerender/internal/texture"
)

// EncodeWebP writes img as lossless WebP.
func EncodeWebP(w io.Writer, img image.Image) error {
	if err := nativewebp.Encode(w, img, nil); err != nil {
		return fmt.Errorf("gpu: encode webp: %w", err)
	}
	return nil
}

// WriteWebP encodes img to path.
func WriteWebP(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("gpu: create %s: %w", path, err)
	}
	if err := EncodeWebP(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Snapshot writes texture id of s to path as WebP.
func (s *Soft) Snapshot(id texture.TextureID, path string) error {
	img, ok := s.Image(id)
	if !ok {
		return fmt.Errorf("gpu: snapshot: texture %d not live", id)
	}
	return WriteWebP(path, img)
}
