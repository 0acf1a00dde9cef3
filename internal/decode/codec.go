package decode

import (
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/bmp"
	"golang.org/x/image/webp"
)

// codec pairs a format's decoders. Dispatch is explicit rather than through
// image.Decode because the TGA package registers an empty magic string,
// which would shadow every format registered after it.
type codec struct {
	name   string
	config func(io.Reader) (image.Config, error)
	decode func(io.Reader) (image.Image, error)
}

var (
	codecPNG  = codec{"png", png.DecodeConfig, png.Decode}
	codecJPEG = codec{"jpeg", jpeg.DecodeConfig, jpeg.Decode}
	codecGIF  = codec{"gif", gif.DecodeConfig, gif.Decode}
	codecBMP  = codec{"bmp", bmp.DecodeConfig, bmp.Decode}
	codecWebP = codec{"webp", webp.DecodeConfig, webp.Decode}
	codecTGA  = codec{"tga", tga.DecodeConfig, tga.Decode}
)

var (
	magicPNG  = []byte("\x89PNG\r\n\x1a\n")
	magicJPEG = []byte{0xff, 0xd8}
	magicGIF  = []byte("GIF8")
	magicBMP  = []byte("BM")
	magicRIFF = []byte("RIFF")
	magicWebP = []byte("WEBP")
)

func sniff(raw []byte) codec {
	switch {
	case bytes.HasPrefix(raw, magicPNG):
		return codecPNG
	case bytes.HasPrefix(raw, magicJPEG):
		return codecJPEG
	case bytes.HasPrefix(raw, magicGIF):
		return codecGIF
	case bytes.HasPrefix(raw, magicBMP):
		return codecBMP
	case len(raw) >= 12 && bytes.HasPrefix(raw, magicRIFF) && bytes.Equal(raw[8:12], magicWebP):
		return codecWebP
	}
	return codecTGA
}
