package asset

import (
	"sync"

	"github.com/klauspost/compress/zstd"
)

// A single decoder serves all goroutines; DecodeAll is safe for concurrent use.
var (
	zdecOnce sync.Once
	zdec     *zstd.Decoder
	zdecErr  error
)

// maxDecompressed bounds a single decompressed asset.
const maxDecompressed = 256 << 20

func decompress(raw []byte) ([]byte, error) {
	zdecOnce.Do(func() {
		zdec, zdecErr = zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(0),
			zstd.WithDecoderMaxMemory(maxDecompressed),
		)
	})
	if zdecErr != nil {
		return nil, zdecErr
	}
	return zdec.DecodeAll(raw, nil)
}
