package asset

import (
	"context"
	"errors"
	"fmt"
)

// Source is anything that can resolve a key to bytes.
type Source interface {
	Locate(ctx context.Context, key string) ([]byte, error)
}

// Chain tries each source in order. A source reporting ErrNotFound passes the
// key on; any other error stops the chain, since it means the asset exists
// but could not be read right now.
type Chain []Source

// Locate implements Source.
func (c Chain) Locate(ctx context.Context, key string) ([]byte, error) {
	for _, s := range c {
		data, err := s.Locate(ctx, key)
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("asset: %q in %d sources: %w", key, len(c), ErrNotFound)
}
