package texture

import (
	"errors"
	"fmt"
)

var (
	// ErrContextViolation reports overlapping graphics-thread calls. It is a
	// programming error and is raised with panic, never returned.
	ErrContextViolation = errors.New("texture: graphics call from a second goroutine")

	// ErrClosed is recorded for jobs that could not be submitted after Close.
	ErrClosed = errors.New("texture: cache closed")

	// ErrNoData is recorded when a locator returns neither bytes nor an error.
	ErrNoData = errors.New("texture: locator returned no data")

	// ErrNoImage is recorded when a decoder returns neither pixels nor an error.
	ErrNoImage = errors.New("texture: decoder returned no image")
)

// FailureKind classifies why a key could not be loaded.
type FailureKind uint8

const (
	// FailureTransientIO: the bytes were unavailable (missing, locked, I/O
	// error). Usually recoverable with RetryFailedTextures.
	FailureTransientIO FailureKind = iota
	// FailureDecode: the bytes were present but unparsable. Recoverable only
	// once the asset itself is fixed.
	FailureDecode
	// FailureUpload: the device rejected the texture.
	FailureUpload
)

func (k FailureKind) String() string {
	switch k {
	case FailureTransientIO:
		return "io"
	case FailureDecode:
		return "decode"
	case FailureUpload:
		return "upload"
	default:
		return fmt.Sprintf("FailureKind(%d)", k)
	}
}

// LoadError is the cause recorded for a failed key.
type LoadError struct {
	Key  string
	Kind FailureKind
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("texture: %s: %s: %v", e.Key, e.Kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }
