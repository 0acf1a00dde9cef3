package texture

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle state of a Handle.
type State uint8

const (
	// StateUninitialized: no decode requested yet, or the texture was released.
	StateUninitialized State = iota
	// StatePending: a decode is in flight or queued for upload.
	StatePending
	// StateReady: ID names a live texture.
	StateReady
	// StateFailed: the load failed; the key now resolves to Missing.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StatePending:
		return "pending"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}

// Handle is a stable reference to a texture that may not be uploaded yet.
// Renderers may hold it across frames and read it from any goroutine; the
// ID and size are only ever changed by the graphics goroutine.
type Handle struct {
	key  string
	snap atomic.Pointer[snapshot]
}

type snapshot struct {
	state  State
	id     TextureID
	width  int
	height int
}

func newHandle(key string, state State) *Handle {
	h := &Handle{key: key}
	h.snap.Store(&snapshot{state: state})
	return h
}

// Key returns the key the handle was created for.
func (h *Handle) Key() string { return h.key }

// State returns the current lifecycle state.
func (h *Handle) State() State { return h.snap.Load().state }

// ID returns the texture ID, or 0 if none is bound.
func (h *Handle) ID() TextureID { return h.snap.Load().id }

// Size returns the texture dimensions, or 0,0 if none is bound.
func (h *Handle) Size() (width, height int) {
	s := h.snap.Load()
	return s.width, s.height
}

// Ready reports whether the handle is bound to a live texture.
func (h *Handle) Ready() bool { return h.snap.Load().state == StateReady }

func (h *Handle) String() string {
	s := h.snap.Load()
	return fmt.Sprintf("%s[%s id=%d %dx%d]", h.key, s.state, s.id, s.width, s.height)
}

// publish replaces the snapshot. Graphics goroutine only.
func (h *Handle) publish(state State, id TextureID, width, height int) {
	h.snap.Store(&snapshot{state: state, id: id, width: width, height: height})
}

// markPending moves an Uninitialized handle to Pending. It never overwrites
// a state set by the graphics goroutine.
func (h *Handle) markPending() {
	cur := h.snap.Load()
	if cur.state != StateUninitialized {
		return
	}
	h.snap.CompareAndSwap(cur, &snapshot{state: StatePending})
}
