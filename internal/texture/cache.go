package texture

import (
	"context"
	"fmt"
	"image"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"tilerender/internal/worker"
)

const (
	// DefaultUploadBatch is the number of uploads DispatchUploads performs
	// per call.
	DefaultUploadBatch = 50

	// DefaultEvictThreshold is the entry count below which EvictAll is a
	// no-op.
	DefaultEvictThreshold = 3000
)

// Options configures a Cache. Zero values select defaults.
type Options struct {
	// Workers sizes the internal decode pool. 0 means runtime.NumCPU().
	// Ignored when Executor is set.
	Workers int

	// UploadBatch caps uploads per DispatchUploads call.
	UploadBatch int

	// EvictThreshold is the minimum number of entries for EvictAll to act.
	EvictThreshold int

	// Filter is applied to every uploaded texture.
	Filter Filter

	// Executor runs decode jobs. nil means an internal worker.Pool owned
	// and closed by the Cache.
	Executor Executor

	// FailureLogRate limits warnings about failed loads, per second.
	// 0 means 10.
	FailureLogRate float64
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.UploadBatch <= 0 {
		o.UploadBatch = DefaultUploadBatch
	}
	if o.EvictThreshold <= 0 {
		o.EvictThreshold = DefaultEvictThreshold
	}
	if o.FailureLogRate <= 0 {
		o.FailureLogRate = 10
	}
	return o
}

// job is one decode request. Its pointer identity is the registration in the
// pending set: a result is only applied while pending still maps its key to
// the same job.
type job struct {
	key    string
	handle *Handle
}

// Cache maps keys to texture handles and streams decoded pixels onto the
// GPU. Get and RequestDecode are safe from any goroutine; the remaining
// methods belong to the graphics goroutine.
type Cache struct {
	dev  Device
	loc  Locator
	dec  Decoder
	exec Executor
	pool *worker.Pool // non-nil when the cache owns its executor
	opts Options

	// gate orders Get, RequestDecode and worker completions (shared) against
	// EvictAll and Close (exclusive).
	gate    sync.RWMutex
	entries *shardMap[*Handle]
	pending *shardMap[*job]
	failed  *shardMap[*failure]
	unswept failList
	// sweepMu orders the Missing rebinding against RetryFailedTextures.
	sweepMu sync.Mutex
	queue   uploadQueue

	white   *Handle
	missing *Handle

	owner  ownerGuard
	closed atomic.Bool

	submitted atomic.Uint64
	produced  atomic.Uint64
	uploaded  atomic.Uint64
	dropped   atomic.Uint64
	preloaded atomic.Uint64

	failLog    *rate.Limiter
	suppressed atomic.Int64
}

// New returns a cache that loads through loc and dec and uploads to dev.
// dev, loc and dec must be non-nil.
func New(dev Device, loc Locator, dec Decoder, opts Options) *Cache {
	opts = opts.withDefaults()
	c := &Cache{
		dev:     dev,
		loc:     loc,
		dec:     dec,
		exec:    opts.Executor,
		opts:    opts,
		entries: newShardMap[*Handle](),
		pending: newShardMap[*job](),
		failed:  newShardMap[*failure](),
		white:   newHandle(whiteKey, StateUninitialized),
		missing: newHandle(missingKey, StateUninitialized),
		failLog: rate.NewLimiter(rate.Limit(opts.FailureLogRate), failureBurst(opts.FailureLogRate)),
	}
	if c.exec == nil {
		c.pool = worker.New(opts.Workers)
		c.exec = c.pool
	}
	return c
}

// Get returns the handle for key without blocking. A miss stores a
// placeholder and requests a decode; a key that already failed resolves to
// the Missing handle. The returned handle may not be Ready yet.
func (c *Cache) Get(key string) *Handle {
	if c.closed.Load() {
		return c.missing
	}

	c.gate.RLock()
	h, ok := c.entries.Load(key)
	if !ok {
		if _, failed := c.failed.Load(key); failed {
			c.gate.RUnlock()
			return c.missing
		}
		h, _ = c.entries.LoadOrCreate(key, func() *Handle {
			return newHandle(key, StateUninitialized)
		})
	}
	j := c.register(key, h)
	c.gate.RUnlock()

	if j != nil {
		c.submit(j)
	}
	return h
}

// RequestDecode makes sure a decode for key is in flight without returning a
// handle. It is a no-op for keys that are ready, pending or failed.
func (c *Cache) RequestDecode(key string) {
	if c.closed.Load() {
		return
	}

	c.gate.RLock()
	var j *job
	if _, failed := c.failed.Load(key); !failed {
		h, _ := c.entries.LoadOrCreate(key, func() *Handle {
			return newHandle(key, StateUninitialized)
		})
		j = c.register(key, h)
	}
	c.gate.RUnlock()

	if j != nil {
		c.submit(j)
	}
}

// register claims the pending slot for key if h still needs a decode. It
// returns nil when there is nothing to submit. Caller holds gate shared.
func (c *Cache) register(key string, h *Handle) *job {
	if h == c.white || h == c.missing || h.State() != StateUninitialized {
		return nil
	}
	if _, ok := c.pending.Load(key); ok {
		return nil
	}
	j := &job{key: key, handle: h}
	if _, loaded := c.pending.LoadOrStore(key, j); loaded {
		return nil
	}
	h.markPending()
	return j
}

func (c *Cache) submit(j *job) {
	c.submitted.Add(1)
	if !c.exec.Submit(func(ctx context.Context) { c.run(ctx, j) }) {
		c.fail(j, FailureTransientIO, ErrClosed)
	}
}

// run is the worker side of a job: locate, decode, enqueue.
func (c *Cache) run(ctx context.Context, j *job) {
	img, kind, err := c.load(ctx, j.key)
	if err != nil {
		c.fail(j, kind, err)
		return
	}

	c.gate.RLock()
	defer c.gate.RUnlock()
	if !c.current(j) {
		c.releaseImage(img)
		slogger().Debug("texture: dropped stale decode", "key", j.key)
		return
	}
	c.queue.push(payload{job: j, img: img})
	c.produced.Add(1)
}

// load locates and decodes key on the calling goroutine. A panicking decoder
// is reported as a decode failure.
func (c *Cache) load(ctx context.Context, key string) (img *image.NRGBA, kind FailureKind, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, kind, err = nil, FailureDecode, fmt.Errorf("decoder panic: %v", r)
		}
	}()

	raw, err := c.loc.Locate(ctx, key)
	if err != nil {
		return nil, FailureTransientIO, err
	}
	if len(raw) == 0 {
		return nil, FailureTransientIO, ErrNoData
	}

	img, err = c.dec.Decode(key, raw)
	if err != nil {
		return nil, FailureDecode, err
	}
	if img == nil {
		return nil, FailureDecode, ErrNoImage
	}
	return img, 0, nil
}

// current reports whether j is still the registered request for its key.
func (c *Cache) current(j *job) bool {
	cur, ok := c.pending.Load(j.key)
	return ok && cur == j
}

// fail records a failure for j unless j was superseded by an eviction or a
// synchronous load.
func (c *Cache) fail(j *job, kind FailureKind, err error) {
	c.gate.RLock()
	defer c.gate.RUnlock()
	if !c.pending.CompareAndDelete(j.key, j) {
		slogger().Debug("texture: dropped stale failure", "key", j.key, "err", err)
		return
	}
	c.recordFailure(j, kind, err)
}

// recordFailure adds key to the FailedSet and schedules its rebinding to
// Missing on the next dispatch.
func (c *Cache) recordFailure(j *job, kind FailureKind, err error) {
	f := &failure{job: j, err: &LoadError{Key: j.key, Kind: kind, Err: err}}
	c.failed.Store(j.key, f)
	c.unswept.push(f)
	c.logFailure(f.err)
}

func (c *Cache) logFailure(err *LoadError) {
	if !c.failLog.Allow() {
		c.suppressed.Add(1)
		return
	}
	attrs := []any{"key", err.Key, "kind", err.Kind.String(), "err", err.Err}
	if n := c.suppressed.Swap(0); n > 0 {
		attrs = append(attrs, "suppressed", n)
	}
	slogger().Warn("texture: load failed", attrs...)
}

// failureBurst allows two seconds' worth of warnings at once, and at least
// one so slow rates still log.
func failureBurst(perSec float64) int {
	return max(1, int(math.Ceil(perSec*2)))
}

func (c *Cache) releaseImage(img *image.NRGBA) {
	if r, ok := c.dec.(releaser); ok && img != nil {
		r.Release(img)
	}
}

// Close stops the decode pool, discards queued uploads and destroys every
// texture, sentinels included. Handles still held by callers read as
// Uninitialized afterwards; Get returns the Missing handle. Close must be
// called from the graphics goroutine and is safe to call more than once.
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	defer c.owner.enter("Close")()

	if c.pool != nil {
		c.pool.Close()
	}

	c.gate.Lock()
	released := c.releaseAll()
	c.gate.Unlock()

	for _, h := range []*Handle{c.white, c.missing} {
		if id := h.ID(); id != 0 {
			c.dev.DestroyTexture(id)
			released++
		}
		h.publish(StateUninitialized, 0, 0, 0)
	}
	slogger().Info("texture: cache closed", "released", released)
	return nil
}

// Stats is a point-in-time view of cache counters. Produced counts decodes
// that reached the upload queue; each of them is later either Uploaded,
// Dropped or still Queued. Preloaded counts uploads done by PreloadSync and
// SyncLoad, which bypass the queue.
type Stats struct {
	Entries int
	Pending int
	Failed  int
	Queued  int

	Submitted uint64
	Produced  uint64
	Uploaded  uint64
	Dropped   uint64
	Preloaded uint64
}

// Stats returns current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:   c.entries.Len(),
		Pending:   c.pending.Len(),
		Failed:    c.failed.Len(),
		Queued:    c.queue.len(),
		Submitted: c.submitted.Load(),
		Produced:  c.produced.Load(),
		Uploaded:  c.uploaded.Load(),
		Dropped:   c.dropped.Load(),
		Preloaded: c.preloaded.Load(),
	}
}

// Failure describes a key in the FailedSet.
type Failure struct {
	Key  string
	Kind FailureKind
	Err  error
}

// Failures returns the current FailedSet in no particular order.
func (c *Cache) Failures() []Failure {
	var out []Failure
	c.failed.Range(func(key string, f *failure) bool {
		out = append(out, Failure{Key: key, Kind: f.err.Kind, Err: f.err})
		return true
	})
	return out
}

// ownerGuard detects overlapping graphics-thread calls. Two goroutines
// taking turns without overlap go unnoticed; that is still a bug, but not
// one that corrupts cache state.
type ownerGuard struct {
	busy atomic.Bool
}

func (g *ownerGuard) enter(op string) func() {
	if !g.busy.CompareAndSwap(false, true) {
		panic(fmt.Errorf("%w: %s", ErrContextViolation, op))
	}
	return func() { g.busy.Store(false) }
}
