// Package texture is an asynchronous GPU texture cache for a tile renderer.
//
// Get never blocks: a miss stores a placeholder Handle and submits a decode
// job to a worker pool. Workers locate and decode the bytes and queue the
// pixels; they never touch the Device. The goroutine that owns the graphics
// context calls DispatchUploads once per frame, which uploads a bounded batch
// into the waiting placeholders and rebinds keys that failed to the shared
// Missing checkerboard.
//
// Key lifecycle:
//
//	Get(k) miss ──► placeholder (Pending) ──► worker decode ──┬─► queue ──► DispatchUploads ──► Ready
//	                                                         └─► FailedSet ──► DispatchUploads ──► Missing
//
// Failures are terminal until RetryFailedTextures or EvictAll clears them.
// EvictAll only acts once the cache holds at least Options.EvictThreshold
// entries, and it also forgets every failure so a new scene starts clean.
//
// Graphics-thread calls (DispatchUploads, EvictAll, WhiteTexture,
// MissingTexture, PreloadSync, SyncLoad, Close) must come from a single
// goroutine; overlapping calls panic with ErrContextViolation.
// RetryFailedTextures may be called from any goroutine. Renderers
// backed by thread-affine APIs should call runtime.LockOSThread in their
// render loop.
package texture
