// Package worker runs background jobs on a fixed set of goroutines.
//
// Submit never blocks: jobs are appended to an unbounded FIFO and picked up by
// the next idle worker. The pool owns a context that is canceled by Close, so
// long-running jobs (network reads, large decodes) can observe shutdown.
package worker

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

// Job is a unit of work. ctx is canceled when the pool is closed.
type Job = func(ctx context.Context)

// Pool is a fixed-size worker pool with a non-blocking submit.
type Pool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    *sync.Cond
	jobs    []Job
	running int
	closed  bool

	size   int
	ctx    context.Context
	cancel context.CancelFunc

	submitted atomic.Uint64
	completed atomic.Uint64
	panics    atomic.Uint64
}

// New starts a pool with size workers. size <= 0 means runtime.NumCPU().
func New(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(context.Background())

	p := &Pool{
		size:   size,
		ctx:    ctx,
		cancel: cancel,
	}
	p.cond = sync.NewCond(&p.mu)
	p.idle = sync.NewCond(&p.mu)

	for w := 0; w < size; w++ {
		go p.loop()
	}
	return p
}

// Submit queues job for execution. It reports false if the pool is closed.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	p.jobs = append(p.jobs, job)
	p.mu.Unlock()

	p.submitted.Add(1)
	p.cond.Signal()
	return true
}

func (p *Pool) loop() {
	for {
		p.mu.Lock()
		for len(p.jobs) == 0 && !p.closed {
			p.cond.Wait()
		}
		if p.closed {
			p.mu.Unlock()
			return
		}
		job := p.jobs[0]
		p.jobs[0] = nil
		p.jobs = p.jobs[1:]
		p.running++
		p.mu.Unlock()

		p.run(job)

		p.mu.Lock()
		p.running--
		if p.running == 0 && len(p.jobs) == 0 {
			p.idle.Broadcast()
		}
		p.mu.Unlock()
	}
}

// run executes one job. A panicking job must not take the worker down with it.
func (p *Pool) run(job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
		}
		p.completed.Add(1)
	}()
	job(p.ctx)
}

// Wait blocks until the queue is empty and no job is running, or the pool
// is closed.
func (p *Pool) Wait() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for (p.running > 0 || len(p.jobs) > 0) && !p.closed {
		p.idle.Wait()
	}
}

// Close cancels the pool context and drops queued jobs. Jobs already running
// are not waited for; their goroutines exit once the job returns.
// Close is safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.jobs = nil
	p.mu.Unlock()

	p.cancel()
	p.cond.Broadcast()
	p.idle.Broadcast()
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return p.size
}

// Stats is a point-in-time view of pool counters.
type Stats struct {
	Workers   int
	Queued    int
	Running   int
	Submitted uint64
	Completed uint64
	Panics    uint64
}

// Stats returns current pool counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	queued, running := len(p.jobs), p.running
	p.mu.Unlock()

	return Stats{
		Workers:   p.size,
		Queued:    queued,
		Running:   running,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panics:    p.panics.Load(),
	}
}
