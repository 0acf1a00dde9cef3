package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_DefaultSize(t *testing.T) {
	p := New(0)
	defer p.Close()

	require.Greater(t, p.Size(), 0)
}

func TestPool_RunsAllJobs(t *testing.T) {
	p := New(4)
	defer p.Close()

	var n atomic.Int64
	for i := 0; i < 1000; i++ {
		require.True(t, p.Submit(func(context.Context) { n.Add(1) }))
	}
	p.Wait()

	assert.Equal(t, int64(1000), n.Load())
	st := p.Stats()
	assert.Equal(t, uint64(1000), st.Submitted)
	assert.Equal(t, uint64(1000), st.Completed)
	assert.Equal(t, 0, st.Queued)
	assert.Equal(t, 0, st.Running)
}

func TestPool_SubmitDoesNotBlock(t *testing.T) {
	p := New(1)
	defer p.Close()

	release := make(chan struct{})
	require.True(t, p.Submit(func(context.Context) { <-release }))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			p.Submit(func(context.Context) {})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Submit blocked while the only worker was busy")
	}
	close(release)
	p.Wait()
}

func TestPool_PanicKeepsWorkerAlive(t *testing.T) {
	p := New(1)
	defer p.Close()

	p.Submit(func(context.Context) { panic("boom") })
	var ran atomic.Bool
	p.Submit(func(context.Context) { ran.Store(true) })
	p.Wait()

	assert.True(t, ran.Load())
	assert.Equal(t, uint64(1), p.Stats().Panics)
}

func TestPool_CloseCancelsContextAndRejects(t *testing.T) {
	p := New(2)

	started := make(chan struct{})
	var canceled atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit(func(ctx context.Context) {
		defer wg.Done()
		close(started)
		<-ctx.Done()
		canceled.Store(true)
	})
	<-started

	p.Close()
	p.Close()
	wg.Wait()

	assert.True(t, canceled.Load())
	assert.False(t, p.Submit(func(context.Context) {}))
}

func TestPool_CloseDropsQueued(t *testing.T) {
	p := New(1)

	block := make(chan struct{})
	p.Submit(func(context.Context) { <-block })
	var ran atomic.Int64
	for i := 0; i < 10; i++ {
		p.Submit(func(context.Context) { ran.Add(1) })
	}

	p.Close()
	close(block)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int64(0), ran.Load())
	assert.Equal(t, 0, p.Stats().Queued)
}
