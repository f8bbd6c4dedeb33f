// Package scheduler implements bounded background execution for part transfers.
package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// DefaultConcurrency is the pool size used when none is configured.
const DefaultConcurrency = 5

// Pool runs submitted functions on a bounded number of goroutines.
// Schedule blocks while all slots are busy, which gives submitters natural
// backpressure against runaway buffering.
type Pool struct {
	semaphore chan struct{}
	wg        sync.WaitGroup
}

// NewPool creates a pool running at most maxConcurrency functions at once.
// Non-positive values select DefaultConcurrency.
func NewPool(maxConcurrency int) *Pool {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency
	}
	return &Pool{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

// Schedule acquires a slot and runs fn on its own goroutine. It blocks
// until a slot frees or ctx is done; once it returns nil, fn is guaranteed
// to run and release its slot when it returns.
func (p *Pool) Schedule(ctx context.Context, fn func()) error {
	select {
	case p.semaphore <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during semaphore acquisition: %w", ctx.Err())
	}

	p.wg.Add(1)
	go func() {
		defer func() {
			<-p.semaphore
			p.wg.Done()
		}()
		fn()
	}()
	return nil
}

// Wait blocks until every scheduled function has returned.
func (p *Pool) Wait() {
	p.wg.Wait()
}

// Stats reports the pool's concurrency state.
type Stats struct {
	MaxConcurrency int
	InFlight       int
	AvailableSlots int
}

// GetStats returns a snapshot of the pool's current utilization.
func (p *Pool) GetStats() Stats {
	inFlight := len(p.semaphore)
	return Stats{
		MaxConcurrency: cap(p.semaphore),
		InFlight:       inFlight,
		AvailableSlots: cap(p.semaphore) - inFlight,
	}
}
