// Package pool provides memory management optimizations.
// This includes part buffer pooling to reduce allocations when uploads cut
// many same-sized parts from a stream.
package pool

import (
	"sync"
)

// PartBuffers manages reusable part-sized buffers. Part sizes within one
// transfer are uniform or grow monotonically, so recycled buffers usually
// satisfy the next request without a fresh allocation.
type PartBuffers struct {
	pool sync.Pool
}

// NewPartBuffers creates an empty part buffer pool.
func NewPartBuffers() *PartBuffers {
	return &PartBuffers{}
}

// Get returns a buffer of exactly size bytes. Recycled capacity is reused
// when large enough; undersized recycled buffers are dropped for the
// garbage collector.
func (p *PartBuffers) Get(size int64) []byte {
	if v, ok := p.pool.Get().(*[]byte); ok && v != nil && int64(cap(*v)) >= size {
		return (*v)[:size]
	}
	return make([]byte, size)
}

// Put returns a buffer to the pool for reuse. The caller must not touch
// the buffer afterwards.
func (p *PartBuffers) Put(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	buf = buf[:0]
	p.pool.Put(&buf)
}
