// Package pool provides memory management optimizations.
// This includes part buffer pooling to reduce allocations during
// multipart uploads.
//
// The pool package helps optimize performance for high-throughput transfers
// by reusing part-sized buffers across submissions.
package pool
