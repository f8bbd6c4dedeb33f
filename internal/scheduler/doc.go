// Package scheduler provides the bounded worker pool that runs part
// transfers in the background.
//
// The pool enforces a concurrency limit through semaphore-based slot
// acquisition and tracks completion so callers can wait for all scheduled
// work to finish.
package scheduler
