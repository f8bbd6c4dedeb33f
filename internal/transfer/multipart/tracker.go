package multipart

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// The session tracks background part transfers in a submission-order queue.
// added counts every task ever enqueued and finished counts every task whose
// worker has returned; the two converge exactly when no transfer is in
// flight. Results are only ever applied from the head of the queue, so parts
// accumulate in submission order no matter how workers interleave.

// enqueue registers a task at the tail of the submission-order queue.
func (s *Session) enqueue(t *task) {
	s.mu.Lock()
	s.queue = append(s.queue, t)
	s.added++
	s.mu.Unlock()
}

// finishTask records a task's outcome and wakes drains waiting for
// convergence. Every enqueued task must be finished exactly once, including
// on scheduling failures and abort short-circuits.
func (s *Session) finishTask(t *task, etag string, err error) {
	s.mu.Lock()
	t.etag = etag
	t.err = err
	t.done = true
	s.finished++
	s.cond.Broadcast()
	s.mu.Unlock()
}

// DrainReady applies every finished task at the head of the queue without
// waiting for transfers still in flight. When an applied result carries a
// failure, the drain first waits out all outstanding transfers so every task
// is accounted for, then aborts the upload and reports the first failure.
func (s *Session) DrainReady(ctx context.Context) error {
	return s.drain(ctx, false)
}

// DrainAll waits until every submitted transfer has finished, then applies
// all results in submission order. On failure the upload is aborted, results
// after the first failure are discarded, and the first failure in submission
// order is returned.
func (s *Session) DrainAll(ctx context.Context) error {
	return s.drain(ctx, true)
}

func (s *Session) drain(ctx context.Context, waitAll bool) error {
	s.mu.Lock()
	if waitAll {
		for s.added != s.finished {
			s.cond.Wait()
		}
	}

	var firstErr error
	var applied []int64
	for len(s.queue) > 0 && s.queue[0].done {
		t := s.queue[0]
		s.queue = s.queue[1:]
		n, err := s.applyLocked(t)
		if err != nil && firstErr == nil {
			firstErr = err
		}
		if n > 0 {
			applied = append(applied, n)
		}
	}

	if firstErr != nil && !waitAll {
		// A failure surfaced mid-stream. Wait out the remaining transfers
		// so no task is left unaccounted, then discard their results.
		for s.added != s.finished {
			s.cond.Wait()
		}
		for len(s.queue) > 0 {
			t := s.queue[0]
			s.queue = s.queue[1:]
			_, _ = s.applyLocked(t)
		}
	}
	s.mu.Unlock()

	if s.partApplied != nil {
		for _, n := range applied {
			s.partApplied(n)
		}
	}
	if firstErr != nil {
		s.Abort(ctx)
	}
	return firstErr
}

// applyLocked applies one finished task's result. A failed task marks the
// session aborted so every later result becomes inert; results arriving
// after an abort are discarded rather than recorded.
func (s *Session) applyLocked(t *task) (int64, error) {
	if t.err != nil {
		s.aborted = true
		return 0, t.err
	}
	if s.aborted {
		return 0, nil
	}
	s.parts = append(s.parts, awstypes.CompletedPart{
		ETag:       aws.String(t.etag),
		PartNumber: aws.Int32(t.partNumber),
	})
	s.completedBytes += t.size
	return t.size, nil
}

// InFlight reports the number of submitted transfers not yet finished.
func (s *Session) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.added - s.finished
}

// Pending reports the number of submitted transfers whose results have not
// been applied yet.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
