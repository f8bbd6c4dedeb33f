package upload

import (
	"bytes"
	"context"
	"errors"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
)

// Stream accumulates sequentially written bytes and uploads them without
// knowing the total size in advance. It stays in single-operation mode
// until the written total exceeds the threshold, then switches to a
// multipart upload and ships full parts as they accumulate.
type Stream struct {
	up   *Uploader
	sess *multipart.Session
	cfg  Config

	// ctx carries the transfer lifetime because Write and Finish have no
	// context parameter of their own.
	ctx context.Context

	bucket string
	key    string

	buf      []byte
	written  int64
	finished bool
	failed   error
}

// OpenStream starts a streaming upload to bucket/key. Bytes written to the
// stream are not visible until Finish returns.
func (u *Uploader) OpenStream(ctx context.Context, bucket, key string, cfg Config) *Stream {
	sess := u.newSession(bucket, key, cfg.Session, cfg, -1)
	return &Stream{
		up:     u,
		sess:   sess,
		cfg:    cfg,
		ctx:    ctx,
		bucket: bucket,
		key:    key,
	}
}

// Written returns the number of bytes accepted so far.
func (st *Stream) Written() int64 {
	return st.written
}

// Write appends p to the stream. Once the written total exceeds the
// threshold the stream enters multipart mode and submits every full part,
// collecting results of finished parts in submission order. A failed part
// surfaces here on a later call and latches the stream as failed.
func (st *Stream) Write(p []byte) (int, error) {
	if st.finished {
		return 0, transfererrors.NewObjectError("write", st.bucket, st.key, transfererrors.ErrWriterClosed)
	}
	if st.failed != nil {
		return 0, st.failed
	}

	st.buf = append(st.buf, p...)
	st.written += int64(len(p))

	if st.sess.Mode() == multipart.ModeUndecided && st.written > st.cfg.SingleOpThreshold {
		if err := st.sess.EnterMultipart(st.ctx); err != nil {
			return 0, st.fail(err)
		}
	}
	if st.sess.Mode() == multipart.ModeMultipart {
		if err := st.flushParts(); err != nil {
			return 0, st.fail(err)
		}
	}
	return len(p), nil
}

// flushParts cuts full parts off the front of the buffer and submits
// them. The current part size is re-read on every cut so the growth
// policy takes effect between parts.
func (st *Stream) flushParts() error {
	for {
		partSize := st.sess.PartSize()
		if int64(len(st.buf)) < partSize {
			return nil
		}
		chunk := st.up.buffers.Get(partSize)
		copy(chunk, st.buf[:partSize])
		rest := copy(st.buf, st.buf[partSize:])
		st.buf = st.buf[:rest]

		if err := st.sess.SubmitPart(st.ctx, chunk, func() { st.up.buffers.Put(chunk) }); err != nil {
			if derr := st.sess.DrainAll(st.ctx); derr != nil {
				return derr
			}
			return err
		}
		if err := st.sess.DrainReady(st.ctx); err != nil {
			return err
		}
	}
}

// Finish flushes remaining bytes and finalizes the object. A stream that
// never crossed the threshold is written in one atomic operation; writing
// nothing produces a valid empty object. The stream is unusable afterwards
// regardless of the outcome.
func (st *Stream) Finish() (*Result, error) {
	if st.finished {
		return nil, transfererrors.NewObjectError("close", st.bucket, st.key, transfererrors.ErrWriterClosed)
	}
	if st.failed != nil {
		st.finished = true
		return nil, st.failed
	}
	st.finished = true

	if st.sess.Mode() == multipart.ModeMultipart {
		if err := st.finishMultipart(); err != nil {
			return nil, st.fail(err)
		}
	} else {
		if err := st.putBuffered(); err != nil {
			return nil, st.fail(err)
		}
	}
	return st.up.finish(st.ctx, st.sess, st.cfg)
}

// Cancel abandons the stream and aborts any multipart upload in progress.
// It is safe to call at any point, including after Finish.
func (st *Stream) Cancel() {
	st.finished = true
	st.sess.Abort(st.ctx)
}

// finishMultipart submits the final short part, waits for all outstanding
// parts, and completes the upload.
func (st *Stream) finishMultipart() error {
	if len(st.buf) > 0 {
		tail := st.buf
		st.buf = nil
		if err := st.sess.SubmitPart(st.ctx, tail, nil); err != nil {
			if derr := st.sess.DrainAll(st.ctx); derr != nil {
				return derr
			}
			return err
		}
	}
	if err := st.sess.DrainAll(st.ctx); err != nil {
		return err
	}
	if err := st.sess.CompleteMultipart(st.ctx); err != nil {
		st.sess.Abort(st.ctx)
		return err
	}
	return nil
}

// putBuffered writes the whole buffered payload in one operation, falling
// back to a multipart upload when the service rejects it as too large.
func (st *Stream) putBuffered() error {
	err := st.sess.PutSingle(st.ctx, st.buf)
	if err == nil {
		if st.cfg.Progress != nil {
			st.cfg.Progress(st.written, -1)
		}
		return nil
	}
	if errors.Is(err, multipart.ErrSingleTooLarge) {
		size := int64(len(st.buf))
		plan, perr := multipart.PlanParts(size, st.cfg.Session.Limits)
		if perr != nil {
			return transfererrors.NewObjectError("close", st.bucket, st.key, perr)
		}
		return st.up.uploadPlanned(st.ctx, st.sess, st.bucket, st.key, bytes.NewReader(st.buf), size, plan)
	}
	return err
}

// fail latches the first error so later calls report it instead of
// attempting further service operations. A latched stream's upload is
// discarded; part failures have already aborted the session during the
// drain, and aborting again is a no-op.
func (st *Stream) fail(err error) error {
	if st.failed == nil {
		st.failed = err
		st.sess.Abort(st.ctx)
	}
	return st.failed
}
