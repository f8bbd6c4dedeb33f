// Package upload orchestrates object uploads from readers and streams.
// This includes single-operation writes, planned multipart uploads, and
// stream-based uploads where the total size is unknown until close.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
)

// Uploader runs upload sessions against a storage client and a part
// scheduler shared across transfers.
type Uploader struct {
	api     s3api.S3API
	sched   multipart.Scheduler
	logger  *slog.Logger
	events  multipart.EventRecorder
	buffers *pool.PartBuffers
}

// New creates a new Uploader instance.
func New(api s3api.S3API, sched multipart.Scheduler, logger *slog.Logger, events multipart.EventRecorder) *Uploader {
	return &Uploader{
		api:     api,
		sched:   sched,
		logger:  logger,
		events:  events,
		buffers: pool.NewPartBuffers(),
	}
}

// Config carries the per-transfer settings resolved by the public client.
type Config struct {
	// Session holds the part limits, growth policy, retry budget, and
	// object attributes handed to the upload session.
	Session multipart.Settings

	// SingleOpThreshold is the largest size written in one operation.
	// Anything above it goes through a multipart upload.
	SingleOpThreshold int64

	// Verify checks object existence with a metadata read after the
	// upload completes.
	Verify bool

	// Progress, when set, receives cumulative transferred bytes. The
	// total is the transfer size, or -1 when it is unknown.
	Progress func(transferred, total int64)
}

// Result describes one finished upload.
type Result struct {
	ETag      string
	Size      int64
	Parts     int32
	Multipart bool
}

// Upload writes size bytes from reader to bucket/key. Transfers at or
// below the threshold use a single atomic write; larger ones are split
// into a uniform multipart plan and uploaded concurrently.
func (u *Uploader) Upload(
	ctx context.Context,
	bucket, key string,
	reader io.Reader,
	size int64,
	cfg Config,
) (*Result, error) {
	if size <= 0 {
		return nil, transfererrors.NewObjectError("upload", bucket, key,
			fmt.Errorf("%w: transfer size must be positive, got %d", transfererrors.ErrInvalidConfig, size))
	}

	// Known sizes are split up front; the growth policy applies only to
	// streams that discover their size as they go.
	settings := cfg.Session
	settings.GrowthEvery = 0
	sess := u.newSession(bucket, key, settings, cfg, size)

	if size <= cfg.SingleOpThreshold {
		return u.uploadSingle(ctx, sess, bucket, key, reader, size, cfg)
	}

	plan, err := multipart.PlanParts(size, settings.Limits)
	if err != nil {
		return nil, transfererrors.NewObjectError("upload", bucket, key, err)
	}
	if err := u.uploadPlanned(ctx, sess, bucket, key, reader, size, plan); err != nil {
		return nil, err
	}
	return u.finish(ctx, sess, cfg)
}

// newSession builds a session wired to the shared scheduler, with part
// completion forwarded to the progress callback when one is set.
func (u *Uploader) newSession(
	bucket, key string,
	settings multipart.Settings,
	cfg Config,
	total int64,
) *multipart.Session {
	deps := multipart.Deps{
		Scheduler: u.sched,
		Logger:    u.logger,
		Events:    u.events,
	}
	if cfg.Progress != nil {
		var transferred int64
		deps.PartApplied = func(n int64) {
			transferred += n
			cfg.Progress(transferred, total)
		}
	}
	return multipart.NewUploadSession(u.api, bucket, key, settings, deps)
}

// uploadSingle buffers the payload and writes it in one operation. A
// rejection for size falls back to a multipart upload of the same bytes.
func (u *Uploader) uploadSingle(
	ctx context.Context,
	sess *multipart.Session,
	bucket, key string,
	reader io.Reader,
	size int64,
	cfg Config,
) (*Result, error) {
	payload := u.buffers.Get(size)
	defer u.buffers.Put(payload)

	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, transfererrors.NewObjectError("upload", bucket, key,
			fmt.Errorf("reading source data: %w", err))
	}

	err := sess.PutSingle(ctx, payload)
	if err == nil {
		if cfg.Progress != nil {
			cfg.Progress(size, size)
		}
		return u.finish(ctx, sess, cfg)
	}
	if errors.Is(err, multipart.ErrSingleTooLarge) {
		// The payload is already in memory, so replay it as parts.
		plan, perr := multipart.PlanParts(size, cfg.Session.Limits)
		if perr != nil {
			return nil, transfererrors.NewObjectError("upload", bucket, key, perr)
		}
		if err := u.uploadPlanned(ctx, sess, bucket, key, bytes.NewReader(payload), size, plan); err != nil {
			return nil, err
		}
		return u.finish(ctx, sess, cfg)
	}
	return nil, err
}

// uploadPlanned runs a multipart upload over a fixed part plan, reading
// each part into a pooled buffer and submitting it for concurrent
// transfer. Any failure drains outstanding parts before returning so the
// upload is either completed or aborted, never dangling.
func (u *Uploader) uploadPlanned(
	ctx context.Context,
	sess *multipart.Session,
	bucket, key string,
	reader io.Reader,
	size int64,
	plan multipart.PartPlan,
) error {
	if err := sess.EnterMultipart(ctx); err != nil {
		return err
	}
	sess.SetPartSize(plan.PartSize)

	remaining := size
	for i := int64(0); i < plan.PartCount; i++ {
		n := plan.PartSize
		if n > remaining {
			n = remaining
		}
		buf := u.buffers.Get(n)
		if _, err := io.ReadFull(reader, buf); err != nil {
			u.buffers.Put(buf)
			if derr := sess.DrainAll(ctx); derr != nil {
				return derr
			}
			sess.Abort(ctx)
			return transfererrors.NewObjectError("upload", bucket, key,
				fmt.Errorf("reading source data: %w", err))
		}
		if err := sess.SubmitPart(ctx, buf, func() { u.buffers.Put(buf) }); err != nil {
			if derr := sess.DrainAll(ctx); derr != nil {
				return derr
			}
			sess.Abort(ctx)
			return err
		}
		remaining -= n
	}

	if err := sess.DrainAll(ctx); err != nil {
		return err
	}
	if err := sess.CompleteMultipart(ctx); err != nil {
		sess.Abort(ctx)
		return err
	}
	return nil
}

// finish optionally verifies the stored object and assembles the result.
func (u *Uploader) finish(ctx context.Context, sess *multipart.Session, cfg Config) (*Result, error) {
	if cfg.Verify {
		if err := sess.Verify(ctx); err != nil {
			return nil, err
		}
	}
	return &Result{
		ETag:      sess.ETag(),
		Size:      sess.CompletedBytes(),
		Parts:     sess.PartCount(),
		Multipart: sess.Mode() == multipart.ModeMultipart,
	}, nil
}
