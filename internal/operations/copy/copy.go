// Package copy orchestrates server-side object copies. Whole objects and
// explicit byte ranges are copied without moving data through the client.
package copy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
)

// Copier runs server-side copy sessions against a storage client and a
// part scheduler shared across transfers.
type Copier struct {
	api    s3api.S3API
	sched  multipart.Scheduler
	logger *slog.Logger
	events multipart.EventRecorder
}

// New creates a new Copier instance.
func New(api s3api.S3API, sched multipart.Scheduler, logger *slog.Logger, events multipart.EventRecorder) *Copier {
	return &Copier{
		api:    api,
		sched:  sched,
		logger: logger,
		events: events,
	}
}

// Config carries the per-transfer settings resolved by the public client.
type Config struct {
	// Session holds the part limits, retry budget, and destination object
	// attributes handed to the copy session.
	Session multipart.Settings

	// SingleOpThreshold is the largest size copied in one operation.
	SingleOpThreshold int64

	// Verify checks destination existence with a metadata read after the
	// copy completes.
	Verify bool

	// Progress, when set, receives cumulative copied bytes against the
	// range total.
	Progress func(transferred, total int64)
}

// Result describes one finished copy.
type Result struct {
	ETag      string
	Size      int64
	Parts     int32
	Multipart bool
}

// Copy copies the whole source object to the destination, choosing between
// an atomic copy and a concurrent multipart range copy based on the source
// size.
func (c *Copier) Copy(
	ctx context.Context,
	srcBucket, srcKey, dstBucket, dstKey string,
	cfg Config,
) (*Result, error) {
	size, err := c.sourceSize(ctx, "copy", srcBucket, srcKey)
	if err != nil {
		return nil, err
	}
	return c.copyRange(ctx, srcBucket, srcKey, dstBucket, dstKey, 0, size, size, cfg)
}

// CopyRange copies length bytes starting at offset from the source object
// into the destination. The copy is atomic only when the range spans the
// entire source object and fits the single-operation threshold; otherwise
// the range is split into parts copied server-side.
func (c *Copier) CopyRange(
	ctx context.Context,
	srcBucket, srcKey, dstBucket, dstKey string,
	offset, length int64,
	cfg Config,
) (*Result, error) {
	if offset < 0 {
		return nil, transfererrors.NewObjectError("copyRange", srcBucket, srcKey,
			fmt.Errorf("%w: range offset must not be negative, got %d", transfererrors.ErrInvalidConfig, offset))
	}
	if length <= 0 {
		return nil, transfererrors.NewObjectError("copyRange", srcBucket, srcKey,
			fmt.Errorf("%w: range length must be positive, got %d", transfererrors.ErrInvalidConfig, length))
	}

	// Only a range that starts at zero and fits the threshold can possibly
	// be a whole-object atomic copy; anything else never needs the source
	// size.
	srcSize := int64(-1)
	if offset == 0 && length <= cfg.SingleOpThreshold {
		size, err := c.sourceSize(ctx, "copyRange", srcBucket, srcKey)
		if err != nil {
			return nil, err
		}
		srcSize = size
	}
	return c.copyRange(ctx, srcBucket, srcKey, dstBucket, dstKey, offset, length, srcSize, cfg)
}

func (c *Copier) copyRange(
	ctx context.Context,
	srcBucket, srcKey, dstBucket, dstKey string,
	offset, length, srcSize int64,
	cfg Config,
) (*Result, error) {
	settings := cfg.Session
	settings.GrowthEvery = 0
	sess := c.newSession(srcBucket, srcKey, dstBucket, dstKey, settings, cfg, length)

	wholeObject := offset == 0 && length == srcSize
	if wholeObject && length <= cfg.SingleOpThreshold {
		err := sess.CopySingle(ctx, length)
		if err == nil {
			if cfg.Progress != nil {
				cfg.Progress(length, length)
			}
			return c.finish(ctx, sess, cfg)
		}
		if !errors.Is(err, multipart.ErrSingleTooLarge) {
			return nil, err
		}
		// Fall through and copy the same range in parts.
	}

	plan, err := multipart.PlanParts(length, settings.Limits)
	if err != nil {
		return nil, transfererrors.NewObjectError("copyRange", dstBucket, dstKey, err)
	}
	if err := c.copyParts(ctx, sess, offset, length, plan); err != nil {
		return nil, err
	}
	return c.finish(ctx, sess, cfg)
}

// copyParts splits [offset, offset+length) into planned parts and submits
// each as a server-side range copy. Any failure drains outstanding parts
// before returning so the upload is either completed or aborted.
func (c *Copier) copyParts(
	ctx context.Context,
	sess *multipart.Session,
	offset, length int64,
	plan multipart.PartPlan,
) error {
	if err := sess.EnterMultipart(ctx); err != nil {
		return err
	}
	sess.SetPartSize(plan.PartSize)

	remaining := length
	pos := offset
	for i := int64(0); i < plan.PartCount; i++ {
		n := plan.PartSize
		if n > remaining {
			n = remaining
		}
		if err := sess.SubmitRange(ctx, pos, n); err != nil {
			if derr := sess.DrainAll(ctx); derr != nil {
				return derr
			}
			sess.Abort(ctx)
			return err
		}
		pos += n
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

// sourceSize reads the source object's byte count from its metadata.
func (c *Copier) sourceSize(ctx context.Context, op, bucket, key string) (int64, error) {
	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if multipart.IsTransientNotFound(err) {
			return 0, transfererrors.NewObjectError(op, bucket, key,
				fmt.Errorf("%w: source object: %w", transfererrors.ErrObjectNotFound, err))
		}
		return 0, transfererrors.NewObjectError(op, bucket, key,
			fmt.Errorf("%w: reading source metadata: %w", transfererrors.ErrStorage, err))
	}
	return aws.ToInt64(head.ContentLength), nil
}

func (c *Copier) newSession(
	srcBucket, srcKey, dstBucket, dstKey string,
	settings multipart.Settings,
	cfg Config,
	total int64,
) *multipart.Session {
	deps := multipart.Deps{
		Scheduler: c.sched,
		Logger:    c.logger,
		Events:    c.events,
	}
	if cfg.Progress != nil {
		var transferred int64
		deps.PartApplied = func(n int64) {
			transferred += n
			cfg.Progress(transferred, total)
		}
	}
	return multipart.NewCopySession(c.api, srcBucket, srcKey, dstBucket, dstKey, settings, deps)
}

// finish optionally verifies the destination object and assembles the
// result.
func (c *Copier) finish(ctx context.Context, sess *multipart.Session, cfg Config) (*Result, error) {
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
