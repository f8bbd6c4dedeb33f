package multipart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

const (
	// defaultRetryDelay is the base delay before the first transient retry.
	defaultRetryDelay = 100 * time.Millisecond

	// maxRetryDelay caps the exponential backoff between transient retries.
	maxRetryDelay = 5 * time.Second
)

// IsTransientNotFound reports whether err is the eventual-consistency signal
// where the service briefly reports a just-written resource as missing.
// These failures are retryable; all other storage failures are not.
func IsTransientNotFound(err error) bool {
	var noSuchKey *awstypes.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var noSuchUpload *awstypes.NoSuchUpload
	if errors.As(err, &noSuchUpload) {
		return true
	}
	var notFound *awstypes.NotFound
	if errors.As(err, &notFound) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NoSuchUpload", "NotFound":
			return true
		}
	}
	return false
}

// IsTooLarge reports whether the service rejected a single-operation write
// because the payload exceeds its limit for atomic operations. Callers fall
// back to a multipart upload when this holds.
func IsTooLarge(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "EntityTooLarge", "InvalidRequest":
			return true
		}
	}
	return false
}

// effectiveRetries is the transient retry budget with a floor of one, so a
// single transient miss never fails an upload outright.
func (s *Session) effectiveRetries() int {
	if s.cfg.Retries < 1 {
		return 1
	}
	return s.cfg.Retries
}

// runWithRetry invokes call until it succeeds, fails hard, or exhausts the
// transient retry budget. Only transient not-found failures are retried.
// Hard failures are returned raw for the caller to classify; exhaustion is
// returned already tagged with ErrTransientStorage.
func (s *Session) runWithRetry(ctx context.Context, what string, call func(context.Context) error) error {
	retries := s.effectiveRetries()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			s.record(EventTransientRetry)
			if s.logger != nil {
				s.logger.WarnContext(ctx, "resource reported missing right after write, retrying",
					"operation", what,
					"bucket", s.dstBucket,
					"key", s.dstKey,
					"attempt", attempt,
					"max_retries", retries,
					"error", lastErr)
			}
			if err := sleepWithBackoff(ctx, s.cfg.RetryDelay, attempt); err != nil {
				return err
			}
		}

		err := call(ctx)
		if err == nil {
			return nil
		}
		if !IsTransientNotFound(err) {
			return err
		}
		lastErr = err
	}

	return fmt.Errorf("%w: %s still failing after %d retries: %w",
		transfererrors.ErrTransientStorage, what, retries, lastErr)
}

// classifyFailure adds operation context to a failed storage call, keeping
// the transient tag when the retry budget ran out and marking everything
// else as a hard storage failure.
func (s *Session) classifyFailure(op string, err error) error {
	if errors.Is(err, transfererrors.ErrTransientStorage) {
		return transfererrors.NewObjectError(op, s.dstBucket, s.dstKey, err)
	}
	return transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
		fmt.Errorf("%w: %w", transfererrors.ErrStorage, err))
}

// sleepWithBackoff waits for the attempt's backoff delay or until the
// context is done. attempt is 1-based.
func sleepWithBackoff(ctx context.Context, base time.Duration, attempt int) error {
	delay := backoffDelay(base, attempt)
	if delay <= 0 {
		return nil
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled while waiting to retry: %w", ctx.Err())
	}
}

// backoffDelay computes exponential backoff with jitter: base * 2^(attempt-1)
// plus or minus up to 25%, capped at maxRetryDelay.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = defaultRetryDelay
	}

	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}

	jitterRange := int64(float64(delay) * 0.25)
	if jitterRange > 0 {
		delay += time.Duration(rand.Int63n(2*jitterRange) - jitterRange)
	}

	if delay > maxRetryDelay {
		delay = maxRetryDelay
	}
	if delay < 0 {
		delay = 0
	}
	return delay
}
