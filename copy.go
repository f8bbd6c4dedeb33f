// Package s3transfer provides the client's server-side copy operations.
package s3transfer

import (
	"context"
	"time"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	copyops "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/copy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/validation"
)

// Copy copies a whole object server-side from the source to the
// destination without moving the data through the client. The source size
// is probed with a metadata read; small objects are copied in one atomic
// operation, large ones as concurrent part copies.
//
// Returns:
//   - *Result: the destination object's ETag, size, part count, and duration
//   - error: Returns an error if the copy fails
//
// Errors:
//   - ErrInvalidInput: if any bucket or key is invalid
//   - ErrObjectNotFound: if the source object does not exist
//   - ErrTransientStorage, ErrStorage: as for Upload
//
// Example:
//
//	result, err := client.Copy(ctx, "raw-bucket", "input.bin", "archive-bucket", "2024/input.bin")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("copied %d bytes in %v\n", result.Size, result.Duration)
func (c *Client) Copy(
	ctx context.Context,
	srcBucket, srcKey, dstBucket, dstKey string,
	opts ...TransferOption,
) (*Result, error) {
	tc, err := c.prepareCopy("copy", srcBucket, srcKey, dstBucket, dstKey, opts)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	copier := copyops.New(c.s3Client, c.sched, c.logger, c.events)
	res, err := copier.Copy(ctx, srcBucket, srcKey, dstBucket, dstKey, c.copyConfig(tc))
	return c.finishCopy(dstBucket, dstKey, res, err, tc, startTime)
}

// CopyRange copies length bytes starting at offset from the source object
// into the destination as a new object. The copy happens server-side in
// all cases; only a range spanning the entire source object and fitting
// the single-operation threshold is copied atomically, every other range
// is assembled from concurrent part copies.
//
// Returns:
//   - *Result: the destination object's ETag, size, part count, and duration
//   - error: Returns an error if the copy fails
//
// Errors:
//   - ErrInvalidInput: if any bucket or key is invalid
//   - ErrInvalidConfig: if offset is negative or length is not positive
//   - ErrObjectNotFound: if the source object does not exist
//   - ErrTransientStorage, ErrStorage: as for Upload
//
// Example:
//
//	// Extract the second gigabyte of a large object.
//	result, err := client.CopyRange(ctx, "data", "big.bin", 1<<30, 1<<30, "data", "big.part2.bin")
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("copied %d parts\n", result.Parts)
func (c *Client) CopyRange(
	ctx context.Context,
	srcBucket, srcKey string,
	offset, length int64,
	dstBucket, dstKey string,
	opts ...TransferOption,
) (*Result, error) {
	tc, err := c.prepareCopy("copyRange", srcBucket, srcKey, dstBucket, dstKey, opts)
	if err != nil {
		return nil, err
	}

	startTime := time.Now()
	copier := copyops.New(c.s3Client, c.sched, c.logger, c.events)
	res, err := copier.CopyRange(ctx, srcBucket, srcKey, dstBucket, dstKey, offset, length, c.copyConfig(tc))
	return c.finishCopy(dstBucket, dstKey, res, err, tc, startTime)
}

// prepareCopy validates both object coordinates and resolves the transfer
// configuration.
func (c *Client) prepareCopy(
	op, srcBucket, srcKey, dstBucket, dstKey string,
	opts []TransferOption,
) (TransferConfig, error) {
	if err := validation.ValidateBucketName(srcBucket); err != nil {
		return TransferConfig{}, transfererrors.NewError(op, transfererrors.ErrInvalidInput).
			WithBucket(srcBucket).
			WithKey(srcKey).
			WithMessage(err.Error())
	}
	if err := validation.ValidateObjectKey(srcKey); err != nil {
		return TransferConfig{}, transfererrors.NewError(op, transfererrors.ErrInvalidInput).
			WithBucket(srcBucket).
			WithKey(srcKey).
			WithMessage(err.Error())
	}
	if err := c.validateDestination(op, dstBucket, dstKey); err != nil {
		return TransferConfig{}, err
	}
	return c.resolveTransfer(op, dstBucket, dstKey, opts)
}

func (c *Client) copyConfig(tc TransferConfig) copyops.Config {
	return copyops.Config{
		Session:           tc.sessionSettings(),
		SingleOpThreshold: tc.SingleOperationThreshold,
		Verify:            tc.VerifyAfterUpload,
		Progress:          progressFunc(tc.Progress),
	}
}

// finishCopy reports the outcome to the progress tracker and assembles
// the public result.
func (c *Client) finishCopy(
	dstBucket, dstKey string,
	res *copyops.Result,
	err error,
	tc TransferConfig,
	startTime time.Time,
) (*Result, error) {
	if err != nil {
		if tc.Progress != nil {
			tc.Progress.Error(err)
		}
		return nil, err
	}
	if tc.Progress != nil {
		tc.Progress.Complete()
	}

	return &Result{
		Bucket:    dstBucket,
		Key:       dstKey,
		ETag:      res.ETag,
		Size:      res.Size,
		Parts:     res.Parts,
		Multipart: res.Multipart,
		Duration:  time.Since(startTime),
	}, nil
}
