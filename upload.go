// Package s3transfer provides the client's upload operations.
package s3transfer

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/upload"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/validation"
)

const (
	// DefaultContentType is the content type used when detection is enabled
	// but finds nothing better.
	DefaultContentType = "application/octet-stream"
)

// Upload transfers size bytes from reader into bucket/key.
// Transfers at or below the single-operation threshold are written in one
// atomic PUT; larger ones are split into parts and uploaded concurrently.
// When the service rejects an atomic write as too large, the transfer
// transparently restarts as a multipart upload of the same bytes.
//
// The reader must supply exactly size bytes; size must be positive.
//
// Returns:
//   - *Result: the destination object's ETag, size, part count, and duration
//   - error: Returns an error if the upload fails
//
// Errors:
//   - ErrInvalidInput: if bucket or key is invalid, or reader is nil
//   - ErrInvalidConfig: if size is not positive or the part limits are unusable
//   - ErrPartLimitExceeded: if the transfer cannot fit the part count limit
//   - ErrTransientStorage: if the service kept reporting fresh writes missing
//   - ErrStorage: any other storage failure, wrapped with operation context
//
// Example:
//
//	f, err := os.Open("data.bin")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//	info, _ := f.Stat()
//
//	result, err := client.Upload(ctx, f, info.Size(), "my-bucket", "data.bin",
//	    s3transfer.WithContentType("application/octet-stream"),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("uploaded %d bytes in %v\n", result.Size, result.Duration)
func (c *Client) Upload(
	ctx context.Context,
	reader io.Reader,
	size int64,
	bucket, key string,
	opts ...TransferOption,
) (*Result, error) {
	if err := c.validateDestination("upload", bucket, key); err != nil {
		return nil, err
	}
	if reader == nil {
		return nil, transfererrors.NewError("upload", transfererrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("reader cannot be nil")
	}

	tc, err := c.resolveTransfer("upload", bucket, key, opts)
	if err != nil {
		return nil, err
	}
	if tc.ContentType == "" && tc.DetectContentType {
		tc.ContentType = c.detectContentTypeFromExtension(key)
	}

	return c.runUpload(ctx, bucket, key, reader, size, tc)
}

// UploadFile transfers a file from the configured filesystem into
// bucket/key, with optional content type sniffing from the file's leading
// bytes. Empty files are rejected; stream through OpenWriter to create an
// empty object.
//
// Returns:
//   - *Result: the destination object's ETag, size, part count, and duration
//   - error: Returns an error if the upload fails
//
// Errors:
//   - ErrInvalidInput: if bucket or key is invalid, or path is empty or a directory
//   - ErrInvalidConfig: if the file is empty or the part limits are unusable
//   - Filesystem errors if the file cannot be opened or read
//   - ErrTransientStorage, ErrStorage: as for Upload
//
// Example:
//
//	result, err := client.UploadFile(ctx, "/backups/db.dump", "my-bucket", "backups/db.dump",
//	    s3transfer.WithDetectContentType(true),
//	    s3transfer.WithProgress(tracker),
//	)
//	if err != nil {
//	    return err
//	}
//	fmt.Printf("uploaded %d bytes in %v\n", result.Size, result.Duration)
func (c *Client) UploadFile(
	ctx context.Context,
	path, bucket, key string,
	opts ...TransferOption,
) (*Result, error) {
	if err := c.validateDestination("uploadFile", bucket, key); err != nil {
		return nil, err
	}
	if path == "" {
		return nil, transfererrors.NewError("uploadFile", transfererrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("path cannot be empty")
	}

	fsys := c.filesystem()
	info, err := fsys.Stat(path)
	if err != nil {
		return nil, transfererrors.NewError("uploadFile", err).WithBucket(bucket).WithKey(key)
	}
	if info.IsDir() {
		return nil, transfererrors.NewError("uploadFile", transfererrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("path points to a directory, not a file")
	}
	if info.Size() == 0 {
		return nil, transfererrors.NewError("uploadFile", transfererrors.ErrInvalidConfig).
			WithBucket(bucket).
			WithKey(key).
			WithMessage("file is empty; stream through OpenWriter to create an empty object")
	}

	tc, err := c.resolveTransfer("uploadFile", bucket, key, opts)
	if err != nil {
		return nil, err
	}
	if tc.ContentType == "" && tc.DetectContentType {
		tc.ContentType = c.detectContentType(path)
	}

	file, err := fsys.Open(path)
	if err != nil {
		return nil, transfererrors.NewError("uploadFile", err).WithBucket(bucket).WithKey(key)
	}
	defer file.Close()

	return c.runUpload(ctx, bucket, key, file, info.Size(), tc)
}

// runUpload drives the internal uploader and reports the outcome to the
// transfer's progress tracker.
func (c *Client) runUpload(
	ctx context.Context,
	bucket, key string,
	reader io.Reader,
	size int64,
	tc TransferConfig,
) (*Result, error) {
	startTime := time.Now()

	uploader := upload.New(c.s3Client, c.sched, c.logger, c.events)
	res, err := uploader.Upload(ctx, bucket, key, reader, size, upload.Config{
		Session:           tc.sessionSettings(),
		SingleOpThreshold: tc.SingleOperationThreshold,
		Verify:            tc.VerifyAfterUpload,
		Progress:          progressFunc(tc.Progress),
	})
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
		Bucket:    bucket,
		Key:       key,
		ETag:      res.ETag,
		Size:      res.Size,
		Parts:     res.Parts,
		Multipart: res.Multipart,
		Duration:  time.Since(startTime),
	}, nil
}

// validateDestination checks the destination coordinates of a transfer.
func (c *Client) validateDestination(op, bucket, key string) error {
	if err := validation.ValidateBucketName(bucket); err != nil {
		return transfererrors.NewError(op, transfererrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage(err.Error())
	}
	if err := validation.ValidateObjectKey(key); err != nil {
		return transfererrors.NewError(op, transfererrors.ErrInvalidInput).
			WithBucket(bucket).
			WithKey(key).
			WithMessage(err.Error())
	}
	return nil
}

// resolveTransfer applies per-call options over the client defaults and
// validates the resulting configuration.
func (c *Client) resolveTransfer(op, bucket, key string, opts []TransferOption) (TransferConfig, error) {
	tc := c.transferConfig(opts...)
	if err := tc.validate(); err != nil {
		return TransferConfig{}, transfererrors.NewError(op, err).WithBucket(bucket).WithKey(key)
	}
	if len(tc.Metadata) > 0 {
		if err := validation.ValidateMetadata(tc.Metadata); err != nil {
			return TransferConfig{}, transfererrors.NewError(op, transfererrors.ErrInvalidInput).
				WithBucket(bucket).
				WithKey(key).
				WithMessage(err.Error())
		}
		tc.Metadata = validation.SanitizeMetadata(tc.Metadata)
	}
	if tc.ContentType != "" {
		if err := validation.ValidateContentType(tc.ContentType); err != nil {
			return TransferConfig{}, transfererrors.NewError(op, transfererrors.ErrInvalidInput).
				WithBucket(bucket).
				WithKey(key).
				WithMessage(err.Error())
		}
	}
	return tc, nil
}

func (c *Client) detectContentType(path string) string {
	fsys := c.filesystem()

	// If the path points to an existing local file, prefer sniffing its content.
	info, err := fsys.Stat(path)
	if err != nil || info.IsDir() {
		// Fall back to extension-based detection
		return c.detectContentTypeFromExtension(path)
	}

	file, err := fsys.Open(path)
	if err != nil {
		// Fall back to extension-based detection
		return c.detectContentTypeFromExtension(path)
	}
	defer file.Close()

	// Read first 512 bytes for content detection
	buf := make([]byte, 512)
	n, _ := file.Read(buf)
	if n > 0 {
		if mt := mimetype.Detect(buf[:n]); mt != nil {
			return mt.String()
		}
	}

	// Fall back to extension-based detection
	return c.detectContentTypeFromExtension(path)
}

// detectContentTypeFromExtension detects content type from file extension
func (c *Client) detectContentTypeFromExtension(path string) string {
	// Fallback to extension-based detection for object keys or unknown files
	ext := strings.ToLower(filepath.Ext(path))
	if ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return byExt
		}
	}

	return DefaultContentType
}
