// Package s3transfer provides the streaming upload writer.
package s3transfer

import (
	"context"
	"errors"
	"io"
	"time"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/operations/upload"
)

// Writer streams data of unknown length into one destination object. It
// buffers written bytes and stays in single-operation mode until the
// cumulative size exceeds the single-operation threshold, then switches to
// a multipart upload and ships full parts in the background while Write
// keeps accepting data.
//
// Writer is not safe for concurrent use. Nothing is visible at the
// destination until Close returns nil; Abort discards everything written.
type Writer struct {
	stream   *upload.Stream
	bucket   string
	key      string
	progress ProgressTracker
	started  time.Time
	result   *Result
}

var _ io.WriteCloser = (*Writer)(nil)

// OpenWriter starts a streaming upload to bucket/key and returns the
// Writer feeding it. The returned Writer must be finished with Close or
// discarded with Abort; an abandoned writer holds a server-side multipart
// upload open once it has crossed the threshold.
//
// Returns:
//   - *Writer: the destination-bound writer
//   - error: Returns an error if the destination or options are invalid
//
// Errors:
//   - ErrInvalidInput: if bucket or key is invalid
//   - ErrInvalidConfig: if the part limits are unusable
//
// Example:
//
//	w, err := client.OpenWriter(ctx, "my-bucket", "logs/2024-06-01.ndjson")
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(w, src); err != nil {
//	    w.Abort()
//	    return err
//	}
//	if err := w.Close(); err != nil {
//	    return err
//	}
//	fmt.Printf("wrote %d bytes as %d parts\n", w.Result().Size, w.Result().Parts)
func (c *Client) OpenWriter(
	ctx context.Context,
	bucket, key string,
	opts ...TransferOption,
) (*Writer, error) {
	if err := c.validateDestination("openWriter", bucket, key); err != nil {
		return nil, err
	}
	tc, err := c.resolveTransfer("openWriter", bucket, key, opts)
	if err != nil {
		return nil, err
	}
	if tc.ContentType == "" && tc.DetectContentType {
		tc.ContentType = c.detectContentTypeFromExtension(key)
	}

	uploader := upload.New(c.s3Client, c.sched, c.logger, c.events)
	stream := uploader.OpenStream(ctx, bucket, key, upload.Config{
		Session:           tc.sessionSettings(),
		SingleOpThreshold: tc.SingleOperationThreshold,
		Verify:            tc.VerifyAfterUpload,
		Progress:          progressFunc(tc.Progress),
	})

	return &Writer{
		stream:   stream,
		bucket:   bucket,
		key:      key,
		progress: tc.Progress,
		started:  time.Now(),
	}, nil
}

// Write appends p to the upload. A part transfer that failed in the
// background surfaces here on a later call; once Write has returned an
// error the writer is failed and every subsequent call returns the same
// error.
func (w *Writer) Write(p []byte) (int, error) {
	return w.stream.Write(p)
}

// Close flushes buffered data, waits for in-flight parts, and finalizes
// the object. A writer that never crossed the threshold writes its buffer
// in one atomic operation; a writer with no written bytes creates a valid
// empty object. Calling Close again returns ErrWriterClosed.
func (w *Writer) Close() error {
	res, err := w.stream.Finish()
	if err != nil {
		if w.progress != nil && !errors.Is(err, transfererrors.ErrWriterClosed) {
			w.progress.Error(err)
		}
		return err
	}

	w.result = &Result{
		Bucket:    w.bucket,
		Key:       w.key,
		ETag:      res.ETag,
		Size:      res.Size,
		Parts:     res.Parts,
		Multipart: res.Multipart,
		Duration:  time.Since(w.started),
	}
	if w.progress != nil {
		w.progress.Complete()
	}
	return nil
}

// Abort discards the upload, cancelling any server-side multipart session.
// It is safe to call at any point and more than once.
func (w *Writer) Abort() {
	w.stream.Cancel()
}

// Written reports the bytes accepted by Write so far.
func (w *Writer) Written() int64 {
	return w.stream.Written()
}

// Result returns the transfer outcome after a successful Close, nil
// before.
func (w *Writer) Result() *Result {
	return w.result
}
