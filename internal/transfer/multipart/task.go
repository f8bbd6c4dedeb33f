package multipart

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
)

// task is one part transfer tracked by a Session from submission until its
// result is applied. Fields after done are written by the worker goroutine
// and read by drains, both under the session lock.
type task struct {
	partNumber int32

	// payload and release are set for data-upload parts. release returns
	// the payload buffer to its pool once the transfer no longer needs it.
	payload []byte
	release func()

	// offset and length are set for range-copy parts.
	offset int64
	length int64

	// size is the number of object bytes this part contributes.
	size int64

	done bool
	etag string
	err  error
}

// releaseBuffer returns the payload buffer to its pool, if the task holds one.
func (t *task) releaseBuffer() {
	if t.release != nil {
		t.release()
		t.release = nil
	}
}

// partTransfer performs the storage call for one part. The data-upload and
// range-copy strategies implement the same contract and return the part's
// entity tag on success.
type partTransfer interface {
	// opName names the operation for error context and logging.
	opName() string

	// event names the storage event recorded for each transfer attempt.
	event() string

	// transfer uploads or copies the part and returns its entity tag.
	transfer(ctx context.Context, uploadID string, t *task) (string, error)
}

// dataTransfer uploads locally buffered bytes as parts.
type dataTransfer struct {
	api    s3api.S3API
	bucket string
	key    string
}

func (d *dataTransfer) opName() string { return "uploadPart" }

func (d *dataTransfer) event() string { return EventUploadPart }

func (d *dataTransfer) transfer(ctx context.Context, uploadID string, t *task) (string, error) {
	input := &s3.UploadPartInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.key),
		UploadId:      aws.String(uploadID),
		PartNumber:    aws.Int32(t.partNumber),
		Body:          bytes.NewReader(t.payload),
		ContentLength: aws.Int64(int64(len(t.payload))),
	}

	output, err := d.api.UploadPart(ctx, input)
	if err != nil {
		return "", err
	}
	return aws.ToString(output.ETag), nil
}

// rangeCopyTransfer copies byte ranges of an existing object as parts
// without moving data through the client.
type rangeCopyTransfer struct {
	api       s3api.S3API
	srcBucket string
	srcKey    string
	dstBucket string
	dstKey    string
}

func (r *rangeCopyTransfer) opName() string { return "uploadPartCopy" }

func (r *rangeCopyTransfer) event() string { return EventUploadPartCopy }

func (r *rangeCopyTransfer) transfer(ctx context.Context, uploadID string, t *task) (string, error) {
	// CopySourceRange uses an inclusive byte range.
	copySource := fmt.Sprintf("%s/%s", r.srcBucket, r.srcKey)
	copyRange := fmt.Sprintf("bytes=%d-%d", t.offset, t.offset+t.length-1)

	input := &s3.UploadPartCopyInput{
		Bucket:          aws.String(r.dstBucket),
		Key:             aws.String(r.dstKey),
		UploadId:        aws.String(uploadID),
		PartNumber:      aws.Int32(t.partNumber),
		CopySource:      aws.String(copySource),
		CopySourceRange: aws.String(copyRange),
	}

	output, err := r.api.UploadPartCopy(ctx, input)
	if err != nil {
		return "", err
	}
	if output.CopyPartResult == nil {
		return "", nil
	}
	return aws.ToString(output.CopyPartResult.ETag), nil
}
