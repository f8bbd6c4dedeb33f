// Package testutil provides a builder for creating mock storage clients.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithPutObject configures the PutObject behavior.
func (b *MockBuilder) WithPutObject(
	fn func(context.Context, *s3.PutObjectInput) (*s3.PutObjectOutput, error),
) *MockBuilder {
	b.client.PutObjectFunc = func(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithCopyObject configures the CopyObject behavior.
func (b *MockBuilder) WithCopyObject(
	fn func(context.Context, *s3.CopyObjectInput) (*s3.CopyObjectOutput, error),
) *MockBuilder {
	b.client.CopyObjectFunc = func(ctx context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithHeadObject configures the HeadObject behavior.
func (b *MockBuilder) WithHeadObject(
	fn func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error),
) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithUploadPart configures the UploadPart behavior.
func (b *MockBuilder) WithUploadPart(
	fn func(context.Context, *s3.UploadPartInput) (*s3.UploadPartOutput, error),
) *MockBuilder {
	b.client.UploadPartFunc = func(ctx context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithUploadPartCopy configures the UploadPartCopy behavior.
func (b *MockBuilder) WithUploadPartCopy(
	fn func(context.Context, *s3.UploadPartCopyInput) (*s3.UploadPartCopyOutput, error),
) *MockBuilder {
	b.client.UploadPartCopyFunc = func(ctx context.Context, params *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithSuccessfulPut configures the mock to accept any single-operation
// write, consuming the body.
func (b *MockBuilder) WithSuccessfulPut() *MockBuilder {
	b.client.PutObjectFunc = func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		if params.Body != nil {
			_, _ = io.Copy(io.Discard, params.Body)
		}
		return &s3.PutObjectOutput{
			ETag: StringPtr(`"test-etag"`),
		}, nil
	}
	return b
}

// WithFailedPut configures the mock to reject every single-operation write
// with err.
func (b *MockBuilder) WithFailedPut(err error) *MockBuilder {
	b.client.PutObjectFunc = func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, err
	}
	return b
}

// WithObjectNotFound configures the mock to report a missing object on
// metadata reads.
func (b *MockBuilder) WithObjectNotFound() *MockBuilder {
	notFoundErr := &types.NoSuchKey{
		Message: StringPtr("The specified key does not exist."),
	}

	b.client.HeadObjectFunc = func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, notFoundErr
	}
	return b
}

// WithHeadSize configures the mock to report an existing object of the
// given size on metadata reads.
func (b *MockBuilder) WithHeadSize(size int64) *MockBuilder {
	b.client.HeadObjectFunc = func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return &s3.HeadObjectOutput{
			ContentLength: Int64Ptr(size),
			ETag:          StringPtr(`"src-etag"`),
		}, nil
	}
	return b
}

// WithMultipartUpload configures the whole multipart protocol with
// successful responses. Part ETags encode the part number so tests can
// assert ordering.
func (b *MockBuilder) WithMultipartUpload() *MockBuilder {
	uploadID := "test-upload-id"

	b.client.CreateMultipartUploadFunc = func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		return &s3.CreateMultipartUploadOutput{
			UploadId: StringPtr(uploadID),
			Bucket:   params.Bucket,
			Key:      params.Key,
		}, nil
	}

	b.client.UploadPartFunc = func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		if params.Body != nil {
			_, _ = io.Copy(io.Discard, params.Body)
		}
		return &s3.UploadPartOutput{
			ETag: StringPtr(PartETag(*params.PartNumber)),
		}, nil
	}

	b.client.UploadPartCopyFunc = func(_ context.Context, params *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
		return &s3.UploadPartCopyOutput{
			CopyPartResult: &types.CopyPartResult{
				ETag: StringPtr(PartETag(*params.PartNumber)),
			},
		}, nil
	}

	b.client.CompleteMultipartUploadFunc = func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		return &s3.CompleteMultipartUploadOutput{
			ETag:   StringPtr(`"multipart-etag"`),
			Bucket: params.Bucket,
			Key:    params.Key,
		}, nil
	}

	b.client.AbortMultipartUploadFunc = func(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		return &s3.AbortMultipartUploadOutput{}, nil
	}

	return b
}

// WithAccessDenied configures the mock to reject every write operation.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	accessDeniedErr := errors.New("access denied")

	b.client.PutObjectFunc = func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.CopyObjectFunc = func(_ context.Context, _ *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.CreateMultipartUploadFunc = func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		return nil, accessDeniedErr
	}

	return b
}

// PartETag returns the deterministic ETag the scripted multipart mock
// assigns to a part number.
func PartETag(partNumber int32) string {
	return fmt.Sprintf(`"etag-part-%d"`, partNumber)
}

// PartRecorder captures uploaded part numbers and completion payloads
// from a scripted multipart mock. All methods are safe for concurrent
// use.
type PartRecorder struct {
	mu             sync.Mutex
	partNumbers    []int32
	completedParts []types.CompletedPart
	completeCalls  int
	abortCalls     int
}

// Attach wires the recorder into the builder's multipart functions,
// preserving the scripted responses.
func (r *PartRecorder) Attach(b *MockBuilder) *MockBuilder {
	b.WithMultipartUpload()

	inner := b.client.UploadPartFunc
	b.client.UploadPartFunc = func(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
		r.mu.Lock()
		r.partNumbers = append(r.partNumbers, *params.PartNumber)
		r.mu.Unlock()
		return inner(ctx, params, optFns...)
	}

	innerComplete := b.client.CompleteMultipartUploadFunc
	b.client.CompleteMultipartUploadFunc = func(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		r.mu.Lock()
		r.completeCalls++
		if params.MultipartUpload != nil {
			r.completedParts = append([]types.CompletedPart(nil), params.MultipartUpload.Parts...)
		}
		r.mu.Unlock()
		return innerComplete(ctx, params, optFns...)
	}

	innerAbort := b.client.AbortMultipartUploadFunc
	b.client.AbortMultipartUploadFunc = func(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		r.mu.Lock()
		r.abortCalls++
		r.mu.Unlock()
		return innerAbort(ctx, params, optFns...)
	}

	return b
}

// PartNumbers returns the part numbers in upload order.
func (r *PartRecorder) PartNumbers() []int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int32(nil), r.partNumbers...)
}

// CompletedParts returns the parts sent with the completion call.
func (r *PartRecorder) CompletedParts() []types.CompletedPart {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.CompletedPart(nil), r.completedParts...)
}

// CompleteCalls returns how often completion was invoked.
func (r *PartRecorder) CompleteCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.completeCalls
}

// AbortCalls returns how often abort was invoked.
func (r *PartRecorder) AbortCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.abortCalls
}
