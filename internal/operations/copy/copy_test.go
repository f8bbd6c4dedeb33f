package copy

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
)

// fakeCopyStore scripts the storage client for copy tests and records the
// copy sources and ranges each call carried.
type fakeCopyStore struct {
	mock *testutil.MockS3Client

	mu             sync.Mutex
	srcSize        int64
	heads          int
	copySources    []string
	creates        int
	partRanges     map[int32]string
	partSources    map[int32]string
	completes      int
	completedOrder []int32
	aborts         int

	headErr error
	copyErr error
	partErr func(partNumber int32) error
}

func newFakeCopyStore(srcSize int64) *fakeCopyStore {
	f := &fakeCopyStore{
		mock:        &testutil.MockS3Client{},
		srcSize:     srcSize,
		partRanges:  make(map[int32]string),
		partSources: make(map[int32]string),
	}

	f.mock.HeadObjectFunc = func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.heads++
		if f.headErr != nil {
			return nil, f.headErr
		}
		return &s3.HeadObjectOutput{ContentLength: aws.Int64(f.srcSize)}, nil
	}

	f.mock.CopyObjectFunc = func(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.copyErr != nil {
			return nil, f.copyErr
		}
		f.copySources = append(f.copySources, aws.ToString(params.CopySource))
		return &s3.CopyObjectOutput{
			CopyObjectResult: &types.CopyObjectResult{ETag: aws.String(`"copy-etag"`)},
		}, nil
	}

	f.mock.CreateMultipartUploadFunc = func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.creates++
		return testutil.CreateMultipartUploadOutput(
			aws.ToString(params.Bucket), aws.ToString(params.Key), "copy-upload-1"), nil
	}

	f.mock.UploadPartCopyFunc = func(_ context.Context, params *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
		n := aws.ToInt32(params.PartNumber)
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.partErr != nil {
			if perr := f.partErr(n); perr != nil {
				return nil, perr
			}
		}
		f.partRanges[n] = aws.ToString(params.CopySourceRange)
		f.partSources[n] = aws.ToString(params.CopySource)
		return testutil.CreateUploadPartCopyOutput(fmt.Sprintf(`"copy-etag-%d"`, n)), nil
	}

	f.mock.CompleteMultipartUploadFunc = func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.completes++
		if params.MultipartUpload != nil {
			for _, p := range params.MultipartUpload.Parts {
				f.completedOrder = append(f.completedOrder, aws.ToInt32(p.PartNumber))
			}
		}
		return testutil.CreateCompleteMultipartUploadOutput("dst-bucket", "dst-key", `"copy-mp-etag"`), nil
	}

	f.mock.AbortMultipartUploadFunc = func(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.aborts++
		return &s3.AbortMultipartUploadOutput{}, nil
	}

	return f
}

func (f *fakeCopyStore) snapshot() fakeCopyStore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeCopyStore{
		heads:          f.heads,
		copySources:    append([]string(nil), f.copySources...),
		creates:        f.creates,
		completes:      f.completes,
		completedOrder: append([]int32(nil), f.completedOrder...),
		aborts:         f.aborts,
	}
}

func (f *fakeCopyStore) partRange(n int32) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partRanges[n]
}

func (f *fakeCopyStore) partSource(n int32) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partSources[n]
}

func testConfig(threshold int64) Config {
	return Config{
		Session: multipart.Settings{
			Limits: multipart.Limits{
				MinPartSize:  8,
				MaxPartSize:  1 << 20,
				MaxPartCount: 10000,
			},
			Retries:    1,
			RetryDelay: time.Millisecond,
		},
		SingleOpThreshold: threshold,
	}
}

func newTestCopier(store *fakeCopyStore) *Copier {
	return New(store.mock, testutil.SyncScheduler{}, nil, nil)
}

func TestCopier_Copy_SingleWhenSmall(t *testing.T) {
	store := newFakeCopyStore(50)
	c := newTestCopier(store)

	res, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", testConfig(100))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Equal(t, 1, s.heads)
	assert.Equal(t, []string{"src-bucket/src-key"}, s.copySources)
	assert.Equal(t, 0, s.creates)
	assert.Equal(t, `"copy-etag"`, res.ETag)
	assert.Equal(t, int64(50), res.Size)
	assert.False(t, res.Multipart)
	assert.Equal(t, int32(0), res.Parts)
}

func TestCopier_Copy_MultipartWhenLarge(t *testing.T) {
	store := newFakeCopyStore(24)
	c := newTestCopier(store)

	res, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", testConfig(10))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Empty(t, s.copySources)
	assert.Equal(t, 1, s.creates)
	assert.Equal(t, 1, s.completes)
	assert.Equal(t, []int32{1, 2, 3}, s.completedOrder)

	// Ranges carry inclusive byte positions.
	assert.Equal(t, "bytes=0-7", store.partRange(1))
	assert.Equal(t, "bytes=8-15", store.partRange(2))
	assert.Equal(t, "bytes=16-23", store.partRange(3))
	assert.Equal(t, "src-bucket/src-key", store.partSource(1))

	assert.Equal(t, `"copy-mp-etag"`, res.ETag)
	assert.Equal(t, int64(24), res.Size)
	assert.True(t, res.Multipart)
	assert.Equal(t, int32(3), res.Parts)
}

func TestCopier_Copy_SourceMissing(t *testing.T) {
	store := newFakeCopyStore(0)
	store.headErr = &types.NoSuchKey{Message: aws.String("no such key")}
	c := newTestCopier(store)

	_, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", testConfig(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, transfererrors.ErrObjectNotFound)

	s := store.snapshot()
	assert.Empty(t, s.copySources)
	assert.Equal(t, 0, s.creates)
}

func TestCopier_Copy_HeadFailure(t *testing.T) {
	store := newFakeCopyStore(0)
	store.headErr = &smithy.GenericAPIError{Code: "InternalError", Message: "boom"}
	c := newTestCopier(store)

	_, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", testConfig(100))
	require.Error(t, err)
	assert.ErrorIs(t, err, transfererrors.ErrStorage)
	assert.NotErrorIs(t, err, transfererrors.ErrObjectNotFound)
}

func TestCopier_Copy_TooLargeFallsBackToParts(t *testing.T) {
	store := newFakeCopyStore(20)
	store.copyErr = &smithy.GenericAPIError{Code: "InvalidRequest", Message: "copy source too large"}
	c := newTestCopier(store)

	res, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", testConfig(100))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Equal(t, 1, s.creates)
	assert.Equal(t, 1, s.completes)
	assert.Equal(t, []int32{1, 2, 3}, s.completedOrder)
	assert.Equal(t, "bytes=0-7", store.partRange(1))
	assert.Equal(t, "bytes=16-19", store.partRange(3), "final part covers the 4-byte remainder")
	assert.True(t, res.Multipart)
	assert.Equal(t, int64(20), res.Size)
}

func TestCopier_CopyRange_Validation(t *testing.T) {
	store := newFakeCopyStore(100)
	c := newTestCopier(store)

	tests := []struct {
		name   string
		offset int64
		length int64
	}{
		{name: "negative offset", offset: -1, length: 10},
		{name: "zero length", offset: 0, length: 0},
		{name: "negative length", offset: 5, length: -5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CopyRange(context.Background(),
				"src-bucket", "src-key", "dst-bucket", "dst-key", tt.offset, tt.length, testConfig(100))
			require.Error(t, err)
			assert.ErrorIs(t, err, transfererrors.ErrInvalidConfig)
		})
	}
	assert.Equal(t, 0, store.snapshot().heads)
}

func TestCopier_CopyRange_WholeObjectIsAtomic(t *testing.T) {
	store := newFakeCopyStore(50)
	c := newTestCopier(store)

	res, err := c.CopyRange(context.Background(),
		"src-bucket", "src-key", "dst-bucket", "dst-key", 0, 50, testConfig(100))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Equal(t, 1, s.heads)
	assert.Equal(t, []string{"src-bucket/src-key"}, s.copySources)
	assert.Equal(t, 0, s.creates)
	assert.False(t, res.Multipart)
	assert.Equal(t, int64(50), res.Size)
}

func TestCopier_CopyRange_PrefixOfLargerObjectCopiesParts(t *testing.T) {
	// A range that starts at zero but stops short of the source size is
	// not a whole-object copy even though it fits the threshold.
	store := newFakeCopyStore(50)
	c := newTestCopier(store)

	res, err := c.CopyRange(context.Background(),
		"src-bucket", "src-key", "dst-bucket", "dst-key", 0, 10, testConfig(100))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Equal(t, 1, s.heads)
	assert.Empty(t, s.copySources)
	assert.Equal(t, 1, s.creates)
	assert.Equal(t, "bytes=0-9", store.partRange(1))
	assert.True(t, res.Multipart)
	assert.Equal(t, int64(10), res.Size)
	assert.Equal(t, int32(1), res.Parts)
}

func TestCopier_CopyRange_MidRangeSkipsSizeProbe(t *testing.T) {
	store := newFakeCopyStore(100)
	c := newTestCopier(store)

	res, err := c.CopyRange(context.Background(),
		"src-bucket", "src-key", "dst-bucket", "dst-key", 5, 4, testConfig(100))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Equal(t, 0, s.heads, "a mid-object range can never be a whole-object copy")
	assert.Equal(t, "bytes=5-8", store.partRange(1))
	assert.Equal(t, int64(4), res.Size)
	assert.True(t, res.Multipart)
}

func TestCopier_CopyRange_LargeRangeSkipsSizeProbe(t *testing.T) {
	store := newFakeCopyStore(500)
	c := newTestCopier(store)

	res, err := c.CopyRange(context.Background(),
		"src-bucket", "src-key", "dst-bucket", "dst-key", 0, 200, testConfig(100))
	require.NoError(t, err)

	s := store.snapshot()
	assert.Equal(t, 0, s.heads)
	assert.Equal(t, 1, s.creates)
	assert.True(t, res.Multipart)
	assert.Equal(t, int64(200), res.Size)
}

func TestCopier_CopyRange_PartFailureAborts(t *testing.T) {
	store := newFakeCopyStore(24)
	store.partErr = func(n int32) error {
		if n == 2 {
			return fmt.Errorf("part 2 rejected")
		}
		return nil
	}
	c := newTestCopier(store)

	_, err := c.CopyRange(context.Background(),
		"src-bucket", "src-key", "dst-bucket", "dst-key", 0, 24, testConfig(10))
	require.Error(t, err)
	assert.ErrorIs(t, err, transfererrors.ErrStorage)

	s := store.snapshot()
	assert.Equal(t, 0, s.completes)
	assert.Equal(t, 1, s.aborts)
}

func TestCopier_CopyRange_Progress(t *testing.T) {
	store := newFakeCopyStore(24)
	c := newTestCopier(store)

	type update struct{ transferred, total int64 }
	var updates []update
	cfg := testConfig(10)
	cfg.Progress = func(transferred, total int64) {
		updates = append(updates, update{transferred, total})
	}

	_, err := c.CopyRange(context.Background(),
		"src-bucket", "src-key", "dst-bucket", "dst-key", 0, 24, cfg)
	require.NoError(t, err)

	require.Len(t, updates, 3)
	assert.Equal(t, update{8, 24}, updates[0])
	assert.Equal(t, update{16, 24}, updates[1])
	assert.Equal(t, update{24, 24}, updates[2])
}

func TestCopier_Copy_SingleProgress(t *testing.T) {
	store := newFakeCopyStore(50)
	c := newTestCopier(store)

	var calls int
	cfg := testConfig(100)
	cfg.Progress = func(transferred, total int64) {
		calls++
		assert.Equal(t, int64(50), transferred)
		assert.Equal(t, int64(50), total)
	}

	_, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCopier_Copy_Verify(t *testing.T) {
	store := newFakeCopyStore(50)
	c := newTestCopier(store)
	cfg := testConfig(100)
	cfg.Verify = true

	_, err := c.Copy(context.Background(), "src-bucket", "src-key", "dst-bucket", "dst-key", cfg)
	require.NoError(t, err)

	// One head for the size probe, one for the verification read.
	assert.Equal(t, 2, store.snapshot().heads)
}
