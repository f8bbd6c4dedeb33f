package multipart

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/testutil"
)

func TestSession_EnterMultipart(t *testing.T) {
	t.Run("is idempotent once entered", func(t *testing.T) {
		creates := 0
		mock := &testutil.MockS3Client{
			CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
				creates++
				return testutil.CreateMultipartUploadOutput("bucket", "key", "upload-1"), nil
			},
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.EnterMultipart(context.Background()))
		require.NoError(t, s.EnterMultipart(context.Background()))

		assert.Equal(t, 1, creates)
		assert.Equal(t, ModeMultipart, s.Mode())
		assert.Equal(t, "upload-1", s.UploadID())
	})

	t.Run("forwards object settings", func(t *testing.T) {
		var got *s3.CreateMultipartUploadInput
		mock := &testutil.MockS3Client{
			CreateMultipartUploadFunc: func(_ context.Context, params *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
				got = params
				return testutil.CreateMultipartUploadOutput("bucket", "key", "upload-1"), nil
			},
		}
		cfg := testSettings()
		cfg.ContentType = "application/json"
		cfg.Metadata = map[string]string{"origin": "unit-test"}
		cfg.StorageClass = awstypes.StorageClassStandardIa
		s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.EnterMultipart(context.Background()))

		require.NotNil(t, got)
		assert.Equal(t, "application/json", aws.ToString(got.ContentType))
		assert.Equal(t, "unit-test", got.Metadata["origin"])
		assert.Equal(t, awstypes.StorageClassStandardIa, got.StorageClass)
	})

	t.Run("fails after abort", func(t *testing.T) {
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		s.Abort(context.Background())

		err := s.EnterMultipart(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrUploadAborted)
	})

	t.Run("upgrades a single-part session for the fallback", func(t *testing.T) {
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		require.NoError(t, s.markSingle("putObject"))

		require.NoError(t, s.EnterMultipart(context.Background()))
		assert.Equal(t, ModeMultipart, s.Mode())
	})

	t.Run("creation failure is classified", func(t *testing.T) {
		mock := &testutil.MockS3Client{
			CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
				return nil, fmt.Errorf("service unavailable")
			},
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		err := s.EnterMultipart(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrStorage)
	})
}

func TestSession_SubmitRequiresMultipart(t *testing.T) {
	mock := newTrackedMock(nil)
	s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

	err := s.SubmitPart(context.Background(), []byte("data"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transfererrors.ErrInvalidInput)
}

func TestSession_PartCountLimit(t *testing.T) {
	ctx := context.Background()
	mock := newTrackedMock(nil)
	cfg := testSettings()
	cfg.Limits.MaxPartCount = 2
	s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})
	enterMultipart(t, s)

	require.NoError(t, s.SubmitPart(ctx, []byte("one"), nil))
	require.NoError(t, s.SubmitPart(ctx, []byte("two"), nil))

	err := s.SubmitPart(ctx, []byte("three"), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, transfererrors.ErrPartLimitExceeded)

	// The rejected part leaves no dangling work behind.
	assert.Equal(t, 0, s.InFlight())
	require.NoError(t, s.DrainAll(ctx))
	assert.Equal(t, int32(2), s.PartCount())
}

func TestSession_PartSizeGrowth(t *testing.T) {
	ctx := context.Background()
	mock := newTrackedMock(nil)
	events := testutil.NewCountingRecorder()

	cfg := testSettings()
	cfg.Limits = Limits{MinPartSize: 10, MaxPartSize: 35, MaxPartCount: 1000}
	cfg.GrowthFactor = 2
	cfg.GrowthEvery = 2
	s := NewUploadSession(mock, "bucket", "key", cfg, Deps{
		Scheduler: testutil.SyncScheduler{},
		Events:    events,
	})
	enterMultipart(t, s)

	// Growth fires as every second part is allocated and caps at the
	// maximum part size.
	wantSizes := []int64{10, 20, 20, 35, 35, 35}
	for i, want := range wantSizes {
		require.NoError(t, s.SubmitPart(ctx, []byte("data"), nil))
		assert.Equal(t, want, s.PartSize(), "after part %d", i+1)
	}

	assert.Equal(t, 2, events.Count(EventPartSizeGrowth))
	require.NoError(t, s.DrainAll(ctx))
	assert.Equal(t, int32(6), s.PartCount())
}

func TestSession_GrowthDisabled(t *testing.T) {
	ctx := context.Background()
	mock := newTrackedMock(nil)

	cfg := testSettings()
	cfg.Limits = Limits{MinPartSize: 10, MaxPartSize: 1000, MaxPartCount: 1000}
	cfg.GrowthFactor = 2
	cfg.GrowthEvery = 0
	s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})
	enterMultipart(t, s)

	for i := 0; i < 6; i++ {
		require.NoError(t, s.SubmitPart(ctx, []byte("data"), nil))
	}
	assert.Equal(t, int64(10), s.PartSize())
}

func TestSession_TransientRetry(t *testing.T) {
	t.Run("recovers within the budget", func(t *testing.T) {
		ctx := context.Background()
		var attempts atomic.Int32
		events := testutil.NewCountingRecorder()
		mock := newTrackedMock(nil)
		inner := mock.UploadPartFunc
		mock.UploadPartFunc = func(c context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			if attempts.Add(1) <= 2 {
				return nil, &awstypes.NoSuchUpload{}
			}
			return inner(c, params, optFns...)
		}

		cfg := testSettings()
		cfg.Retries = 4
		s := NewUploadSession(mock, "bucket", "key", cfg, Deps{
			Scheduler: testutil.SyncScheduler{},
			Events:    events,
		})
		enterMultipart(t, s)

		require.NoError(t, s.SubmitPart(ctx, []byte("data"), nil))
		require.NoError(t, s.DrainAll(ctx))

		assert.Equal(t, int32(3), attempts.Load())
		assert.Equal(t, 2, events.Count(EventTransientRetry))
		assert.Equal(t, int32(1), s.PartCount())
	})

	t.Run("exhaustion fails the part", func(t *testing.T) {
		ctx := context.Background()
		var attempts atomic.Int32
		mock := newTrackedMock(nil)
		mock.UploadPartFunc = func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			attempts.Add(1)
			return nil, &awstypes.NoSuchUpload{}
		}

		cfg := testSettings()
		cfg.Retries = 2
		s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		require.NoError(t, s.SubmitPart(ctx, []byte("data"), nil))
		err := s.DrainAll(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrTransientStorage)
		assert.Equal(t, int32(3), attempts.Load(), "budget of 2 retries allows 3 attempts")
		assert.True(t, s.Aborted())
	})

	t.Run("budget never drops below one retry", func(t *testing.T) {
		ctx := context.Background()
		var attempts atomic.Int32
		mock := newTrackedMock(nil)
		mock.UploadPartFunc = func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			attempts.Add(1)
			return nil, &awstypes.NoSuchKey{}
		}

		cfg := testSettings()
		cfg.Retries = 0
		s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		require.NoError(t, s.SubmitPart(ctx, []byte("data"), nil))
		require.Error(t, s.DrainAll(ctx))
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("hard failures are not retried", func(t *testing.T) {
		ctx := context.Background()
		var attempts atomic.Int32
		mock := newTrackedMock(nil)
		mock.UploadPartFunc = func(_ context.Context, _ *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			attempts.Add(1)
			return nil, fmt.Errorf("access denied")
		}

		cfg := testSettings()
		cfg.Retries = 4
		s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		require.NoError(t, s.SubmitPart(ctx, []byte("data"), nil))
		err := s.DrainAll(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrStorage)
		assert.Equal(t, int32(1), attempts.Load())
	})
}

func TestSession_CompleteMultipart(t *testing.T) {
	t.Run("sends parts in order", func(t *testing.T) {
		ctx := context.Background()
		var completed *awstypes.CompletedMultipartUpload
		mock := newTrackedMock(nil)
		mock.CompleteMultipartUploadFunc = func(_ context.Context, params *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			completed = params.MultipartUpload
			return testutil.CreateCompleteMultipartUploadOutput("bucket", "key", `"final-etag"`), nil
		}

		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)
		require.NoError(t, s.SubmitPart(ctx, []byte("one"), nil))
		require.NoError(t, s.SubmitPart(ctx, []byte("two"), nil))
		require.NoError(t, s.DrainAll(ctx))

		require.NoError(t, s.CompleteMultipart(ctx))

		require.NotNil(t, completed)
		require.Len(t, completed.Parts, 2)
		assert.Equal(t, int32(1), aws.ToInt32(completed.Parts[0].PartNumber))
		assert.Equal(t, int32(2), aws.ToInt32(completed.Parts[1].PartNumber))
		assert.Equal(t, `"final-etag"`, s.ETag())
	})

	t.Run("retries a transiently missing upload", func(t *testing.T) {
		ctx := context.Background()
		var attempts atomic.Int32
		mock := newTrackedMock(nil)
		mock.CompleteMultipartUploadFunc = func(_ context.Context, _ *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
			if attempts.Add(1) == 1 {
				return nil, &awstypes.NoSuchUpload{}
			}
			return testutil.CreateCompleteMultipartUploadOutput("bucket", "key", `"final-etag"`), nil
		}

		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)
		require.NoError(t, s.SubmitPart(ctx, []byte("one"), nil))
		require.NoError(t, s.DrainAll(ctx))

		require.NoError(t, s.CompleteMultipart(ctx))
		assert.Equal(t, int32(2), attempts.Load())
	})

	t.Run("fails with no uploaded parts", func(t *testing.T) {
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		err := s.CompleteMultipart(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrStorage)
	})

	t.Run("fails outside multipart mode", func(t *testing.T) {
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		err := s.CompleteMultipart(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrInvalidInput)
	})

	t.Run("fails after abort", func(t *testing.T) {
		ctx := context.Background()
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)
		s.Abort(ctx)

		err := s.CompleteMultipart(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrUploadAborted)
	})
}

func TestSession_PutSingle(t *testing.T) {
	t.Run("writes the whole object atomically", func(t *testing.T) {
		var got *s3.PutObjectInput
		var body []byte
		mock := &testutil.MockS3Client{
			PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				got = params
				var err error
				body, err = io.ReadAll(params.Body)
				require.NoError(t, err)
				return testutil.CreatePutObjectOutput(`"single-etag"`), nil
			},
		}
		cfg := testSettings()
		cfg.ContentType = "text/plain"
		s := NewUploadSession(mock, "bucket", "key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.PutSingle(context.Background(), []byte("hello")))

		require.NotNil(t, got)
		assert.Equal(t, "bucket", aws.ToString(got.Bucket))
		assert.Equal(t, "key", aws.ToString(got.Key))
		assert.Equal(t, int64(5), aws.ToInt64(got.ContentLength))
		assert.Equal(t, "text/plain", aws.ToString(got.ContentType))
		assert.Equal(t, "hello", string(body))
		assert.Equal(t, ModeSinglePart, s.Mode())
		assert.Equal(t, `"single-etag"`, s.ETag())
		assert.Equal(t, int64(5), s.CompletedBytes())
	})

	t.Run("empty payload writes an empty object", func(t *testing.T) {
		var got *s3.PutObjectInput
		mock := &testutil.MockS3Client{
			PutObjectFunc: func(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				got = params
				return testutil.CreatePutObjectOutput(`"empty-etag"`), nil
			},
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.PutSingle(context.Background(), nil))
		require.NotNil(t, got)
		assert.Equal(t, int64(0), aws.ToInt64(got.ContentLength))
		assert.Equal(t, int64(0), s.CompletedBytes())
	})

	t.Run("too large signals the multipart fallback", func(t *testing.T) {
		events := testutil.NewCountingRecorder()
		mock := newTrackedMock(nil)
		mock.PutObjectFunc = func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
			return nil, &smithy.GenericAPIError{Code: "EntityTooLarge", Message: "too big"}
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{
			Scheduler: testutil.SyncScheduler{},
			Events:    events,
		})

		err := s.PutSingle(context.Background(), []byte("huge"))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSingleTooLarge)
		assert.Equal(t, 1, events.Count(EventSinglePartFallback))

		// The session stays usable and upgrades to multipart.
		require.NoError(t, s.EnterMultipart(context.Background()))
		assert.Equal(t, ModeMultipart, s.Mode())
	})

	t.Run("hard failure is classified as storage", func(t *testing.T) {
		mock := &testutil.MockS3Client{
			PutObjectFunc: func(_ context.Context, _ *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
				return nil, fmt.Errorf("connection reset")
			},
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		err := s.PutSingle(context.Background(), []byte("data"))
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrStorage)
		assert.NotErrorIs(t, err, ErrSingleTooLarge)
	})

	t.Run("rejected once multipart is in progress", func(t *testing.T) {
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		err := s.PutSingle(context.Background(), []byte("data"))
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrInvalidInput)
	})
}

func TestSession_CopySingle(t *testing.T) {
	t.Run("copies the whole object atomically", func(t *testing.T) {
		var got *s3.CopyObjectInput
		mock := &testutil.MockS3Client{
			CopyObjectFunc: func(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
				got = params
				return &s3.CopyObjectOutput{
					CopyObjectResult: &awstypes.CopyObjectResult{ETag: aws.String(`"copy-etag"`)},
				}, nil
			},
		}
		s := NewCopySession(mock, "src-bucket", "src-key", "dst-bucket", "dst-key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.CopySingle(context.Background(), 1234))

		require.NotNil(t, got)
		assert.Equal(t, "src-bucket/src-key", aws.ToString(got.CopySource))
		assert.Equal(t, "dst-bucket", aws.ToString(got.Bucket))
		assert.Equal(t, "dst-key", aws.ToString(got.Key))
		assert.Equal(t, `"copy-etag"`, s.ETag())
		assert.Equal(t, int64(1234), s.CompletedBytes())
	})

	t.Run("replaces metadata when overrides are set", func(t *testing.T) {
		var got *s3.CopyObjectInput
		mock := &testutil.MockS3Client{
			CopyObjectFunc: func(_ context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
				got = params
				return &s3.CopyObjectOutput{}, nil
			},
		}
		cfg := testSettings()
		cfg.Metadata = map[string]string{"rewritten": "yes"}
		s := NewCopySession(mock, "src-bucket", "src-key", "dst-bucket", "dst-key", cfg, Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.CopySingle(context.Background(), 10))
		require.NotNil(t, got)
		assert.Equal(t, awstypes.MetadataDirectiveReplace, got.MetadataDirective)
		assert.Equal(t, "yes", got.Metadata["rewritten"])
	})

	t.Run("too large signals the multipart fallback", func(t *testing.T) {
		mock := &testutil.MockS3Client{
			CopyObjectFunc: func(_ context.Context, _ *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "InvalidRequest", Message: "copy source too large"}
			},
		}
		s := NewCopySession(mock, "src-bucket", "src-key", "dst-bucket", "dst-key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		err := s.CopySingle(context.Background(), 10<<30)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSingleTooLarge)
	})
}

func TestSession_Verify(t *testing.T) {
	t.Run("passes when the object exists", func(t *testing.T) {
		mock := &testutil.MockS3Client{
			HeadObjectFunc: func(_ context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				assert.Equal(t, "bucket", aws.ToString(params.Bucket))
				assert.Equal(t, "key", aws.ToString(params.Key))
				return &s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil
			},
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		require.NoError(t, s.Verify(context.Background()))
	})

	t.Run("missing object fails without retry", func(t *testing.T) {
		heads := 0
		mock := &testutil.MockS3Client{
			HeadObjectFunc: func(_ context.Context, _ *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				heads++
				return nil, &awstypes.NotFound{}
			},
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		err := s.Verify(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, transfererrors.ErrVerificationFailed)
		assert.Equal(t, 1, heads)
	})
}

func TestSession_Abort(t *testing.T) {
	t.Run("releases the server-side upload once", func(t *testing.T) {
		ctx := context.Background()
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		s.Abort(ctx)
		s.Abort(ctx)
		s.Abort(ctx)

		assert.Equal(t, 1, mock.aborts.Total())
		assert.True(t, s.Aborted())
	})

	t.Run("no server call without an upload id", func(t *testing.T) {
		mock := newTrackedMock(nil)
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})

		s.Abort(context.Background())

		assert.Equal(t, 0, mock.aborts.Total())
		assert.True(t, s.Aborted())
	})

	t.Run("server failure is swallowed", func(t *testing.T) {
		ctx := context.Background()
		aborts := 0
		mock := newTrackedMock(nil)
		mock.AbortMultipartUploadFunc = func(_ context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			aborts++
			return nil, fmt.Errorf("already gone")
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		s.Abort(ctx)
		s.Abort(ctx)

		assert.Equal(t, 1, aborts, "failed abort is not re-sent")
		assert.True(t, s.Aborted())
	})

	t.Run("abort still reaches the service on a canceled context", func(t *testing.T) {
		mock := newTrackedMock(nil)
		var abortCtxErr error
		mock.AbortMultipartUploadFunc = func(c context.Context, _ *s3.AbortMultipartUploadInput, _ ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
			abortCtxErr = c.Err()
			return &s3.AbortMultipartUploadOutput{}, nil
		}
		s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
		enterMultipart(t, s)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		s.Abort(ctx)

		assert.NoError(t, abortCtxErr, "cleanup call must not inherit the cancellation")
	})
}

func TestSession_EventRecording(t *testing.T) {
	ctx := context.Background()
	events := testutil.NewCountingRecorder()
	mock := newTrackedMock(nil)
	mock.CompleteMultipartUploadFunc = func(_ context.Context, _ *s3.CompleteMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
		return testutil.CreateCompleteMultipartUploadOutput("bucket", "key", `"etag"`), nil
	}

	s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{
		Scheduler: testutil.SyncScheduler{},
		Events:    events,
	})
	enterMultipart(t, s)
	require.NoError(t, s.SubmitPart(ctx, []byte("one"), nil))
	require.NoError(t, s.SubmitPart(ctx, []byte("two"), nil))
	require.NoError(t, s.DrainAll(ctx))
	require.NoError(t, s.CompleteMultipart(ctx))
	require.NoError(t, s.Verify(ctx))

	assert.Equal(t, 1, events.Count(EventCreateMultipart))
	assert.Equal(t, 2, events.Count(EventUploadPart))
	assert.Equal(t, 1, events.Count(EventCompleteMultipart))
	assert.Equal(t, 1, events.Count(EventHeadObject))
	assert.Equal(t, 0, events.Count(EventAbortMultipart))
}

func TestSession_SubmitRange(t *testing.T) {
	ctx := context.Background()
	var got *s3.UploadPartCopyInput
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return testutil.CreateMultipartUploadOutput("dst-bucket", "dst-key", "upload-1"), nil
		},
		UploadPartCopyFunc: func(_ context.Context, params *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
			got = params
			return testutil.CreateUploadPartCopyOutput(`"range-etag"`), nil
		},
	}
	s := NewCopySession(mock, "src-bucket", "src-key", "dst-bucket", "dst-key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
	enterMultipart(t, s)

	require.NoError(t, s.SubmitRange(ctx, 5, 10))
	require.NoError(t, s.DrainAll(ctx))

	require.NotNil(t, got)
	assert.Equal(t, "src-bucket/src-key", aws.ToString(got.CopySource))
	assert.Equal(t, "bytes=5-14", aws.ToString(got.CopySourceRange), "range header is inclusive")
	assert.Equal(t, int32(1), aws.ToInt32(got.PartNumber))
	assert.Equal(t, "upload-1", aws.ToString(got.UploadId))
	assert.Equal(t, int64(10), s.CompletedBytes())
}

func TestSession_UploadPartInput(t *testing.T) {
	ctx := context.Background()
	var got *s3.UploadPartInput
	var body []byte
	mock := &testutil.MockS3Client{
		CreateMultipartUploadFunc: func(_ context.Context, _ *s3.CreateMultipartUploadInput, _ ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
			return testutil.CreateMultipartUploadOutput("bucket", "key", "upload-9"), nil
		},
		UploadPartFunc: func(_ context.Context, params *s3.UploadPartInput, _ ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
			got = params
			var err error
			body, err = io.ReadAll(params.Body)
			require.NoError(t, err)
			return testutil.CreateUploadPartOutput(`"p-etag"`), nil
		},
	}
	s := NewUploadSession(mock, "bucket", "key", testSettings(), Deps{Scheduler: testutil.SyncScheduler{}})
	enterMultipart(t, s)

	require.NoError(t, s.SubmitPart(ctx, []byte("payload"), nil))
	require.NoError(t, s.DrainAll(ctx))

	require.NotNil(t, got)
	assert.Equal(t, "bucket", aws.ToString(got.Bucket))
	assert.Equal(t, "key", aws.ToString(got.Key))
	assert.Equal(t, "upload-9", aws.ToString(got.UploadId))
	assert.Equal(t, int64(7), aws.ToInt64(got.ContentLength))
	assert.Equal(t, "payload", string(body))
	assert.Equal(t, int64(7), s.CompletedBytes())
}
