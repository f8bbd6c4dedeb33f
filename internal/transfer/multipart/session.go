// Package multipart implements the concurrent upload session engine.
package multipart

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/s3api"
)

// protocolMaxParts is the multipart part count cap in the S3 protocol.
// Non-AWS backends may be configured past it, so crossing the line logs a
// warning instead of failing the upload.
const protocolMaxParts = 10000

// Mode is a session's write strategy decision.
type Mode int

const (
	// ModeUndecided means no storage call has committed the session yet.
	ModeUndecided Mode = iota

	// ModeSinglePart means the object is written in one atomic operation.
	ModeSinglePart

	// ModeMultipart means the object is assembled from uploaded parts.
	ModeMultipart
)

// Scheduler dispatches part transfers for background execution. Schedule
// blocks until the function is accepted or ctx is done. The engine assumes
// nothing about parallelism beyond what the scheduler provides.
type Scheduler interface {
	Schedule(ctx context.Context, fn func()) error
}

// Settings configures one upload session.
type Settings struct {
	// Limits bound part sizing for this session.
	Limits Limits

	// GrowthFactor multiplies the target part size each time GrowthEvery
	// parts have been allocated, capped at Limits.MaxPartSize. A factor
	// below 2 or a zero interval disables growth.
	GrowthFactor int64
	GrowthEvery  int64

	// Retries bounds how often a transiently missing resource is retried
	// per storage call. The effective budget never drops below one.
	Retries int

	// RetryDelay is the base backoff delay between transient retries.
	// Zero selects the default.
	RetryDelay time.Duration

	// ContentType, Metadata, and StorageClass are applied to the
	// destination object when it is created.
	ContentType  string
	Metadata     map[string]string
	StorageClass awstypes.StorageClass
}

// Deps are a session's injected collaborators. Scheduler is required, the
// rest may be nil.
type Deps struct {
	Scheduler Scheduler
	Logger    *slog.Logger
	Events    EventRecorder

	// PartApplied, when set, is invoked with each part's byte count as its
	// result is applied, in submission order.
	PartApplied func(bytes int64)
}

// Session drives the upload of one destination object, either from locally
// buffered data or by server-side range copies. A session is single-writer:
// submissions, drains, and finalization happen on one goroutine while part
// transfers run in the background. Sessions are not reusable.
type Session struct {
	api      s3api.S3API
	strategy partTransfer
	sched    Scheduler
	logger   *slog.Logger
	events   EventRecorder

	partApplied func(int64)

	srcBucket string
	srcKey    string
	dstBucket string
	dstKey    string

	cfg Settings

	mu   sync.Mutex
	cond *sync.Cond

	// queue, added, and finished implement the submission-order task
	// tracking in tracker.go.
	queue    []*task
	added    int
	finished int

	mode           Mode
	uploadID       string
	partSize       int64
	nextPartNumber int32
	parts          []awstypes.CompletedPart
	completedBytes int64
	finalETag      string
	aborted        bool
	abortSent      bool
}

// NewUploadSession creates a session whose parts carry locally buffered data
// destined for bucket/key.
func NewUploadSession(api s3api.S3API, bucket, key string, cfg Settings, deps Deps) *Session {
	s := newSession(api, bucket, key, cfg, deps)
	s.strategy = &dataTransfer{api: api, bucket: bucket, key: key}
	return s
}

// NewCopySession creates a session whose parts are server-side copies of
// byte ranges from srcBucket/srcKey into dstBucket/dstKey.
func NewCopySession(api s3api.S3API, srcBucket, srcKey, dstBucket, dstKey string, cfg Settings, deps Deps) *Session {
	s := newSession(api, dstBucket, dstKey, cfg, deps)
	s.srcBucket = srcBucket
	s.srcKey = srcKey
	s.strategy = &rangeCopyTransfer{
		api:       api,
		srcBucket: srcBucket,
		srcKey:    srcKey,
		dstBucket: dstBucket,
		dstKey:    dstKey,
	}
	return s
}

func newSession(api s3api.S3API, bucket, key string, cfg Settings, deps Deps) *Session {
	s := &Session{
		api:         api,
		sched:       deps.Scheduler,
		logger:      deps.Logger,
		events:      deps.Events,
		partApplied: deps.PartApplied,
		dstBucket:   bucket,
		dstKey:      key,
		cfg:         cfg,
		partSize:    cfg.Limits.MinPartSize,

		// Part numbers are 1-based in the multipart protocol.
		nextPartNumber: 1,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Mode reports the session's current write strategy.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// PartSize reports the target size for the next submitted part.
func (s *Session) PartSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partSize
}

// SetPartSize overrides the target part size. Callers with a known total
// size set this from a computed plan instead of relying on growth.
func (s *Session) SetPartSize(size int64) {
	s.mu.Lock()
	s.partSize = size
	s.mu.Unlock()
}

// UploadID returns the active multipart upload identifier, empty before
// EnterMultipart succeeds.
func (s *Session) UploadID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploadID
}

// ETag returns the destination object's entity tag once the session has
// completed successfully.
func (s *Session) ETag() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.finalETag
}

// CompletedBytes reports the object bytes whose results have been applied.
func (s *Session) CompletedBytes() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completedBytes
}

// PartCount reports the number of part results applied so far.
func (s *Session) PartCount() int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int32(len(s.parts))
}

// Aborted reports whether the session has been aborted.
func (s *Session) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// EnterMultipart transitions the session to multipart mode by creating the
// server-side upload. Calling it again once in multipart mode is a no-op.
// Creation failures are not retried; a session that cannot be created was
// never observable remotely.
func (s *Session) EnterMultipart(ctx context.Context) error {
	s.mu.Lock()
	if s.mode == ModeMultipart {
		s.mu.Unlock()
		return nil
	}
	if s.aborted {
		s.mu.Unlock()
		return transfererrors.NewObjectError("enterMultipart", s.dstBucket, s.dstKey,
			transfererrors.ErrUploadAborted)
	}
	s.mu.Unlock()

	s.record(EventCreateMultipart)
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.dstBucket),
		Key:    aws.String(s.dstKey),
	}
	if s.cfg.ContentType != "" {
		input.ContentType = aws.String(s.cfg.ContentType)
	}
	if len(s.cfg.Metadata) > 0 {
		input.Metadata = s.cfg.Metadata
	}
	if s.cfg.StorageClass != "" {
		input.StorageClass = s.cfg.StorageClass
	}

	output, err := s.api.CreateMultipartUpload(ctx, input)
	if err != nil {
		return s.classifyFailure("createMultipartUpload", err)
	}

	s.mu.Lock()
	s.uploadID = aws.ToString(output.UploadId)
	s.mode = ModeMultipart
	uploadID := s.uploadID
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.InfoContext(ctx, "multipart upload created",
			"bucket", s.dstBucket,
			"key", s.dstKey,
			"upload_id", uploadID)
	}
	return nil
}

// SubmitPart schedules payload as the next part of the upload. release,
// when non-nil, is invoked exactly once when the transfer no longer needs
// the buffer, on success, failure, and abort paths alike.
func (s *Session) SubmitPart(ctx context.Context, payload []byte, release func()) error {
	t := &task{
		payload: payload,
		release: release,
		size:    int64(len(payload)),
	}
	return s.submit(ctx, "submitPart", t)
}

// SubmitRange schedules a server-side copy of length source bytes starting
// at offset as the next part of the upload.
func (s *Session) SubmitRange(ctx context.Context, offset, length int64) error {
	t := &task{
		offset: offset,
		length: length,
		size:   length,
	}
	return s.submit(ctx, "submitRange", t)
}

func (s *Session) submit(ctx context.Context, op string, t *task) error {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		t.releaseBuffer()
		return transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
			transfererrors.ErrUploadAborted)
	}
	if s.mode != ModeMultipart {
		s.mu.Unlock()
		t.releaseBuffer()
		return transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
			fmt.Errorf("%w: no multipart upload in progress", transfererrors.ErrInvalidInput))
	}
	s.mu.Unlock()

	partNumber, err := s.allocatePart(ctx, op)
	if err != nil {
		t.releaseBuffer()
		return err
	}
	t.partNumber = partNumber

	s.enqueue(t)
	if err := s.sched.Schedule(ctx, func() { s.runTask(ctx, t) }); err != nil {
		err = transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
			fmt.Errorf("%w: scheduling part %d: %w", transfererrors.ErrStorage, t.partNumber, err))
		t.releaseBuffer()
		s.finishTask(t, "", err)
		return err
	}
	return nil
}

// allocatePart hands out the next part number and applies the growth
// policy to the parts that follow it.
func (s *Session) allocatePart(ctx context.Context, op string) (int32, error) {
	var grownTo int64

	s.mu.Lock()
	n := s.nextPartNumber
	if int64(n) > s.cfg.Limits.MaxPartCount {
		s.mu.Unlock()
		return 0, transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
			fmt.Errorf("%w: part %d exceeds the configured maximum of %d parts",
				transfererrors.ErrPartLimitExceeded, n, s.cfg.Limits.MaxPartCount))
	}
	s.nextPartNumber++
	if s.cfg.GrowthEvery > 0 && s.cfg.GrowthFactor > 1 && int64(n)%s.cfg.GrowthEvery == 0 {
		grown := s.partSize * s.cfg.GrowthFactor
		if grown > s.cfg.Limits.MaxPartSize {
			grown = s.cfg.Limits.MaxPartSize
		}
		if grown > s.partSize {
			s.partSize = grown
			grownTo = grown
		}
	}
	s.mu.Unlock()

	if n == protocolMaxParts && s.logger != nil {
		s.logger.WarnContext(ctx, "part count reached the s3 protocol maximum",
			"bucket", s.dstBucket,
			"key", s.dstKey,
			"part_number", n)
	}
	if grownTo > 0 {
		s.record(EventPartSizeGrowth)
		if s.logger != nil {
			s.logger.DebugContext(ctx, "target part size increased",
				"part_size", grownTo,
				"after_part", n)
		}
	}
	return n, nil
}

// runTask executes one part transfer on a scheduler goroutine. Aborted
// sessions skip the storage call; the task still finishes so drains
// converge, and its empty result is discarded.
func (s *Session) runTask(ctx context.Context, t *task) {
	if s.Aborted() {
		t.releaseBuffer()
		s.finishTask(t, "", nil)
		return
	}

	uploadID := s.UploadID()
	var etag string
	err := s.runWithRetry(ctx, s.strategy.opName(), func(ctx context.Context) error {
		s.record(s.strategy.event())
		tag, terr := s.strategy.transfer(ctx, uploadID, t)
		if terr != nil {
			return terr
		}
		etag = tag
		return nil
	})
	if err != nil {
		err = s.classifyFailure(s.strategy.opName(), err)
	}

	t.releaseBuffer()
	s.finishTask(t, etag, err)
}

// CompleteMultipart finalizes the object from the applied part results.
// The service may transiently report the upload as missing right after
// creation, so completion is retried within the transient budget.
func (s *Session) CompleteMultipart(ctx context.Context) error {
	s.mu.Lock()
	if s.aborted {
		s.mu.Unlock()
		return transfererrors.NewObjectError("completeMultipartUpload", s.dstBucket, s.dstKey,
			transfererrors.ErrUploadAborted)
	}
	if s.mode != ModeMultipart {
		s.mu.Unlock()
		return transfererrors.NewObjectError("completeMultipartUpload", s.dstBucket, s.dstKey,
			fmt.Errorf("%w: no multipart upload in progress", transfererrors.ErrInvalidInput))
	}
	uploadID := s.uploadID
	parts := s.parts
	s.mu.Unlock()

	if len(parts) == 0 {
		return transfererrors.NewObjectError("completeMultipartUpload", s.dstBucket, s.dstKey,
			fmt.Errorf("%w: no parts have been uploaded", transfererrors.ErrStorage))
	}

	err := s.runWithRetry(ctx, "completeMultipartUpload", func(ctx context.Context) error {
		s.record(EventCompleteMultipart)
		output, cerr := s.api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
			Bucket:   aws.String(s.dstBucket),
			Key:      aws.String(s.dstKey),
			UploadId: aws.String(uploadID),
			MultipartUpload: &awstypes.CompletedMultipartUpload{
				Parts: parts,
			},
		})
		if cerr != nil {
			return cerr
		}
		s.setFinalETag(aws.ToString(output.ETag))
		return nil
	})
	if err != nil {
		return s.classifyFailure("completeMultipartUpload", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "multipart upload completed",
			"bucket", s.dstBucket,
			"key", s.dstKey,
			"upload_id", uploadID,
			"parts", len(parts))
	}
	return nil
}

// ErrSingleTooLarge tags single-operation failures where the service
// rejected the write as exceeding its atomic operation limit. Callers
// detect it with errors.Is and restart the upload as multipart.
var ErrSingleTooLarge = errors.New("single operation rejected as too large")

// PutSingle writes payload as the whole object in one atomic operation.
// An empty payload is a valid empty object. When the service rejects the
// write as too large the returned error matches ErrSingleTooLarge and the
// session remains usable for a multipart fallback.
func (s *Session) PutSingle(ctx context.Context, payload []byte) error {
	if err := s.markSingle("putObject"); err != nil {
		return err
	}

	err := s.runWithRetry(ctx, "putObject", func(ctx context.Context) error {
		s.record(EventPutObject)
		input := &s3.PutObjectInput{
			Bucket:        aws.String(s.dstBucket),
			Key:           aws.String(s.dstKey),
			Body:          bytes.NewReader(payload),
			ContentLength: aws.Int64(int64(len(payload))),
		}
		if s.cfg.ContentType != "" {
			input.ContentType = aws.String(s.cfg.ContentType)
		}
		if len(s.cfg.Metadata) > 0 {
			input.Metadata = s.cfg.Metadata
		}
		if s.cfg.StorageClass != "" {
			input.StorageClass = s.cfg.StorageClass
		}

		output, perr := s.api.PutObject(ctx, input)
		if perr != nil {
			return perr
		}
		s.setSingleResult(aws.ToString(output.ETag), int64(len(payload)))
		return nil
	})
	if err == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "object written in a single operation",
				"bucket", s.dstBucket,
				"key", s.dstKey,
				"size", len(payload))
		}
		return nil
	}
	if IsTooLarge(err) {
		s.record(EventSinglePartFallback)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "single write rejected as too large, falling back to multipart",
				"bucket", s.dstBucket,
				"key", s.dstKey,
				"size", len(payload))
		}
		return fmt.Errorf("%w: %w", ErrSingleTooLarge, err)
	}
	return s.classifyFailure("putObject", err)
}

// CopySingle copies the whole source object in one atomic server-side
// operation. size is the source object's byte count. Too-large rejections
// match ErrSingleTooLarge, leaving the session usable for a multipart
// fallback.
func (s *Session) CopySingle(ctx context.Context, size int64) error {
	if err := s.markSingle("copyObject"); err != nil {
		return err
	}

	copySource := fmt.Sprintf("%s/%s", s.srcBucket, s.srcKey)
	err := s.runWithRetry(ctx, "copyObject", func(ctx context.Context) error {
		s.record(EventCopyObject)
		input := &s3.CopyObjectInput{
			Bucket:     aws.String(s.dstBucket),
			Key:        aws.String(s.dstKey),
			CopySource: aws.String(copySource),
		}
		if len(s.cfg.Metadata) > 0 {
			input.Metadata = s.cfg.Metadata
			input.MetadataDirective = awstypes.MetadataDirectiveReplace
		}
		if s.cfg.ContentType != "" {
			input.ContentType = aws.String(s.cfg.ContentType)
			input.MetadataDirective = awstypes.MetadataDirectiveReplace
		}
		if s.cfg.StorageClass != "" {
			input.StorageClass = s.cfg.StorageClass
		}

		output, cerr := s.api.CopyObject(ctx, input)
		if cerr != nil {
			return cerr
		}
		etag := ""
		if output.CopyObjectResult != nil {
			etag = aws.ToString(output.CopyObjectResult.ETag)
		}
		s.setSingleResult(etag, size)
		return nil
	})
	if err == nil {
		if s.logger != nil {
			s.logger.InfoContext(ctx, "object copied in a single operation",
				"source_bucket", s.srcBucket,
				"source_key", s.srcKey,
				"bucket", s.dstBucket,
				"key", s.dstKey,
				"size", size)
		}
		return nil
	}
	if IsTooLarge(err) {
		s.record(EventSinglePartFallback)
		if s.logger != nil {
			s.logger.InfoContext(ctx, "single copy rejected as too large, falling back to multipart",
				"bucket", s.dstBucket,
				"key", s.dstKey,
				"size", size)
		}
		return fmt.Errorf("%w: %w", ErrSingleTooLarge, err)
	}
	return s.classifyFailure("copyObject", err)
}

// Verify confirms the destination object exists after a completed upload.
// A missing object here is the failure being checked for, so not-found is
// never retried.
func (s *Session) Verify(ctx context.Context) error {
	s.record(EventHeadObject)
	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.dstBucket),
		Key:    aws.String(s.dstKey),
	})
	if err == nil {
		return nil
	}
	if IsTransientNotFound(err) {
		return transfererrors.NewObjectError("verifyUpload", s.dstBucket, s.dstKey,
			fmt.Errorf("%w: object missing immediately after upload: %w",
				transfererrors.ErrVerificationFailed, err))
	}
	return s.classifyFailure("verifyUpload", err)
}

// Abort cancels the upload. The first call releases the server-side
// multipart session, if one exists; repeated calls are no-ops. Remote
// cancellation failures are logged, never returned, so abort is safe on
// every failure path.
func (s *Session) Abort(ctx context.Context) {
	s.mu.Lock()
	s.aborted = true
	if s.abortSent || s.uploadID == "" {
		s.mu.Unlock()
		return
	}
	s.abortSent = true
	uploadID := s.uploadID
	s.mu.Unlock()

	s.record(EventAbortMultipart)

	// Cleanup must still reach the service when the caller's context is
	// already canceled.
	ctx = context.WithoutCancel(ctx)
	_, err := s.api.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.dstBucket),
		Key:      aws.String(s.dstKey),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "failed to abort multipart upload",
				"bucket", s.dstBucket,
				"key", s.dstKey,
				"upload_id", uploadID,
				"error", err)
		}
		return
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "multipart upload aborted",
			"bucket", s.dstBucket,
			"key", s.dstKey,
			"upload_id", uploadID)
	}
}

// markSingle commits the session to a single atomic write.
func (s *Session) markSingle(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.aborted {
		return transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
			transfererrors.ErrUploadAborted)
	}
	if s.mode == ModeMultipart {
		return transfererrors.NewObjectError(op, s.dstBucket, s.dstKey,
			fmt.Errorf("%w: multipart upload already in progress", transfererrors.ErrInvalidInput))
	}
	s.mode = ModeSinglePart
	return nil
}

func (s *Session) setSingleResult(etag string, size int64) {
	s.mu.Lock()
	s.finalETag = etag
	s.completedBytes = size
	s.mu.Unlock()
}

func (s *Session) setFinalETag(etag string) {
	s.mu.Lock()
	s.finalETag = etag
	s.mu.Unlock()
}

func (s *Session) record(event string) {
	if s.events != nil {
		s.events.Record(event)
	}
}
