// Package s3transfer provides functional options for configuring client and
// transfer behavior. These options follow the functional options pattern for
// clean, composable configuration.
package s3transfer

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/input-output-hk/catalyst-forge-libs/fs"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

// ClientConfig holds the client construction settings assembled by Option
// functions.
type ClientConfig struct {
	// Region overrides the region resolved from the AWS credential chain.
	Region string

	// Endpoint points the client at a custom S3-compatible endpoint.
	Endpoint string

	// ForcePathStyle selects path-style addressing, required by most
	// S3-compatible services.
	ForcePathStyle bool

	// CustomAWSConfig replaces the default credential chain entirely.
	CustomAWSConfig *aws.Config

	// CustomHTTPClient replaces the SDK's HTTP client.
	CustomHTTPClient *http.Client

	// Timeout bounds individual HTTP requests when no custom HTTP client
	// is supplied. Zero means no timeout.
	Timeout time.Duration

	// MaxRetries sets the SDK-level request retry count.
	MaxRetries int

	// Concurrency sizes the built-in part scheduler. Ignored when a
	// custom Scheduler is supplied.
	Concurrency int

	// Scheduler replaces the built-in bounded worker pool.
	Scheduler Scheduler

	// Logger receives structured transfer logs. Nil disables logging.
	Logger *slog.Logger

	// Events receives storage operation events. Nil disables recording.
	Events EventRecorder

	// Filesystem is the source filesystem for file uploads.
	Filesystem fs.Filesystem

	// Transfer carries client-level defaults for the per-transfer knobs.
	Transfer TransferConfig
}

// Option configures the client at construction time.
type Option func(*ClientConfig)

// TransferConfig holds per-transfer tuning assembled by TransferOption
// functions. The zero value is not usable; defaults come from the client.
type TransferConfig struct {
	// MinPartSize is the initial multipart part size. MaxPartSize caps
	// part growth, and MaxPartCount bounds how many parts one upload may
	// use.
	MinPartSize  int64
	MaxPartSize  int64
	MaxPartCount int64

	// GrowthFactor and GrowthEvery control streaming part size growth:
	// the target size is multiplied by GrowthFactor every GrowthEvery
	// parts, capped at MaxPartSize. A factor below 2 or a zero interval
	// disables growth.
	GrowthFactor int64
	GrowthEvery  int64

	// SingleOperationThreshold is the largest transfer written or copied
	// in one atomic operation.
	SingleOperationThreshold int64

	// UnexpectedErrorRetries bounds retries of storage calls that
	// transiently report a just-written resource as missing. The
	// effective budget never drops below one retry.
	UnexpectedErrorRetries int

	// RetryDelay is the base backoff delay between those retries. Zero
	// selects the built-in default.
	RetryDelay time.Duration

	// VerifyAfterUpload checks destination existence with a metadata
	// read after the transfer completes.
	VerifyAfterUpload bool

	// ContentType is applied to the destination object. Empty leaves the
	// service default unless DetectContentType is set.
	ContentType string

	// DetectContentType sniffs the content type from the source file or
	// the destination key extension when ContentType is empty.
	DetectContentType bool

	// Metadata is attached to the destination object.
	Metadata map[string]string

	// StorageClass selects the destination storage class.
	StorageClass StorageClass

	// Progress receives progress callbacks for this transfer.
	Progress ProgressTracker
}

// TransferOption configures a single transfer.
type TransferOption func(*TransferConfig)

// validate rejects limit combinations no transfer could honor.
func (tc *TransferConfig) validate() error {
	if tc.MinPartSize <= 0 {
		return fmt.Errorf("%w: minimum part size must be positive, got %d",
			errors.ErrInvalidConfig, tc.MinPartSize)
	}
	if tc.MaxPartSize < tc.MinPartSize {
		return fmt.Errorf("%w: maximum part size %d is smaller than minimum part size %d",
			errors.ErrInvalidConfig, tc.MaxPartSize, tc.MinPartSize)
	}
	if tc.MaxPartCount <= 0 {
		return fmt.Errorf("%w: maximum part count must be positive, got %d",
			errors.ErrInvalidConfig, tc.MaxPartCount)
	}
	if tc.SingleOperationThreshold < 0 {
		return fmt.Errorf("%w: single operation threshold must not be negative, got %d",
			errors.ErrInvalidConfig, tc.SingleOperationThreshold)
	}
	if tc.GrowthFactor < 0 || tc.GrowthEvery < 0 {
		return fmt.Errorf("%w: growth factor and interval must not be negative",
			errors.ErrInvalidConfig)
	}
	return nil
}

// WithRegion sets the AWS region for storage operations.
// If not specified, uses the default AWS region from the credential chain.
func WithRegion(region string) Option {
	return func(c *ClientConfig) {
		c.Region = region
	}
}

// WithEndpoint sets a custom S3 endpoint URL.
// This is useful for S3-compatible services or local testing with LocalStack.
func WithEndpoint(endpoint string) Option {
	return func(c *ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithForcePathStyle forces path-style URLs instead of virtual-hosted style.
// This is required for S3-compatible services that don't support virtual hosting.
// Default is false (uses virtual-hosted style).
func WithForcePathStyle(forcePathStyle bool) Option {
	return func(c *ClientConfig) {
		c.ForcePathStyle = forcePathStyle
	}
}

// WithAWSConfig allows providing a custom AWS configuration.
// This overrides the default configuration loading behavior.
// Use this when you need fine-grained control over AWS SDK configuration.
func WithAWSConfig(config *aws.Config) Option {
	return func(c *ClientConfig) {
		c.CustomAWSConfig = config
	}
}

// WithCustomHTTPClient allows providing a custom HTTP client.
// This gives full control over HTTP behavior including timeouts and proxies.
func WithCustomHTTPClient(client *http.Client) Option {
	return func(c *ClientConfig) {
		c.CustomHTTPClient = client
	}
}

// WithTimeout sets the timeout for individual storage requests.
// Default is no timeout (0). Values should be positive durations.
func WithTimeout(timeout time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithMaxRetries sets the SDK-level retry count for failed requests.
// This is independent of the transfer engine's transient-not-found budget.
func WithMaxRetries(maxRetries int) Option {
	return func(c *ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithConcurrency sets the part transfer parallelism of the built-in
// scheduler. Default is 5 concurrent part transfers.
func WithConcurrency(concurrency int) Option {
	return func(c *ClientConfig) {
		if concurrency > 0 {
			c.Concurrency = concurrency
		}
	}
}

// WithScheduler replaces the built-in worker pool with a caller-supplied
// scheduler. The caller keeps ownership of its lifecycle.
func WithScheduler(sched Scheduler) Option {
	return func(c *ClientConfig) {
		c.Scheduler = sched
	}
}

// WithLogger sets the structured logger for transfer lifecycle events.
// A nil logger disables logging entirely.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// WithEventRecorder sets the recorder that observes each storage operation
// the engine issues. Useful for metrics counters and tests.
func WithEventRecorder(events EventRecorder) Option {
	return func(c *ClientConfig) {
		c.Events = events
	}
}

// WithFilesystem sets a custom filesystem implementation for file uploads.
// This allows using in-memory filesystems for testing or virtual filesystems.
// If not specified, defaults to the OS filesystem.
func WithFilesystem(filesystem fs.Filesystem) Option {
	return func(c *ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithTransferDefaults applies transfer options as client-wide defaults,
// still overridable per transfer.
func WithTransferDefaults(opts ...TransferOption) Option {
	return func(c *ClientConfig) {
		for _, opt := range opts {
			opt(&c.Transfer)
		}
	}
}

// WithMinPartSize sets the initial multipart part size.
func WithMinPartSize(size int64) TransferOption {
	return func(tc *TransferConfig) {
		tc.MinPartSize = size
	}
}

// WithMaxPartSize caps the part size reached through growth or planning.
func WithMaxPartSize(size int64) TransferOption {
	return func(tc *TransferConfig) {
		tc.MaxPartSize = size
	}
}

// WithMaxPartCount bounds how many parts one upload may use.
func WithMaxPartCount(count int64) TransferOption {
	return func(tc *TransferConfig) {
		tc.MaxPartCount = count
	}
}

// WithGrowthFactor sets the multiplier applied to the streaming part size
// every growth interval. Values below 2 disable growth.
func WithGrowthFactor(factor int64) TransferOption {
	return func(tc *TransferConfig) {
		tc.GrowthFactor = factor
	}
}

// WithGrowthEvery sets how many parts are allocated between part size
// increases. Zero disables growth.
func WithGrowthEvery(every int64) TransferOption {
	return func(tc *TransferConfig) {
		tc.GrowthEvery = every
	}
}

// WithSingleOperationThreshold sets the largest transfer written or copied
// in one atomic operation instead of a multipart upload.
func WithSingleOperationThreshold(threshold int64) TransferOption {
	return func(tc *TransferConfig) {
		tc.SingleOperationThreshold = threshold
	}
}

// WithUnexpectedErrorRetries bounds retries of storage calls that
// transiently report a just-written resource as missing. The effective
// budget never drops below one retry.
func WithUnexpectedErrorRetries(retries int) TransferOption {
	return func(tc *TransferConfig) {
		tc.UnexpectedErrorRetries = retries
	}
}

// WithVerifyAfterUpload checks destination existence with a metadata read
// after the transfer completes, failing the transfer when absent.
func WithVerifyAfterUpload(verify bool) TransferOption {
	return func(tc *TransferConfig) {
		tc.VerifyAfterUpload = verify
	}
}

// WithContentType sets the content type for the destination object.
func WithContentType(contentType string) TransferOption {
	return func(tc *TransferConfig) {
		tc.ContentType = contentType
	}
}

// WithDetectContentType sniffs the content type from the source file or
// destination key extension when no explicit content type is set.
func WithDetectContentType(detect bool) TransferOption {
	return func(tc *TransferConfig) {
		tc.DetectContentType = detect
	}
}

// WithMetadata sets metadata for the destination object.
func WithMetadata(metadata map[string]string) TransferOption {
	return func(tc *TransferConfig) {
		if tc.Metadata == nil {
			tc.Metadata = make(map[string]string)
		}
		for k, v := range metadata {
			tc.Metadata[k] = v
		}
	}
}

// WithStorageClass sets the storage class for the destination object.
func WithStorageClass(storageClass StorageClass) TransferOption {
	return func(tc *TransferConfig) {
		tc.StorageClass = storageClass
	}
}

// WithProgress sets a progress tracker for the transfer.
func WithProgress(tracker ProgressTracker) TransferOption {
	return func(tc *TransferConfig) {
		tc.Progress = tracker
	}
}
