// Package s3transfer provides public types shared across the transfer API.
package s3transfer

import (
	"context"
	"time"
)

// Default transfer tuning applied by New. Every value can be overridden
// per client or per transfer through options.
const (
	// DefaultMinPartSize is the initial multipart part size.
	DefaultMinPartSize = 8 * 1024 * 1024

	// DefaultMaxPartSize is the largest part ever sent, matching the S3
	// protocol limit for a single part.
	DefaultMaxPartSize = 5 * 1024 * 1024 * 1024

	// DefaultMaxPartCount matches the S3 protocol limit on parts per
	// upload.
	DefaultMaxPartCount = 10000

	// DefaultGrowthFactor and DefaultGrowthEvery control how the target
	// part size increases during streaming uploads: the size is multiplied
	// by the factor every DefaultGrowthEvery parts.
	DefaultGrowthFactor = 2
	DefaultGrowthEvery  = 500

	// DefaultSingleOperationThreshold is the largest transfer written or
	// copied in one atomic operation instead of a multipart upload.
	DefaultSingleOperationThreshold = 100 * 1024 * 1024

	// DefaultUnexpectedErrorRetries bounds retries of storage calls that
	// transiently report a just-written resource as missing.
	DefaultUnexpectedErrorRetries = 4

	// DefaultConcurrency is the part transfer parallelism of the built-in
	// scheduler.
	DefaultConcurrency = 5
)

// Result describes a finished transfer.
type Result struct {
	// Bucket and Key identify the destination object.
	Bucket string
	Key    string

	// ETag is the entity tag reported by the service for the assembled
	// object.
	ETag string

	// Size is the number of object bytes transferred.
	Size int64

	// Parts is the number of uploaded parts, zero for single-operation
	// transfers.
	Parts int32

	// Multipart reports whether the object was assembled from parts.
	Multipart bool

	// Duration is the wall-clock time of the whole transfer.
	Duration time.Duration
}

// Scheduler dispatches part transfers for background execution. Schedule
// blocks until fn is accepted for execution or ctx is done; fn runs
// exactly once when accepted. Implementations own the concurrency bound.
type Scheduler interface {
	Schedule(ctx context.Context, fn func()) error
}

// EventRecorder observes named storage operations as they are issued.
// Implementations must be safe for concurrent use. Useful for per-call
// accounting and tests; see the Event constants for the recorded names.
type EventRecorder interface {
	Record(event string)
}

// ProgressTracker receives transfer progress callbacks. Update is invoked
// with cumulative transferred bytes against the transfer total (-1 when
// the total is unknown), Complete exactly once on success, and Error
// exactly once on failure.
type ProgressTracker interface {
	Update(transferred, total int64)
	Complete()
	Error(err error)
}

// StorageClass represents the S3 storage class for uploaded objects.
type StorageClass string

// Available storage classes.
const (
	StorageClassStandard           StorageClass = "STANDARD"
	StorageClassStandardIA         StorageClass = "STANDARD_IA"
	StorageClassOneZoneIA          StorageClass = "ONEZONE_IA"
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"
	StorageClassGlacier            StorageClass = "GLACIER"
	StorageClassGlacierIR          StorageClass = "GLACIER_IR"
	StorageClassDeepArchive        StorageClass = "DEEP_ARCHIVE"
	StorageClassReducedRedundancy  StorageClass = "REDUCED_REDUNDANCY"
)
