// Package errors provides error types and handling for S3 transfer operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a transfer operation error with context about the operation
// that failed. It wraps the underlying AWS SDK error with additional context
// for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "upload", "copyRange", "abort")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3transfer.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3transfer.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3transfer.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3transfer.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewBucketError creates a new Error with bucket context.
func NewBucketError(op, bucket string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Err:    err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{
		Op:     op,
		Bucket: bucket,
		Key:    key,
		Err:    err,
	}
}

// Sentinel errors for transfer operation failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidConfig indicates that the requested transfer cannot satisfy
	// the configured part size and count limits, or that a caller-supplied
	// value such as a transfer size or range is out of bounds
	ErrInvalidConfig = errors.New("s3transfer: invalid transfer configuration")

	// ErrPartLimitExceeded indicates that an upload needed more parts than
	// the configured maximum allows
	ErrPartLimitExceeded = errors.New("s3transfer: part count limit exceeded")

	// ErrTransientStorage indicates that the storage service repeatedly
	// reported a just-written resource as missing and the retry budget
	// was exhausted
	ErrTransientStorage = errors.New("s3transfer: transient storage error")

	// ErrStorage indicates a non-retryable storage operation failure
	ErrStorage = errors.New("s3transfer: storage operation failed")

	// ErrVerificationFailed indicates that the uploaded object could not be
	// confirmed to exist after completion
	ErrVerificationFailed = errors.New("s3transfer: uploaded object verification failed")

	// ErrUploadAborted indicates that the upload was aborted and can accept
	// no further operations
	ErrUploadAborted = errors.New("s3transfer: upload aborted")

	// ErrWriterClosed indicates a write or close on an already finalized writer
	ErrWriterClosed = errors.New("s3transfer: writer already finalized")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3transfer: object not found")

	// ErrAccessDenied indicates that access to the resource is denied
	ErrAccessDenied = errors.New("s3transfer: access denied")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("s3transfer: invalid input")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3transfer: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3transfer: invalid object key")
)

// IsInvalidConfig checks if an error indicates unsatisfiable transfer limits.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

// IsPartLimitExceeded checks if an error indicates the part count limit was hit.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsPartLimitExceeded(err error) bool {
	return errors.Is(err, ErrPartLimitExceeded)
}

// IsTransientStorage checks if an error indicates an exhausted transient retry budget.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsTransientStorage(err error) bool {
	return errors.Is(err, ErrTransientStorage)
}

// IsStorage checks if an error indicates a non-retryable storage failure.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsStorage(err error) bool {
	return errors.Is(err, ErrStorage)
}

// IsVerificationFailed checks if an error indicates a failed post-upload check.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrVerificationFailed)
}

// IsUploadAborted checks if an error indicates the upload was already aborted.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsUploadAborted(err error) bool {
	return errors.Is(err, ErrUploadAborted)
}

// IsObjectNotFound checks if an error indicates that an object was not found.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// IsInvalidInput checks if an error indicates invalid input.
// This is a convenience function that handles both sentinel errors and wrapped errors.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
