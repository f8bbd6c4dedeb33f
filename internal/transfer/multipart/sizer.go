package multipart

import (
	"fmt"

	transfererrors "github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/errors"
)

// Limits bounds how an object may be split into upload parts.
type Limits struct {
	// MinPartSize is the smallest allowed part size in bytes.
	MinPartSize int64

	// MaxPartSize is the largest allowed part size in bytes.
	MaxPartSize int64

	// MaxPartCount is the maximum number of parts a single upload may use.
	MaxPartCount int64
}

// validate checks that the limits describe a non-empty range.
func (l Limits) validate() error {
	if l.MinPartSize <= 0 || l.MaxPartSize <= 0 || l.MaxPartCount <= 0 {
		return transfererrors.NewError("planParts", transfererrors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf(
				"part limits must be positive, got min %d, max %d, count %d",
				l.MinPartSize, l.MaxPartSize, l.MaxPartCount))
	}
	if l.MaxPartSize < l.MinPartSize {
		return transfererrors.NewError("planParts", transfererrors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf(
				"max part size %d is below min part size %d",
				l.MaxPartSize, l.MinPartSize))
	}
	return nil
}

// PartPlan is a uniform split of a known total size into parts. Every part
// is PartSize bytes except the last, which holds the remainder.
type PartPlan struct {
	PartSize  int64
	PartCount int64
}

// PlanParts computes a uniform part size for totalSize bytes within limits.
//
// The plan starts from the minimum part size and enlarges parts only as far
// as needed to keep the part count within MaxPartCount, capped at
// MaxPartSize. Returns ErrInvalidConfig when totalSize is not positive or
// when no part size inside the limits can cover totalSize.
func PlanParts(totalSize int64, limits Limits) (PartPlan, error) {
	if totalSize <= 0 {
		return PartPlan{}, transfererrors.NewError("planParts", transfererrors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf("total size must be positive, got %d", totalSize))
	}
	if err := limits.validate(); err != nil {
		return PartPlan{}, err
	}

	partSize := limits.MinPartSize
	if ceilDiv(totalSize, partSize) > limits.MaxPartCount {
		partSize = ceilDiv(totalSize, limits.MaxPartCount)
	}
	if partSize > limits.MaxPartSize {
		partSize = limits.MaxPartSize
	}

	count := ceilDiv(totalSize, partSize)
	if count > limits.MaxPartCount || partSize < limits.MinPartSize {
		return PartPlan{}, transfererrors.NewError("planParts", transfererrors.ErrInvalidConfig).
			WithMessage(fmt.Sprintf(
				"cannot split %d bytes into at most %d parts of %d to %d bytes",
				totalSize, limits.MaxPartCount, limits.MinPartSize, limits.MaxPartSize))
	}

	return PartPlan{PartSize: partSize, PartCount: count}, nil
}

func ceilDiv(a, b int64) int64 {
	return (a + b - 1) / b
}
