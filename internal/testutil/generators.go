// Package testutil provides test data generators.
package testutil

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// GenerateMultipartUpload generates a test multipart upload structure.
func (g *TestDataGenerator) GenerateMultipartUpload(key, uploadID string) types.MultipartUpload {
	return types.MultipartUpload{
		Key:          StringPtr(key),
		UploadId:     StringPtr(uploadID),
		StorageClass: types.StorageClassStandard,
		Initiated:    TimePtr(time.Now()),
	}
}

// GenerateCompletedParts generates completed multipart upload parts.
func (g *TestDataGenerator) GenerateCompletedParts(count int) []types.CompletedPart {
	parts := make([]types.CompletedPart, count)

	for i := 0; i < count; i++ {
		parts[i] = types.CompletedPart{
			PartNumber: Int32Ptr(int32(i + 1)),
			ETag:       StringPtr(fmt.Sprintf(`"%x"`, g.rand.Int63())),
		}
	}

	return parts
}

// GenerateS3Error generates a test S3 error response.
func (g *TestDataGenerator) GenerateS3Error(code, message string) *types.NoSuchKey {
	return &types.NoSuchKey{
		Message: StringPtr(message),
	}
}

// GenerateCopyObjectResult generates a test copy object result.
func (g *TestDataGenerator) GenerateCopyObjectResult() *types.CopyObjectResult {
	return &types.CopyObjectResult{
		ETag:         StringPtr(fmt.Sprintf(`"%x"`, g.rand.Int63())),
		LastModified: TimePtr(time.Now()),
	}
}

// GenerateCopyPartResult generates a test range-copy part result.
func (g *TestDataGenerator) GenerateCopyPartResult() *types.CopyPartResult {
	return &types.CopyPartResult{
		ETag:         StringPtr(fmt.Sprintf(`"%x"`, g.rand.Int63())),
		LastModified: TimePtr(time.Now()),
	}
}

// GenerateObjectMetadata generates test object metadata.
func (g *TestDataGenerator) GenerateObjectMetadata(size int64) map[string]string {
	return map[string]string{
		"test-key-1": fmt.Sprintf("test-value-%d", g.rand.Intn(100)),
		"test-key-2": fmt.Sprintf("test-value-%d", g.rand.Intn(100)),
		"size":       fmt.Sprintf("%d", size),
	}
}
