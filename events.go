package s3transfer

import (
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3transfer/internal/transfer/multipart"
)

// Event names passed to the EventRecorder, one per storage operation
// issued by the engine plus the retry and sizing decisions worth counting.
const (
	EventCreateMultipart    = multipart.EventCreateMultipart
	EventCompleteMultipart  = multipart.EventCompleteMultipart
	EventAbortMultipart     = multipart.EventAbortMultipart
	EventUploadPart         = multipart.EventUploadPart
	EventUploadPartCopy     = multipart.EventUploadPartCopy
	EventPutObject          = multipart.EventPutObject
	EventCopyObject         = multipart.EventCopyObject
	EventHeadObject         = multipart.EventHeadObject
	EventTransientRetry     = multipart.EventTransientRetry
	EventPartSizeGrowth     = multipart.EventPartSizeGrowth
	EventSinglePartFallback = multipart.EventSinglePartFallback
)
