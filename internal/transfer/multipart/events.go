package multipart

// Event names passed to an EventRecorder, one per storage call or notable
// engine decision. Recorders see every attempt, including retries.
const (
	EventCreateMultipart   = "s3.create_multipart_upload"
	EventCompleteMultipart = "s3.complete_multipart_upload"
	EventAbortMultipart    = "s3.abort_multipart_upload"
	EventUploadPart        = "s3.upload_part"
	EventUploadPartCopy    = "s3.upload_part_copy"
	EventPutObject         = "s3.put_object"
	EventCopyObject        = "s3.copy_object"
	EventHeadObject        = "s3.head_object"

	// EventTransientRetry is recorded before each retry of a transiently
	// failed storage call.
	EventTransientRetry = "s3.transient_retry"

	// EventPartSizeGrowth is recorded each time the growth policy enlarges
	// the target part size.
	EventPartSizeGrowth = "s3.part_size_growth"

	// EventSinglePartFallback is recorded when a single atomic write is
	// rejected as too large and the upload restarts as multipart.
	EventSinglePartFallback = "s3.single_part_fallback"
)

// EventRecorder counts storage operation events for operational visibility.
// Implementations must be safe for concurrent use.
type EventRecorder interface {
	Record(event string)
}
