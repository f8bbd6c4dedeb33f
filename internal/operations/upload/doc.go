// Package upload orchestrates object uploads from readers and streams.
// This includes single-operation writes, planned multipart uploads, and
// stream-based uploads where the total size is unknown until close.
//
// The package decides between a single write and a multipart upload based
// on the configured size threshold and uploads parts concurrently through
// the shared session engine.
package upload
