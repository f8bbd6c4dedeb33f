// Package multipart implements the upload session engine behind the
// streaming writer and the known-size upload and copy operations.
//
// A Session owns the lifecycle of one destination object: choosing between
// a single atomic write and a multipart upload, allocating part numbers,
// dispatching part transfers to a scheduler, applying finished part results
// in submission order, and finalizing the object through completion or abort.
//
// Parts are transferred by one of two strategies sharing the same contract:
// uploading locally buffered bytes, or server-side copying a byte range of
// an existing object.
package multipart
