// Package transfer holds the multipart transfer machinery.
// This includes part size planning, background part tracking with
// ordered result release, retry classification, and the session state
// shared by upload and copy operations.
package transfer
