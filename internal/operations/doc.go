// Package operations contains the transfer operation implementations.
// These packages decide between single-operation and multipart execution
// for uploads, streams, and server-side copies, and drive the multipart
// session machinery when a transfer is split into parts.
//
// Each operation is isolated into its own subpackage for better organization
// and testability.
package operations
