// Package internal contains private implementation details for the transfer module.
// These packages are not intended for external use and may change without notice.
//
// The internal packages are organized as follows:
//   - operations: Upload and copy orchestration
//   - transfer: Multipart session and part tracking machinery
//   - scheduler: Concurrent task execution
//   - validation: Input validation logic
//   - pool: Memory management optimizations
package internal
