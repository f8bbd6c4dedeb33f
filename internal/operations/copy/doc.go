// Package copy orchestrates server-side object copies. Whole objects and
// explicit byte ranges are copied without moving data through the client,
// using a single atomic copy when the range is the entire object and small
// enough, and a concurrent multipart range copy otherwise.
package copy
