// Package s3transfer provides a concurrent multipart transfer engine for
// S3 and S3-compatible object stores, built on AWS SDK v2.
//
// The package moves arbitrarily large byte streams and ranges into object
// storage, transparently choosing between a single atomic write and a
// multipart upload, parallelizing part transfers across a bounded
// scheduler, and guaranteeing that the uploaded parts are assembled into
// one consistent object or cleanly discarded.
//
// Key features:
//   - Simple, zero-configuration usage with AWS credential chain
//   - Progressive enhancement through functional options
//   - Streaming writer for data of unknown length (io.WriteCloser)
//   - Known-size reader and file uploads with automatic part planning
//   - Server-side whole-object and byte-range copies
//   - Part results applied strictly in submission order
//   - Transparent fallback to multipart when a single write is too large
//
// Example usage:
//
//	client, err := s3transfer.New(
//	    s3transfer.WithRegion("eu-west-1"),
//	)
//	if err != nil {
//	    return err
//	}
//
//	// Upload a file
//	result, err := client.UploadFile(ctx, "/local/file.bin", "my-bucket", "path/file.bin")
//	if err != nil {
//	    return err
//	}
//
//	// Stream data of unknown length
//	w, err := client.OpenWriter(ctx, "my-bucket", "path/stream.bin")
//	if err != nil {
//	    return err
//	}
//	if _, err := io.Copy(w, src); err != nil {
//	    w.Abort()
//	    return err
//	}
//	if err := w.Close(); err != nil {
//	    return err
//	}
package s3transfer
