// Package store provides the minimal directory abstraction the codec writes to
// and reads from.
//
// A [Directory] hands out write-once [IndexOutput]s and seekable, clonable
// [IndexInput]s. Every output keeps a running CRC32C of the bytes written so
// the checksum footer can be produced without re-reading the file.
//
// # Implementations
//
//   - [RAMDirectory]: in-memory, for tests and small transient segments
//   - [FSDirectory]: local files; writes through internal/fs, reads via mmap
//   - [BlobDirectory]: any blobstore.BlobStore (local, S3, MinIO, caching)
//
// # Concurrency
//
// Outputs are owned by a single writer. Inputs are not safe for concurrent use,
// but [IndexInput.Clone] is cheap and every clone owns its own position, so
// concurrent readers each clone the handle they were given.
//
// # Encoding
//
// Fixed-width integers are big-endian. Variable-length integers use the
// little-endian base-128 encoding (7 data bits per byte, high bit set on every
// byte but the last). Strings are a vInt byte length followed by UTF-8 bytes.
package store
