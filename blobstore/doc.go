// Package blobstore provides storage backends for immutable segment files.
//
// store.BlobDirectory adapts any [BlobStore] to the codec's Directory
// interface, so a segment written locally can be read back from S3 or MinIO
// with the same formats.
//
// # Built-in Implementations
//
//   - [LocalStore]: local file system, memory-mapped reads
//   - [MemoryStore]: in-memory, for tests
//   - [CachingStore]: block cache in front of another store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
//
// Implementations must be safe for concurrent use.
package blobstore
