// Package s3 stores segment files in Amazon S3.
//
// Reads are HTTP range requests. Create streams through the multipart
// uploader and the object appears when the writer is closed.
//
//	client := s3.NewFromConfig(awsCfg)
//	dir := store.NewBlobDirectory(ctx, s3blob.NewStore(client, "segments", "idx"))
package s3
