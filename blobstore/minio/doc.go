// Package minio stores segment files in MinIO or another S3-compatible
// service through the MinIO client.
//
// Files up to the prefetch threshold are downloaded whole when opened;
// larger files are served with range reads.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    return err
//	}
//	dir := store.NewBlobDirectory(ctx, minioblob.NewStore(client, "segments", "idx"))
package minio
