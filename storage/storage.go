// Package storage opens the directory described by a config.StorageConfig.
//
// Local file systems use store.FSDirectory. Blob storage (a local blob
// root, memory, S3 or MinIO) is exposed through store.BlobDirectory,
// optionally behind an LRU block cache.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	miniogo "github.com/minio/minio-go/v7"
	miniocreds "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/segcodec/blobstore"
	"github.com/hupe1980/segcodec/blobstore/minio"
	"github.com/hupe1980/segcodec/blobstore/s3"
	"github.com/hupe1980/segcodec/config"
	"github.com/hupe1980/segcodec/store"
)

// Open returns the directory cfg describes. ctx governs every remote call
// made through a blob-backed directory.
func Open(ctx context.Context, cfg config.StorageConfig) (store.Directory, error) {
	if cfg.Type == config.StorageFS {
		return store.OpenFSDirectory(cfg.Path)
	}
	bs, err := OpenBlobStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return store.NewBlobDirectory(ctx, bs), nil
}

// OpenBlobStore returns the blob store of a non-fs configuration, wrapped
// in a caching store when cfg.CacheBytes is set.
func OpenBlobStore(ctx context.Context, cfg config.StorageConfig) (blobstore.BlobStore, error) {
	var (
		bs  blobstore.BlobStore
		err error
	)
	switch cfg.Type {
	case config.StorageLocal:
		bs = blobstore.NewLocalStore(cfg.Path)
	case config.StorageMemory:
		bs = blobstore.NewMemoryStore()
	case config.StorageS3:
		bs, err = openS3(ctx, cfg)
	case config.StorageMinio:
		bs, err = openMinio(cfg)
	default:
		return nil, fmt.Errorf("%w: storage type %q has no blob store", config.ErrInvalid, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheBytes > 0 {
		bs = blobstore.NewLRUCachingStore(bs, cfg.CacheBytes, cfg.CacheBlockSize)
	}
	return bs, nil
}

func openS3(ctx context.Context, cfg config.StorageConfig) (*s3.Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return s3.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}

func openMinio(cfg config.StorageConfig) (*minio.Store, error) {
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  miniocreds.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return minio.NewStore(client, cfg.Bucket, cfg.Prefix), nil
}
