package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/segcodec/blobstore"
)

// Client is the part of the S3 API the store calls. *s3.Client satisfies it.
type Client interface {
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	s3.ListObjectsV2APIClient
	manager.UploadAPIClient
}

// Store is a blobstore.BlobStore over S3. Uploads ask S3 to verify a
// CRC32C checksum, the same checksum segment file footers carry.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// Option configures a Store.
type Option func(*manager.Uploader)

// WithPartSize sets the multipart upload part size of Create.
func WithPartSize(n int64) Option {
	return func(u *manager.Uploader) { u.PartSize = n }
}

// WithConcurrency sets how many parts Create uploads in parallel.
func WithConcurrency(n int) Option {
	return func(u *manager.Uploader) { u.Concurrency = n }
}

// NewStore returns a Store keeping segment files under prefix in bucket.
func NewStore(client Client, bucket, prefix string, opts ...Option) *Store {
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		for _, opt := range opts {
			opt(u)
		}
	})
	return &Store{client: client, uploader: uploader, bucket: bucket, prefix: normalizePrefix(prefix)}
}

func normalizePrefix(prefix string) string {
	if prefix = strings.Trim(prefix, "/"); prefix != "" {
		prefix += "/"
	}
	return prefix
}

func (s *Store) objectKey(name string) *string { return aws.String(s.prefix + name) }

func notFound(err error) bool {
	var nf *types.NotFound
	var nsk *types.NoSuchKey
	return errors.As(err, &nf) || errors.As(err, &nsk)
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.objectKey(name)
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: key})
	if err != nil {
		if notFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, fmt.Errorf("s3: head %s: %w", aws.ToString(key), err)
	}
	return &object{client: s.client, bucket: s.bucket, key: key, size: aws.ToInt64(head.ContentLength)}, nil
}

// Create uploads through a pipe while the codec writes; large files are
// sent as multipart uploads. The object exists once Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	w := &upload{pw: pw, result: make(chan error, 1)}
	in := &s3.PutObjectInput{
		Bucket:            &s.bucket,
		Key:               s.objectKey(name),
		Body:              pr,
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
	}
	go func() {
		_, err := s.uploader.Upload(ctx, in)
		pr.CloseWithError(err)
		w.result <- err
	}()
	return w, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:            &s.bucket,
		Key:               s.objectKey(name),
		Body:              bytes.NewReader(data),
		ContentLength:     aws.Int64(int64(len(data))),
		ChecksumAlgorithm: types.ChecksumAlgorithmCrc32c,
	})
	return err
}

func (s *Store) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: &s.bucket, Key: s.objectKey(name)})
	if err != nil && !notFound(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	pages := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: &s.bucket,
		Prefix: s.objectKey(prefix),
	})
	var names []string
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, obj := range page.Contents {
			if name, ok := strings.CutPrefix(aws.ToString(obj.Key), s.prefix); ok && name != "" {
				names = append(names, name)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

type object struct {
	client Client
	bucket string
	key    *string
	size   int64
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= o.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), o.size-off)

	resp, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &o.bucket,
		Key:    o.key,
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, off+want-1)),
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.ReadFull(resp.Body, p[:want])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

type upload struct {
	pw     *io.PipeWriter
	result chan error
	closed bool
}

func (w *upload) Write(p []byte) (int, error) {
	if w.closed {
		return 0, io.ErrClosedPipe
	}
	return w.pw.Write(p)
}

func (w *upload) Sync() error { return nil }

func (w *upload) Close() error {
	if w.closed {
		return io.ErrClosedPipe
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.result
}
