package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/segcodec/blobstore"
)

// DefaultPrefetchBytes is the object size up to which Open downloads the
// whole object. Segment info and field infos files are read in full right
// after opening, so one GET replaces a stat plus several range reads.
const DefaultPrefetchBytes = 64 << 10

// Store is a blobstore.BlobStore over a MinIO client.
type Store struct {
	client   *minio.Client
	bucket   string
	prefix   string
	prefetch int64
}

// Option configures a Store.
type Option func(*Store)

// WithPrefetchBytes sets the prefetch threshold of Open. Zero disables
// prefetching.
func WithPrefetchBytes(n int64) Option {
	return func(s *Store) { s.prefetch = n }
}

// NewStore returns a Store keeping segment files under prefix in bucket.
func NewStore(client *minio.Client, bucket, prefix string, opts ...Option) *Store {
	s := &Store{
		client:   client,
		bucket:   bucket,
		prefix:   normalizePrefix(prefix),
		prefetch: DefaultPrefetchBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (s *Store) objectKey(name string) string { return s.prefix + name }

// fileName maps an object key back to a segment file name; ok is false
// for keys outside the prefix.
func (s *Store) fileName(key string) (string, bool) {
	name, ok := strings.CutPrefix(key, s.prefix)
	return name, ok && name != ""
}

func notFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.objectKey(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if notFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	if info.Size <= s.prefetch {
		obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
		if err != nil {
			return nil, err
		}
		defer obj.Close()
		data, err := io.ReadAll(obj)
		if err != nil {
			return nil, err
		}
		return prefetched(data), nil
	}
	return &rangeBlob{client: s.client, bucket: s.bucket, key: key, size: info.Size}, nil
}

func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

// Create uploads through a pipe while the codec writes. The object exists
// once Close returns nil.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	pr, pw := io.Pipe()
	w := &uploadBlob{pw: pw, result: make(chan error, 1)}
	key := s.objectKey(name)
	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1,
			minio.PutObjectOptions{ContentType: "application/octet-stream"})
		pr.CloseWithError(err)
		w.result <- err
	}()
	return w, nil
}

func (s *Store) Delete(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(name), minio.RemoveObjectOptions{}); err != nil && !notFound(err) {
		return err
	}
	return nil
}

func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.objectKey(prefix),
		Recursive: true,
	})
	var names []string
	for obj := range objects {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name, ok := s.fileName(obj.Key); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

type prefetched []byte

func (b prefetched) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, io.EOF
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b prefetched) Size() int64  { return int64(len(b)) }
func (b prefetched) Close() error { return nil }

type rangeBlob struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
}

func (b *rangeBlob) Size() int64  { return b.size }
func (b *rangeBlob) Close() error { return nil }

func (b *rangeBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= b.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), b.size-off)

	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, off+want-1); err != nil {
		return 0, err
	}
	obj, err := b.client.GetObject(ctx, b.bucket, b.key, opts)
	if err != nil {
		return 0, err
	}
	defer obj.Close()

	n, err := io.ReadFull(obj, p[:want])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

var errUploadClosed = errors.New("minio: upload already closed")

type uploadBlob struct {
	pw     *io.PipeWriter
	result chan error
	closed bool
}

func (w *uploadBlob) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errUploadClosed
	}
	return w.pw.Write(p)
}

func (w *uploadBlob) Sync() error { return nil }

func (w *uploadBlob) Close() error {
	if w.closed {
		return errUploadClosed
	}
	w.closed = true
	if err := w.pw.Close(); err != nil {
		return err
	}
	return <-w.result
}
