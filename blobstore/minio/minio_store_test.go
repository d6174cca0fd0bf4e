package minio

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segcodec/blobstore"
)

func TestObjectKeys(t *testing.T) {
	tests := []struct {
		prefix string
		key    string
	}{
		{"", "_0.si"},
		{"idx", "idx/_0.si"},
		{"/idx/", "idx/_0.si"},
		{"a/b/", "a/b/_0.si"},
	}
	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			s := NewStore(nil, "segments", tt.prefix)
			assert.Equal(t, tt.key, s.objectKey("_0.si"))

			name, ok := s.fileName(tt.key)
			assert.True(t, ok)
			assert.Equal(t, "_0.si", name)
		})
	}

	s := NewStore(nil, "segments", "idx")
	_, ok := s.fileName("other/_0.si")
	assert.False(t, ok)
	_, ok = s.fileName("idx/")
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	assert.Equal(t, int64(DefaultPrefetchBytes), NewStore(nil, "b", "").prefetch)
	assert.Zero(t, NewStore(nil, "b", "", WithPrefetchBytes(0)).prefetch)
}

func TestNotFound(t *testing.T) {
	assert.True(t, notFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, notFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, notFound(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, notFound(errors.New("connection refused")))
}

func TestPrefetched(t *testing.T) {
	ctx := context.Background()
	b := prefetched("segment")

	buf := make([]byte, 3)
	n, err := b.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "gme", string(buf))

	n, err = b.ReadAt(ctx, buf, 5)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
}

// TestStoreIntegration runs against the MinIO server named by
// SEGCODEC_MINIO_ENDPOINT.
func TestStoreIntegration(t *testing.T) {
	endpoint := os.Getenv("SEGCODEC_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("SEGCODEC_MINIO_ENDPOINT not set")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds: credentials.NewStaticV4("minioadmin", "minioadmin", ""),
	})
	require.NoError(t, err)

	ctx := context.Background()
	const bucket = "segcodec-test"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	for _, prefetch := range []int64{0, DefaultPrefetchBytes} {
		store := NewStore(client, bucket, "it/", WithPrefetchBytes(prefetch))

		data := []byte("postings of field body")
		require.NoError(t, store.Put(ctx, "_0_VInt_0.tdt", data))

		blob, err := store.Open(ctx, "_0_VInt_0.tdt")
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), blob.Size())

		part := make([]byte, 5)
		_, err = blob.ReadAt(ctx, part, 12)
		require.NoError(t, err)
		assert.Equal(t, "field", string(part))
		require.NoError(t, blob.Close())

		w, err := store.Create(ctx, "_0.si")
		require.NoError(t, err)
		_, err = w.Write([]byte("segment info"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		names, err := store.List(ctx, "_0")
		require.NoError(t, err)
		assert.Equal(t, []string{"_0.si", "_0_VInt_0.tdt"}, names)

		require.NoError(t, store.Delete(ctx, "_0.si"))
		require.NoError(t, store.Delete(ctx, "_0_VInt_0.tdt"))
		_, err = store.Open(ctx, "_0.si")
		assert.ErrorIs(t, err, blobstore.ErrNotFound)
	}
}
