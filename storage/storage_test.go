package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segcodec"
	"github.com/hupe1980/segcodec/blobstore"
	"github.com/hupe1980/segcodec/blobstore/minio"
	"github.com/hupe1980/segcodec/blobstore/s3"
	"github.com/hupe1980/segcodec/config"
	"github.com/hupe1980/segcodec/format"
	"github.com/hupe1980/segcodec/index"
	"github.com/hupe1980/segcodec/store"
	"github.com/hupe1980/segcodec/testutil"
)

func roundTrip(t *testing.T, dir store.Directory) {
	t.Helper()
	ctx := context.Background()
	rng := testutil.NewRNG(3)
	body := index.NewFieldInfo("body", 0, index.IndexOptionsDocsAndFreqsAndPositions, index.DocValuesNone)
	field := rng.InvertedField(body, 40, 25)

	c, err := segcodec.New()
	require.NoError(t, err)
	require.NoError(t, c.WriteSegment(ctx, dir, &segcodec.Segment{
		Name:     "_0",
		DocCount: 40,
		Fields:   []*index.FieldInfo{body},
		Postings: []format.InvertedField{field},
	}))

	_, err = c.VerifySegment(ctx, dir, "_0")
	require.NoError(t, err)

	r, err := c.OpenSegment(ctx, dir, "_0")
	require.NoError(t, err)
	defer r.Close()
	testutil.AssertPostings(t, r, field)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("fs", func(t *testing.T) {
		dir, err := Open(ctx, config.StorageConfig{Type: config.StorageFS, Path: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &store.FSDirectory{}, dir)
		roundTrip(t, dir)
	})

	t.Run("local", func(t *testing.T) {
		dir, err := Open(ctx, config.StorageConfig{Type: config.StorageLocal, Path: t.TempDir()})
		require.NoError(t, err)
		assert.IsType(t, &store.BlobDirectory{}, dir)
		roundTrip(t, dir)
	})

	t.Run("cached memory", func(t *testing.T) {
		dir, err := Open(ctx, config.StorageConfig{Type: config.StorageMemory, CacheBytes: 1 << 20, CacheBlockSize: 256})
		require.NoError(t, err)
		bd, ok := dir.(*store.BlobDirectory)
		require.True(t, ok)
		cs, ok := bd.Store().(*blobstore.CachingStore)
		require.True(t, ok)

		roundTrip(t, dir)
		stats := cs.Stats()
		assert.Positive(t, stats.Hits+stats.Misses)
		assert.Positive(t, stats.Bytes)
	})
}

func TestOpenBlobStore(t *testing.T) {
	ctx := context.Background()

	bs, err := OpenBlobStore(ctx, config.StorageConfig{
		Type:      config.StorageS3,
		Bucket:    "segments",
		Prefix:    "idx",
		Region:    "eu-central-1",
		Endpoint:  "http://localhost:9000",
		AccessKey: "ak",
		SecretKey: "sk",
	})
	require.NoError(t, err)
	assert.IsType(t, &s3.Store{}, bs)

	bs, err = OpenBlobStore(ctx, config.StorageConfig{
		Type:     config.StorageMinio,
		Bucket:   "segments",
		Endpoint: "localhost:9000",
	})
	require.NoError(t, err)
	assert.IsType(t, &minio.Store{}, bs)

	_, err = OpenBlobStore(ctx, config.StorageConfig{Type: config.StorageFS, Path: "."})
	assert.ErrorIs(t, err, config.ErrInvalid)
}
