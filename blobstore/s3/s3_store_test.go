package s3

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/segcodec/blobstore"
)

// fakeClient keeps objects in memory and answers single-part requests.
type fakeClient struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
}

func newFakeClient() *fakeClient { return &fakeClient{objects: make(map[string][]byte)} }

func (c *fakeClient) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(data)))}, nil
}

func (c *fakeClient) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	data, ok := c.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	var from, to int
	if _, err := fmt.Sscanf(aws.ToString(in.Range), "bytes=%d-%d", &from, &to); err != nil {
		return nil, err
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(data[from : to+1])))}, nil
}

func (c *fakeClient) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (c *fakeClient) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (c *fakeClient) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(false)}
	for key := range c.objects {
		if strings.HasPrefix(key, aws.ToString(in.Prefix)) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key)})
		}
	}
	return out, nil
}

func (c *fakeClient) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, fmt.Errorf("multipart not supported")
}

func (c *fakeClient) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported")
}

func (c *fakeClient) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, fmt.Errorf("multipart not supported")
}

func (c *fakeClient) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestStore(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	store := NewStore(client, "segments", "/idx/")

	require.NoError(t, store.Put(ctx, "_0.si", []byte("segment info")))
	assert.Contains(t, client.objects, "idx/_0.si")

	w, err := store.Create(ctx, "_0_VInt_0.tdt")
	require.NoError(t, err)
	_, err = w.Write([]byte("postings of field body"))
	require.NoError(t, err)
	require.NoError(t, w.Sync())
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), io.ErrClosedPipe)
	_, err = w.Write([]byte("late"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	blob, err := store.Open(ctx, "_0_VInt_0.tdt")
	require.NoError(t, err)
	assert.Equal(t, int64(22), blob.Size())

	part := make([]byte, 5)
	n, err := blob.ReadAt(ctx, part, 12)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "field", string(part))

	tail := make([]byte, 8)
	n, err = blob.ReadAt(ctx, tail, 18)
	assert.Equal(t, 4, n)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, "body", string(tail[:n]))

	_, err = blob.ReadAt(ctx, part, 22)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	names, err := store.List(ctx, "_0")
	require.NoError(t, err)
	assert.Equal(t, []string{"_0.si", "_0_VInt_0.tdt"}, names)

	require.NoError(t, store.Delete(ctx, "_0.si"))
	require.NoError(t, store.Delete(ctx, "_0.si"))
	_, err = store.Open(ctx, "_0.si")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestNormalizePrefix(t *testing.T) {
	for in, want := range map[string]string{"": "", "/": "", "idx": "idx/", "/a/b/": "a/b/"} {
		assert.Equal(t, want, normalizePrefix(in), in)
	}
}

func TestOptions(t *testing.T) {
	s := NewStore(newFakeClient(), "b", "", WithPartSize(8<<20), WithConcurrency(2))
	assert.Equal(t, int64(8<<20), s.uploader.PartSize)
	assert.Equal(t, 2, s.uploader.Concurrency)
}

// TestStoreIntegration runs against the bucket named by SEGCODEC_S3_BUCKET
// with the default AWS credentials chain.
func TestStoreIntegration(t *testing.T) {
	bucket := os.Getenv("SEGCODEC_S3_BUCKET")
	if bucket == "" {
		t.Skip("SEGCODEC_S3_BUCKET not set")
	}
	ctx := context.Background()
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	require.NoError(t, err)
	store := NewStore(s3.NewFromConfig(cfg), bucket, t.Name())

	data := []byte(strings.Repeat("segcodec", 1024))
	w, err := store.Create(ctx, "_0.dvd")
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	blob, err := store.Open(ctx, "_0.dvd")
	require.NoError(t, err)
	buf := make([]byte, 16)
	_, err = blob.ReadAt(ctx, buf, 8)
	require.NoError(t, err)
	assert.Equal(t, data[8:24], buf)

	names, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.True(t, slices.Contains(names, "_0.dvd"))
	require.NoError(t, store.Delete(ctx, "_0.dvd"))
}
