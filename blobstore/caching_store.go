package blobstore

import (
	"context"
	"errors"
	"io"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/segcodec/internal/cache"
)

// DefaultCacheBlockSize is the block size used when none is given.
const DefaultCacheBlockSize = 64 << 10

// maxConcurrentFetches bounds the backend reads one ReadAt issues.
const maxConcurrentFetches = 8

// CachingStore keeps fixed-size blocks of the files read through it in a
// cache.BlockCache. Segment files are write-once, so a file's blocks are only
// dropped when the name is written again or deleted.
type CachingStore struct {
	inner     BlobStore
	blocks    cache.BlockCache
	blockSize int64
}

// NewCachingStore wraps inner with c. blockSize <= 0 selects
// DefaultCacheBlockSize.
func NewCachingStore(inner BlobStore, c cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultCacheBlockSize
	}
	return &CachingStore{inner: inner, blocks: c, blockSize: blockSize}
}

// NewLRUCachingStore wraps inner with an LRU cache holding up to
// capacityBytes of blocks.
func NewLRUCachingStore(inner BlobStore, capacityBytes, blockSize int64) *CachingStore {
	return NewCachingStore(inner, cache.NewLRU(capacityBytes), blockSize)
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachedBlob{Blob: b, name: name, blocks: s.blocks, blockSize: s.blockSize}, nil
}

func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	s.blocks.DropFile(name)
	return s.inner.Create(ctx, name)
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.blocks.DropFile(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.blocks.DropFile(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// Stats reports the counters of the underlying cache.
func (s *CachingStore) Stats() cache.Stats { return s.blocks.Stats() }

type cachedBlob struct {
	Blob
	name      string
	blocks    cache.BlockCache
	blockSize int64
}

// span is a run of consecutive uncached blocks; at indexes the blocks
// slice of ReadAt.
type span struct {
	first, count int64
	at           int
}

func (b *cachedBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	end := min(off+int64(len(p)), size)
	first, last := off/b.blockSize, (end-1)/b.blockSize

	blocks := make([][]byte, last-first+1)
	var missing []span
	for i := range blocks {
		blk := first + int64(i)
		if data, ok := b.blocks.Get(b.key(blk)); ok {
			blocks[i] = data
			continue
		}
		if n := len(missing); n > 0 && missing[n-1].first+missing[n-1].count == blk {
			missing[n-1].count++
		} else {
			missing = append(missing, span{first: blk, count: 1, at: i})
		}
	}
	if err := b.fetch(ctx, missing, blocks); err != nil {
		return 0, err
	}

	n := 0
	for i, data := range blocks {
		start := (first + int64(i)) * b.blockSize
		lo := max(start, off) - start
		if lo >= int64(len(data)) {
			break
		}
		n += copy(p[n:], data[lo:])
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// fetch reads every span with one backend read, caches its blocks and
// stores them into blocks.
func (b *cachedBlob) fetch(ctx context.Context, missing []span, blocks [][]byte) error {
	if len(missing) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for _, sp := range missing {
		g.Go(func() error {
			start := sp.first * b.blockSize
			buf := make([]byte, min(sp.count*b.blockSize, b.Size()-start))
			n, err := b.Blob.ReadAt(gctx, buf, start)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			buf = buf[:n]
			for i := range sp.count {
				lo := i * b.blockSize
				if lo >= int64(len(buf)) {
					break
				}
				// cloned so an evicted neighbour does not pin the whole run
				blk := slices.Clone(buf[lo:min(lo+b.blockSize, int64(len(buf)))])
				b.blocks.Put(b.key(sp.first+i), blk)
				blocks[sp.at+int(i)] = blk
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *cachedBlob) key(blk int64) cache.Key { return cache.Key{File: b.name, Block: blk} }
