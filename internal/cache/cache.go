package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
)

// Key identifies one block of one segment file.
type Key struct {
	File  string
	Block int64
}

// Stats is a snapshot of cache activity.
type Stats struct {
	Hits   int64
	Misses int64
	Bytes  int64
	Blocks int
}

// BlockCache caches immutable file blocks. Returned slices are shared and
// must not be modified.
type BlockCache interface {
	Get(key Key) ([]byte, bool)
	// Put caches block; the cache keeps a reference to it.
	Put(key Key, block []byte)
	// DropFile removes every block of file.
	DropFile(file string)
	Stats() Stats
}

// LRU is a BlockCache bounded by the total size of its blocks.
type LRU struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	order    *list.List
	byFile   map[string]map[int64]*list.Element

	hits   atomic.Int64
	misses atomic.Int64
}

type cached struct {
	key   Key
	block []byte
}

var _ BlockCache = (*LRU)(nil)

// NewLRU returns an LRU holding at most capacity bytes.
func NewLRU(capacity int64) *LRU {
	return &LRU{
		capacity: capacity,
		order:    list.New(),
		byFile:   make(map[string]map[int64]*list.Element),
	}
}

// Get implements BlockCache.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.byFile[key.File][key.Block]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	c.order.MoveToFront(e)
	return e.Value.(*cached).block, true
}

// Put implements BlockCache. Blocks larger than the capacity are not cached.
func (c *LRU) Put(key Key, block []byte) {
	n := int64(len(block))
	if n > c.capacity {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	blocks := c.byFile[key.File]
	if e, ok := blocks[key.Block]; ok {
		v := e.Value.(*cached)
		c.size += n - int64(len(v.block))
		v.block = block
		c.order.MoveToFront(e)
	} else {
		if blocks == nil {
			blocks = make(map[int64]*list.Element)
			c.byFile[key.File] = blocks
		}
		blocks[key.Block] = c.order.PushFront(&cached{key: key, block: block})
		c.size += n
	}
	for c.size > c.capacity {
		c.remove(c.order.Back())
	}
}

// DropFile implements BlockCache.
func (c *LRU) DropFile(file string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.byFile[file] {
		c.remove(e)
	}
}

// Stats implements BlockCache.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Bytes:  c.size,
		Blocks: c.order.Len(),
	}
}

func (c *LRU) remove(e *list.Element) {
	v := c.order.Remove(e).(*cached)
	c.size -= int64(len(v.block))
	blocks := c.byFile[v.key.File]
	delete(blocks, v.key.Block)
	if len(blocks) == 0 {
		delete(c.byFile, v.key.File)
	}
}
