// Package piececache caches recently read piece bytes so serving the same
// popular piece to many leechers doesn't re-read it from disk every time.
package piececache

import (
	"container/list"
	"sync"

	"github.com/nimbus-bt/nimbus/internal/metainfo"
	"github.com/nimbus-bt/nimbus/internal/storage"
)

type entry struct {
	index int
	data  []byte
}

// Cache is a size-bounded LRU of whole-piece byte slices.
type Cache struct {
	mu       sync.Mutex
	info     *metainfo.Info
	storage  storage.Storage
	maxBytes int64
	curBytes int64
	ll       *list.List
	items    map[int]*list.Element
}

// New creates a cache over st that evicts least-recently-used pieces once
// more than maxBytes of piece data is held.
func New(info *metainfo.Info, st storage.Storage, maxBytes int64) *Cache {
	return &Cache{
		info:     info,
		storage:  st,
		maxBytes: maxBytes,
		ll:       list.New(),
		items:    make(map[int]*list.Element),
	}
}

// Read returns piece index's bytes, either from the cache or, on a miss,
// by reading through to storage and populating the cache.
func (c *Cache) Read(index int) ([]byte, error) {
	c.mu.Lock()
	if el, ok := c.items[index]; ok {
		c.ll.MoveToFront(el)
		data := el.Value.(*entry).data
		c.mu.Unlock()
		return data, nil
	}
	c.mu.Unlock()

	length := c.info.PieceLen(index)
	buf := make([]byte, length)
	if _, err := c.storage.ReadAt(buf, int64(index)*c.info.PieceLength); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.insert(index, buf)
	c.mu.Unlock()
	return buf, nil
}

func (c *Cache) insert(index int, data []byte) {
	if el, ok := c.items[index]; ok {
		c.curBytes -= int64(len(el.Value.(*entry).data))
		el.Value = &entry{index: index, data: data}
		c.curBytes += int64(len(data))
		c.ll.MoveToFront(el)
	} else {
		el := c.ll.PushFront(&entry{index: index, data: data})
		c.items[index] = el
		c.curBytes += int64(len(data))
	}
	for c.curBytes > c.maxBytes && c.ll.Len() > 1 {
		back := c.ll.Back()
		ent := back.Value.(*entry)
		c.curBytes -= int64(len(ent.data))
		c.ll.Remove(back)
		delete(c.items, ent.index)
	}
}

// Invalidate drops a cached piece, used when its data on disk has changed
// (should not normally happen once written, but guards resume edge cases).
func (c *Cache) Invalidate(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[index]; ok {
		c.curBytes -= int64(len(el.Value.(*entry).data))
		c.ll.Remove(el)
		delete(c.items, index)
	}
}
