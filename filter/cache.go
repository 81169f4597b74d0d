package filter

import (
	"container/list"
	"sync"
)

// DefaultCacheSize bounds the number of compiled filters kept
const DefaultCacheSize = 64

// Cache compiles filters once and keeps the most recently used ones.
type Cache struct {
	prefix    string
	size      int
	evictList *list.List
	items     map[string]*list.Element
	mu        sync.Mutex
}

// NewCache creates a cache of up to size compiled filters. Filters compiled
// through it derive userId with prefix.
func NewCache(size int, prefix string) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		prefix:    prefix,
		size:      size,
		evictList: list.New(),
		items:     make(map[string]*list.Element),
	}
}

// Get returns the compiled filter for expression, compiling on a miss.
// Failed compilations are not cached.
func (c *Cache) Get(expression string) (*Filter, error) {
	c.mu.Lock()
	if node, ok := c.items[expression]; ok {
		c.evictList.MoveToFront(node)
		f := node.Value.(*Filter)
		c.mu.Unlock()
		return f, nil
	}
	c.mu.Unlock()

	f, err := Compile(expression, c.prefix)
	if err != nil {
		return nil, err
	}
	c.put(f)
	return f, nil
}

func (c *Cache) put(f *Filter) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[f.expr]; ok {
		c.evictList.MoveToFront(node)
		node.Value = f
		return
	}

	c.items[f.expr] = c.evictList.PushFront(f)
	if c.evictList.Len() > c.size {
		c.removeOldest()
	}
}

// removeOldest removes the least recently used filter
func (c *Cache) removeOldest() {
	node := c.evictList.Back()
	if node != nil {
		c.evictList.Remove(node)
		delete(c.items, node.Value.(*Filter).expr)
	}
}

// Clear removes all filters from the cache
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.evictList.Init()
}

// Size returns the number of cached filters
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.evictList.Len()
}
