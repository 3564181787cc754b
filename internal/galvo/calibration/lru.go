package calibration

import "container/list"

// cacheKey and cacheValue model the memoized interpolate(x, y) call from
// original_source/balor/Cal.py's @lru_cache(maxsize=2048). No third-party
// LRU library appears anywhere in the example corpus, so this is a small
// stdlib container/list + map implementation rather than a hand-rolled
// unbounded map.
type cacheKey struct {
	x, y float64
}

type cacheValue struct {
	x, y uint16
}

type lruCache struct {
	capacity int
	ll       *list.List
	index    map[cacheKey]*list.Element
}

type entry struct {
	key   cacheKey
	value cacheValue
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		ll:       list.New(),
		index:    make(map[cacheKey]*list.Element, capacity),
	}
}

func (c *lruCache) get(key cacheKey) (cacheValue, bool) {
	el, ok := c.index[key]
	if !ok {
		return cacheValue{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*entry).value, true
}

func (c *lruCache) put(key cacheKey, value cacheValue) {
	if el, ok := c.index[key]; ok {
		el.Value.(*entry).value = value
		c.ll.MoveToFront(el)
		return
	}
	el := c.ll.PushFront(&entry{key: key, value: value})
	c.index[key] = el
	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.index, oldest.Value.(*entry).key)
		}
	}
}
