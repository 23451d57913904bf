// Package plancache is a small LRU over bound plans keyed by statement
// text. Plans pin schema versions, so a hit can still be stale; the engine
// detects that on execution, drops the entry and re-binds.
package plancache

import (
	"container/list"
	"sync"

	"github.com/tuannm99/slatesql/internal/sql/planner"
)

const DefaultCapacity = 256

type Cache struct {
	mu      sync.Mutex
	cap     int
	lruList *list.List
	byKey   map[string]*list.Element
}

type cacheEntry struct {
	key  string
	plan planner.Plan
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		cap:     capacity,
		lruList: list.New(),
		byKey:   map[string]*list.Element{},
	}
}

func (c *Cache) Get(key string) (planner.Plan, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	c.lruList.MoveToFront(elem)
	return elem.Value.(*cacheEntry).plan, true
}

func (c *Cache) Put(key string, plan planner.Plan) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.byKey[key]; ok {
		elem.Value.(*cacheEntry).plan = plan
		c.lruList.MoveToFront(elem)
		return
	}
	c.byKey[key] = c.lruList.PushFront(&cacheEntry{key: key, plan: plan})
	for c.lruList.Len() > c.cap {
		back := c.lruList.Back()
		c.lruList.Remove(back)
		delete(c.byKey, back.Value.(*cacheEntry).key)
	}
}

func (c *Cache) Drop(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.byKey[key]; ok {
		c.lruList.Remove(elem)
		delete(c.byKey, key)
	}
}

// Clear empties the cache; the engine calls it after DDL since any cached
// plan may reference the changed table.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lruList.Init()
	c.byKey = map[string]*list.Element{}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lruList.Len()
}
