package translate

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Direction 是翻译方向。
type Direction string

const (
	ToEnglish Direction = "to_en"
	ToUser    Direction = "to_user"
)

type cacheKey struct {
	direction Direction
	language  string
	hash      uint64
}

// Cache 是有上限的翻译结果缓存。达到上限后不再写入，也不淘汰旧条目，
// 已缓存的结果在进程生命周期内保持不变。
type Cache struct {
	mu       sync.RWMutex
	entries  map[cacheKey]string
	capacity int
}

// NewCache 创建容量为 capacity 的缓存，capacity <= 0 表示不缓存。
func NewCache(capacity int) *Cache {
	if capacity < 0 {
		capacity = 0
	}
	return &Cache{entries: make(map[cacheKey]string), capacity: capacity}
}

func key(direction Direction, language, content string) cacheKey {
	return cacheKey{direction: direction, language: language, hash: xxhash.Sum64String(content)}
}

// Get 查询缓存。
func (c *Cache) Get(direction Direction, language, content string) (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key(direction, language, content)]
	return v, ok
}

// Put 写入缓存，已满或已存在时忽略，返回是否写入。
func (c *Cache) Put(direction Direction, language, content, translated string) bool {
	if c == nil {
		return false
	}
	k := key(direction, language, content)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[k]; exists {
		return false
	}
	if len(c.entries) >= c.capacity {
		return false
	}
	c.entries[k] = translated
	return true
}

// Len 返回当前条目数。
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
