package memory

import (
	"sort"
	"sync"
	"time"
)

// DefaultTimeout время простоя, после которого запись сессии считается протухшей.
const DefaultTimeout = 3600 * time.Second

type entry struct {
	buffer     *Buffer
	lastAccess time.Time
}

// Cache in-process хранилище буферов разговора по идентификатору сессии.
// Протухшие записи удаляются лениво, при очередном Resolve, фонового таймера нет.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
	now     func() time.Time
}

// CacheOption настраивает Cache.
type CacheOption func(*Cache)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache создаёт пустой кэш. timeout == 0 отключает протухание.
func NewCache(timeout time.Duration, opts ...CacheOption) *Cache {
	c := &Cache{
		entries: make(map[string]*entry),
		timeout: timeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve возвращает буфер сессии, создавая его при отсутствии.
// Перед поиском выкидывает все записи, простаивающие дольше timeout.
// Для существующей записи windowSize игнорируется: ёмкость фиксируется
// при первом обращении и живёт, пока запись не протухнет.
// created == true, если запись была создана этим вызовом.
func (c *Cache) Resolve(sessionID string, windowSize int) (buf *Buffer, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	if e, ok := c.entries[sessionID]; ok {
		e.lastAccess = now
		return e.buffer, false
	}

	e := &entry{buffer: NewBuffer(windowSize), lastAccess: now}
	c.entries[sessionID] = e
	return e.buffer, true
}

func (c *Cache) sweepLocked(now time.Time) {
	if c.timeout <= 0 {
		return
	}
	for id, e := range c.entries {
		if now.Sub(e.lastAccess) > c.timeout {
			delete(c.entries, id)
		}
	}
}

// IDs возвращает отсортированный список сессий, находящихся в кэше.
// Протухание здесь не проверяется.
func (c *Cache) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.entries))
	for id := range c.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len возвращает число записей в кэше.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
