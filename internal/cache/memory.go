package cache

import (
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Clock возвращает текущее время; подменяется в тестах для контроля протухания.
type Clock func() time.Time

type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory — in-memory кэш чтения с фиксированным TTL.
// Протухшие записи считаются промахом и удаляются при обращении.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	clock   Clock
}

// NewMemory создаёт кэш с фиксированным TTL. Нулевые часы заменяются time.Now.
func NewMemory(ttl time.Duration, clock Clock) *Memory {
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		clock:   clock,
	}
}

// Get возвращает значение и признак попадания.
func (c *Memory) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.clock().After(e.expiresAt) {
		c.mu.Lock()
		// Запись могла быть перезаписана между RUnlock и Lock.
		if current, still := c.entries[key]; still && current.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true
}

// Put кладёт значение с TTL кэша.
func (c *Memory) Put(key string, value []byte) {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = entry{value: stored, expiresAt: c.clock().Add(c.ttl)}
}

// Invalidate удаляет одну запись.
func (c *Memory) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// InvalidateAll очищает кэш целиком.
func (c *Memory) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len возвращает число записей, включая ещё не вычищенные протухшие.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ domain.Cache = (*Memory)(nil)
