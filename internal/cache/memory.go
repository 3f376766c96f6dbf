// memory.go — in-memory реализация Backend поверх hashicorp/golang-lru/v2.
// Каждый экземпляр Vocab Module имеет собственный кэш (per-instance,
// stateless архитектура). Per-entry TTL хранится в самой записи:
// у expirable.LRU один TTL на весь кэш, поэтому он используется как
// верхняя граница, а точный дедлайн проверяется при чтении.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry — запись in-memory кэша с индивидуальным дедлайном.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend — in-memory Backend с LRU-вытеснением и TTL.
type MemoryBackend struct {
	lru *expirable.LRU[string, memoryEntry]
}

// NewMemoryBackend создаёт in-memory бэкенд.
// maxEntries — максимальное количество записей (LRU-вытеснение).
// maxTTL — верхняя граница времени жизни записи; индивидуальный TTL
// записи, переданный в Set, не может его превышать.
func NewMemoryBackend(maxEntries int, maxTTL time.Duration) *MemoryBackend {
	return &MemoryBackend{
		lru: expirable.NewLRU[string, memoryEntry](maxEntries, nil, maxTTL),
	}
}

// Get возвращает значение ключа или ErrCacheMiss.
func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	// Индивидуальный дедлайн мог наступить раньше общего TTL LRU
	if time.Now().After(entry.expiresAt) {
		m.lru.Remove(key)
		return nil, ErrCacheMiss
	}
	return entry.value, nil
}

// GetMulti возвращает значения для набора ключей.
// Отсутствующие и истёкшие ключи в результат не попадают.
func (m *MemoryBackend) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	result := make(map[string][]byte, len(keys))
	for _, key := range keys {
		value, err := m.Get(ctx, key)
		if err != nil {
			continue
		}
		result[key] = value
	}
	return result, nil
}

// Set сохраняет значение с указанным TTL.
func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	return nil
}

// Delete удаляет ключи. Отсутствие ключа — не ошибка.
func (m *MemoryBackend) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.lru.Remove(key)
	}
	return nil
}

// Scan возвращает снимок ключей с указанным префиксом.
// Keys() у expirable.LRU возвращает копию — это снимок, не живой курсор.
func (m *MemoryBackend) Scan(_ context.Context, prefix string) ([]string, error) {
	var matched []string
	for _, key := range m.lru.Keys() {
		if strings.HasPrefix(key, prefix) {
			matched = append(matched, key)
		}
	}
	return matched, nil
}

// Ping — in-memory бэкенд всегда доступен.
func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

// Close очищает кэш.
func (m *MemoryBackend) Close() error {
	m.lru.Purge()
	return nil
}
