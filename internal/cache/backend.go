// Пакет cache — key-value слой быстрого чтения для Vocab Module.
// Backend — контракт адаптера: get/set/delete/scan с TTL.
// Две реализации: in-memory (expirable LRU) и Redis.
// Любая ошибка, кроме ErrCacheMiss, означает недоступность бэкенда —
// вызывающие обязаны трактовать её как промах, а не как фатальную ошибку.
package cache

import (
	"context"
	"errors"
	"time"
)

// Ошибки кэш-слоя.
var (
	// ErrCacheMiss — ключ отсутствует или истёк. Валидный исход, не сбой.
	ErrCacheMiss = errors.New("ключ отсутствует в кэше")
)

// Backend — контракт key-value бэкенда кэша.
// Все операции принимают контекст с ограниченным таймаутом;
// таймаут трактуется вызывающим как недоступность кэша.
type Backend interface {
	// Get возвращает значение ключа или ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// GetMulti возвращает значения для набора ключей.
	// Отсутствующие ключи в результат не попадают (это не ошибка).
	GetMulti(ctx context.Context, keys []string) (map[string][]byte, error)
	// Set сохраняет значение с указанным TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete удаляет ключи. Отсутствие ключа — не ошибка.
	Delete(ctx context.Context, keys ...string) error
	// Scan возвращает ключи с указанным префиксом.
	// Результат — снимок на момент вызова, не живой курсор.
	Scan(ctx context.Context, prefix string) ([]string, error)
	// Ping проверяет доступность бэкенда (для readiness probe).
	Ping(ctx context.Context) error
	// Close освобождает ресурсы бэкенда.
	Close() error
}
