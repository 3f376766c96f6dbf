// redis.go — Redis-реализация Backend через go-redis v9.
// Используется, когда несколько реплик Vocab Module должны разделять
// кэш (VM_CACHE_BACKEND=redis). redis.Nil маппится в ErrCacheMiss,
// остальные ошибки возвращаются как есть — вызывающий трактует их
// как недоступность кэша и падает на путь хранилища.
package cache

import (
	"context"
	"errors"
	"fmt"

	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend — Backend поверх Redis.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend создаёт Redis-бэкенд и проверяет подключение.
func NewRedisBackend(ctx context.Context, addr, password string, db int) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ошибка подключения к Redis %s: %w", addr, err)
	}

	return &RedisBackend{client: client}, nil
}

// Get возвращает значение ключа или ErrCacheMiss.
func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("ошибка чтения ключа из Redis: %w", err)
	}
	return value, nil
}

// GetMulti возвращает значения для набора ключей одним MGET.
// Отсутствующие ключи в результат не попадают.
func (r *RedisBackend) GetMulti(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("ошибка MGET из Redis: %w", err)
	}

	result := make(map[string][]byte, len(keys))
	for i, v := range values {
		if v == nil {
			continue
		}
		// MGET возвращает строки — конвертируем обратно в байты
		if s, ok := v.(string); ok {
			result[keys[i]] = []byte(s)
		}
	}
	return result, nil
}

// Set сохраняет значение с указанным TTL.
func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи ключа в Redis: %w", err)
	}
	return nil
}

// Delete удаляет ключи. Отсутствие ключа — не ошибка.
func (r *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("ошибка удаления ключей из Redis: %w", err)
	}
	return nil
}

// Scan возвращает ключи с указанным префиксом через SCAN MATCH.
// SCAN в Redis даёт слабую гарантию снимка: ключи, существовавшие
// на протяжении всей итерации, будут возвращены — этого достаточно
// для протокола инвалидации.
func (r *RedisBackend) Scan(ctx context.Context, prefix string) ([]string, error) {
	var (
		matched []string
		cursor  uint64
	)

	for {
		keys, next, err := r.client.Scan(ctx, cursor, prefix+"*", 256).Result()
		if err != nil {
			return nil, fmt.Errorf("ошибка SCAN по префиксу %q: %w", prefix, err)
		}
		matched = append(matched, keys...)

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return matched, nil
}

// Ping проверяет доступность Redis.
func (r *RedisBackend) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("Redis недоступен: %w", err)
	}
	return nil
}

// Close закрывает подключение к Redis.
func (r *RedisBackend) Close() error {
	return r.client.Close()
}
