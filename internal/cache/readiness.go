// readiness.go — проверка готовности кэш-бэкенда для health endpoint.
package cache

import (
	"context"
	"time"
)

// ReadinessChecker — проверка готовности кэш-бэкенда.
// Реализует интерфейс handlers.ReadinessChecker.
type ReadinessChecker struct {
	backend Backend
	name    string
}

// NewReadinessChecker создаёт проверку готовности кэш-бэкенда.
// name — имя бэкенда для сообщения ("memory", "redis").
func NewReadinessChecker(backend Backend, name string) *ReadinessChecker {
	return &ReadinessChecker{backend: backend, name: name}
}

// CheckReady проверяет доступность бэкенда через ping.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.backend.Ping(ctx); err != nil {
		return "fail", "кэш-бэкенд " + c.name + " недоступен: " + err.Error()
	}
	return "ok", "кэш-бэкенд " + c.name + " доступен"
}
