// generation.go — счётчики поколений ключей кэша.
// Протокол инвалидации: lookup снимает поколение ключа ПЕРЕД запросом
// к хранилищу; инвалидация инкрементирует поколение; запись в кэш
// принимается только если снятое поколение всё ещё актуально.
// Репопуляция устаревшими данными отбрасывается, и ключ остаётся
// пустым до следующего чтения — staleness ограничен длительностью
// одного in-flight lookup'а, а не TTL.
package service

import "sync"

// GenerationTracker — монотонные счётчики поколений по ключам кэша.
// Записи появляются только для инвалидированных ключей; для остальных
// Current возвращает 0.
type GenerationTracker struct {
	mu   sync.Mutex
	gens map[string]uint64
}

// NewGenerationTracker создаёт трекер поколений.
func NewGenerationTracker() *GenerationTracker {
	return &GenerationTracker{gens: make(map[string]uint64)}
}

// Current возвращает текущее поколение ключа (0, если ключ не инвалидировался).
func (t *GenerationTracker) Current(key string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gens[key]
}

// Bump инкрементирует поколение ключа. Вызывается инвалидацией
// ПЕРЕД удалением ключа из бэкенда.
func (t *GenerationTracker) Bump(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gens[key]++
}

// StillCurrent сообщает, актуально ли снятое ранее поколение ключа.
// false означает, что ключ инвалидировался после начала lookup'а
// и репопуляция должна быть отброшена.
func (t *GenerationTracker) StillCurrent(key string, captured uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gens[key] == captured
}
