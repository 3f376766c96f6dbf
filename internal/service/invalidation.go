// invalidation.go — InvalidationManager: удаление устаревших записей кэша
// по слову, уровню или языку.
//
// Протокол для каждого ключа: bump поколения → Forget in-flight записи →
// delete из бэкенда. Bump идёт ПЕРВЫМ: lookup, стартовавший до инвалидации
// и завершившийся после, увидит несовпадение поколений и отбросит свою
// репопуляцию — устаревшие данные не воскресают до следующего TTL.
//
// Частичный сбой multi-key инвалидации ретраится ограниченное число раз;
// устойчивый сбой всплывает как ошибка и логируется на уровне Error —
// молчаливое проглатывание означало бы отдачу устаревших знаний
// неопределённо долго.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lingvostream/vocab-module/internal/cache"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// ErrInvalidationIncomplete — часть ключей целевого scope'а осталась
// в кэше после всех ретраев. Вызывающий обязан отреагировать
// (повторить или поднять тревогу), а не игнорировать.
var ErrInvalidationIncomplete = errors.New("инвалидация выполнена не полностью")

// Prometheus-метрики инвалидации.
var (
	invalidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_invalidations_total",
		Help: "Количество операций инвалидации по типу scope'а.",
	}, []string{"scope"})
	invalidationKeysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_invalidation_keys_total",
		Help: "Общее количество инвалидированных ключей кэша.",
	})
	invalidationFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_invalidation_failures_total",
		Help: "Количество инвалидаций, завершившихся неполным удалением.",
	})
)

// InvalidationManager — удаление устаревших записей кэша с протоколом поколений.
type InvalidationManager struct {
	backend      cache.Backend
	gens         *GenerationTracker
	lookup       *LookupService
	cacheTimeout time.Duration
	maxRetries   int
	logger       *slog.Logger
}

// NewInvalidationManager создаёт менеджер инвалидации.
// gens обязан быть тем же трекером, что у LookupService.
// maxRetries — количество повторов при частичном сбое multi-key инвалидации.
func NewInvalidationManager(
	backend cache.Backend,
	gens *GenerationTracker,
	lookup *LookupService,
	cacheTimeout time.Duration,
	maxRetries int,
	logger *slog.Logger,
) *InvalidationManager {
	return &InvalidationManager{
		backend:      backend,
		gens:         gens,
		lookup:       lookup,
		cacheTimeout: cacheTimeout,
		maxRetries:   maxRetries,
		logger:       logger.With(slog.String("component", "invalidation_manager")),
	}
}

// InvalidateWord инвалидирует справочную запись слова и снимки знания
// всех пользователей по этому слову.
func (m *InvalidationManager) InvalidateWord(ctx context.Context, language, lemma string) error {
	if err := model.ValidateLanguage(language); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := model.ValidateLemma(lemma); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	invalidationsTotal.WithLabelValues("word").Inc()

	// Точный ключ слова + все снимки знания по префиксу
	if err := m.invalidateKeys(ctx, []string{cache.KeyWord(language, lemma)}); err != nil {
		return err
	}
	return m.invalidatePrefix(ctx, cache.PrefixKnowledgeWord(language, lemma))
}

// InvalidateLevel инвалидирует кэшированные списки слов уровня.
func (m *InvalidationManager) InvalidateLevel(ctx context.Context, language string, level model.CEFRLevel) error {
	if err := model.ValidateLanguage(language); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if !level.Valid() {
		return fmt.Errorf("%w: неизвестный уровень CEFR %q", ErrValidation, level)
	}

	invalidationsTotal.WithLabelValues("level").Inc()
	return m.invalidatePrefix(ctx, cache.PrefixLevel(language, string(level)))
}

// InvalidateLanguage инвалидирует все записи языка во всех пространствах ключей.
func (m *InvalidationManager) InvalidateLanguage(ctx context.Context, language string) error {
	if err := model.ValidateLanguage(language); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	invalidationsTotal.WithLabelValues("language").Inc()

	prefixes := []string{
		cache.PrefixWordLanguage(language),
		cache.PrefixLevelLanguage(language),
		cache.PrefixKnowledgeLanguage(language),
	}
	for _, prefix := range prefixes {
		if err := m.invalidatePrefix(ctx, prefix); err != nil {
			return err
		}
	}
	return nil
}

// invalidatePrefix перечисляет ключи префикса (снимок) и инвалидирует каждый.
// Сбой scan'а или частичный сбой удаления ретраится: повторный scan
// увидит оставшиеся ключи.
func (m *InvalidationManager) invalidatePrefix(ctx context.Context, prefix string) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		keys, err := m.scan(ctx, prefix)
		if err != nil {
			lastErr = err
			m.logger.Warn("Сбой scan при инвалидации, повтор",
				slog.String("prefix", prefix),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}
		if len(keys) == 0 {
			return nil
		}

		if err := m.invalidateKeysOnce(ctx, keys); err != nil {
			lastErr = err
			m.logger.Warn("Частичный сбой инвалидации, повтор",
				slog.String("prefix", prefix),
				slog.Int("keys", len(keys)),
				slog.Int("attempt", attempt+1),
				slog.String("error", err.Error()),
			)
			continue
		}
		return nil
	}

	invalidationFailuresTotal.Inc()
	m.logger.Error("Инвалидация не завершена: часть ключей осталась в кэше",
		slog.String("prefix", prefix),
		slog.Int("retries", m.maxRetries),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("%w: префикс %q: %s", ErrInvalidationIncomplete, prefix, lastErr)
}

// invalidateKeys инвалидирует явный набор ключей с ретраями.
func (m *InvalidationManager) invalidateKeys(ctx context.Context, keys []string) error {
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if err := m.invalidateKeysOnce(ctx, keys); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	invalidationFailuresTotal.Inc()
	m.logger.Error("Инвалидация ключей не завершена",
		slog.Int("keys", len(keys)),
		slog.Int("retries", m.maxRetries),
		slog.String("error", lastErr.Error()),
	)
	return fmt.Errorf("%w: %s", ErrInvalidationIncomplete, lastErr)
}

// invalidateKeysOnce — одна попытка: для каждого ключа bump поколения,
// Forget in-flight записи, затем delete из бэкенда.
// Bump и Forget выполняются до delete и не откатываются при сбое delete:
// лишний bump безопасен (приводит максимум к лишнему запросу в хранилище).
func (m *InvalidationManager) invalidateKeysOnce(ctx context.Context, keys []string) error {
	for _, key := range keys {
		m.gens.Bump(key)
		if m.lookup != nil {
			m.lookup.Forget(key)
		}
	}

	cctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()

	if err := m.backend.Delete(cctx, keys...); err != nil {
		return fmt.Errorf("удаление %d ключей: %w", len(keys), err)
	}

	invalidationKeysTotal.Add(float64(len(keys)))
	return nil
}

// scan перечисляет ключи префикса с ограниченным таймаутом.
func (m *InvalidationManager) scan(ctx context.Context, prefix string) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, m.cacheTimeout)
	defer cancel()

	keys, err := m.backend.Scan(cctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("scan по префиксу %q: %w", prefix, err)
	}
	return keys, nil
}
