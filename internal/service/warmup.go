// warmup.go — WarmupScheduler: предзагрузка часто запрашиваемых scope'ов
// (списки слов уровней) через обычный путь lookup'а с репопуляцией кэша.
// Запускается асинхронно относительно старта сервиса и не задерживает
// готовность принимать запросы. Сбой одной пары язык/уровень логируется
// и не прерывает прогрев остальных.
package service

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// Prometheus-метрики прогрева.
var warmupLevelsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vm_warmup_levels_total",
	Help: "Количество прогретых пар язык/уровень по результату (ok/error).",
}, []string{"status"})

// WarmupScope — одна пара язык/уровни для прогрева.
type WarmupScope struct {
	// Language — код языка
	Language string
	// Levels — уровни CEFR для предзагрузки
	Levels []model.CEFRLevel
}

// WarmupScheduler — асинхронный прогрев кэша.
type WarmupScheduler struct {
	lookup *LookupService
	scopes []WarmupScope
	logger *slog.Logger
}

// NewWarmupScheduler создаёт планировщик прогрева.
func NewWarmupScheduler(lookup *LookupService, scopes []WarmupScope, logger *slog.Logger) *WarmupScheduler {
	return &WarmupScheduler{
		lookup: lookup,
		scopes: scopes,
		logger: logger.With(slog.String("component", "warmup_scheduler")),
	}
}

// Run выполняет прогрев всех сконфигурированных scope'ов.
// Блокирующий вызов — запускается в отдельной горутине из main
// (go warmup.Run(ctx)), чтобы не задерживать readiness.
func (w *WarmupScheduler) Run(ctx context.Context) {
	if len(w.scopes) == 0 {
		return
	}

	w.logger.Info("Прогрев кэша запущен", slog.Int("scopes", len(w.scopes)))

	warmed, failed := 0, 0
	for _, scope := range w.scopes {
		for _, level := range scope.Levels {
			if ctx.Err() != nil {
				w.logger.Info("Прогрев кэша прерван", slog.String("reason", ctx.Err().Error()))
				return
			}

			entries, err := w.lookup.GetWordsByLevel(ctx, scope.Language, level)
			if err != nil {
				// Сбой одной пары не прерывает прогрев остальных
				failed++
				warmupLevelsTotal.WithLabelValues("error").Inc()
				w.logger.Warn("Сбой прогрева пары язык/уровень",
					slog.String("language", scope.Language),
					slog.String("level", string(level)),
					slog.String("error", err.Error()),
				)
				continue
			}

			warmed++
			warmupLevelsTotal.WithLabelValues("ok").Inc()
			w.logger.Debug("Пара язык/уровень прогрета",
				slog.String("language", scope.Language),
				slog.String("level", string(level)),
				slog.Int("words", len(entries)),
			)
		}
	}

	w.logger.Info("Прогрев кэша завершён",
		slog.Int("warmed", warmed),
		slog.Int("failed", failed),
	)
}
