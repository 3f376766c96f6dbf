// handler.go — основной обработчик API Vocab Module.
// Регистрирует маршруты на chi-роутере и маппит ошибки сервисного слоя
// в JSON-ответы API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lingvostream/vocab-module/internal/api/errors"
	"github.com/bigkaa/lingvostream/vocab-module/internal/api/middleware"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
	"github.com/bigkaa/lingvostream/vocab-module/internal/repository"
	"github.com/bigkaa/lingvostream/vocab-module/internal/service"
)

// AssessmentDefaults — значения порога и потолка CEFR, применяемые
// когда клиент не передал их в запросе.
type AssessmentDefaults struct {
	// Threshold — порог доли неизвестных слов
	Threshold float64
	// Ceiling — потолок CEFR
	Ceiling model.CEFRLevel
}

// APIHandler — основной обработчик API Vocab Module.
// Делегирует запросы в сервисный слой.
type APIHandler struct {
	lookup      *service.LookupService
	knowledge   *service.KnowledgeService
	analyzer    *service.BlockingWordAnalyzer
	invalidator *service.InvalidationManager
	stats       *service.StatsCollector
	segments    repository.SegmentRepository
	health      *HealthHandler
	defaults    AssessmentDefaults
	logger      *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	lookup *service.LookupService,
	knowledge *service.KnowledgeService,
	analyzer *service.BlockingWordAnalyzer,
	invalidator *service.InvalidationManager,
	stats *service.StatsCollector,
	segments repository.SegmentRepository,
	health *HealthHandler,
	defaults AssessmentDefaults,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		lookup:      lookup,
		knowledge:   knowledge,
		analyzer:    analyzer,
		invalidator: invalidator,
		stats:       stats,
		segments:    segments,
		health:      health,
		defaults:    defaults,
		logger:      logger.With(slog.String("component", "api_handler")),
	}
}

// Routes регистрирует все маршруты API на роутере.
// requireAdmin — middleware авторизации административных endpoints
// (nil — авторизация отключена).
func (h *APIHandler) Routes(r chi.Router, requireAdmin func(http.Handler) http.Handler) {
	// Health и метрики
	r.Get("/health/live", h.health.HealthLive)
	r.Get("/health/ready", h.health.HealthReady)
	r.Get("/metrics", h.health.GetMetrics)

	// Словарные данные
	r.Get("/api/v1/words/{language}/{lemma}", h.GetWordInfo)
	r.Get("/api/v1/levels/{language}/{level}/words", h.GetWordsByLevel)

	// Знание слов
	r.Get("/api/v1/words/{language}/{lemma}/knowledge", h.GetUserKnowledge)
	r.Post("/api/v1/words/{language}/{lemma}/known", h.SetUserKnowledge)

	// Оценка сегментов
	r.Get("/api/v1/videos/{videoID}/blocking", h.AssessVideo)

	// Статистика кэша
	r.Get("/api/v1/cache/stats", h.GetCacheStats)

	// Административные операции
	admin := func(fn http.HandlerFunc) http.Handler {
		if requireAdmin == nil {
			return fn
		}
		return requireAdmin(fn)
	}
	r.Method(http.MethodPost, "/api/v1/cache/stats/reset", admin(h.ResetCacheStats))
	r.Method(http.MethodPost, "/api/v1/cache/invalidate", admin(h.InvalidateCache))
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError маппит ошибку сервисного слоя в JSON-ответ API.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, err.Error())
	case errors.Is(err, service.ErrStoreUnavailable):
		apierrors.StoreUnavailable(w, "Словарное хранилище временно недоступно, повторите запрос")
	case errors.Is(err, service.ErrInvalidationIncomplete):
		h.logger.Error("Неполная инвалидация кэша", slog.String("error", err.Error()))
		apierrors.WriteError(w, http.StatusInternalServerError, apierrors.CodeInternalError,
			"Инвалидация выполнена не полностью, повторите запрос")
	default:
		h.logger.Error("Необработанная ошибка сервисного слоя", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Внутренняя ошибка сервиса")
	}
}

// requestUserID определяет пользователя запроса: sub из JWT,
// при отключённой аутентификации — query-параметр user_id.
func requestUserID(r *http.Request) string {
	if sub := middleware.SubjectFromContext(r.Context()); sub != "" {
		return sub
	}
	return r.URL.Query().Get("user_id")
}
