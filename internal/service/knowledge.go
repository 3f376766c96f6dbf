// knowledge.go — KnowledgeService: отметка слова известным/неизвестным.
// Порядок строгий: запись в хранилище → инвалидация кэша. Инвалидация
// happens-before любого последующего наблюдаемого чтения старого значения
// (протокол поколений в InvalidationManager).
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
	"github.com/bigkaa/lingvostream/vocab-module/internal/repository"
)

// Prometheus-метрики отметок знания.
var knowledgeUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "vm_knowledge_updates_total",
	Help: "Количество отметок знания слов по результату (ok/unknown_word/error).",
}, []string{"status"})

// KnowledgeService — отметка знания слов с инвалидацией кэша.
type KnowledgeService struct {
	repo         repository.VocabularyRepository
	invalidator  *InvalidationManager
	storeTimeout time.Duration
	logger       *slog.Logger
}

// NewKnowledgeService создаёт сервис отметок знания.
func NewKnowledgeService(
	repo repository.VocabularyRepository,
	invalidator *InvalidationManager,
	storeTimeout time.Duration,
	logger *slog.Logger,
) *KnowledgeService {
	return &KnowledgeService{
		repo:         repo,
		invalidator:  invalidator,
		storeTimeout: storeTimeout,
		logger:       logger.With(slog.String("component", "knowledge_service")),
	}
}

// SetUserKnowledge отмечает слово известным/неизвестным.
// Пара (лемма, язык) обязана существовать в справочнике: произвольные
// пользовательские термины не принимаются — ErrNotFound.
func (s *KnowledgeService) SetUserKnowledge(ctx context.Context, userID, language, lemma string, isKnown bool) error {
	if userID == "" {
		return fmt.Errorf("%w: пустой идентификатор пользователя", ErrValidation)
	}
	if err := model.ValidateLanguage(language); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if err := model.ValidateLemma(lemma); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}

	// 1. Запись в хранилище
	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	if err := s.repo.SetUserKnowledge(sctx, userID, language, lemma, isKnown); err != nil {
		if errors.Is(err, repository.ErrWordUnknown) {
			knowledgeUpdatesTotal.WithLabelValues("unknown_word").Inc()
			return fmt.Errorf("%w: %q (%s)", ErrNotFound, lemma, language)
		}
		knowledgeUpdatesTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("%w: %s", ErrStoreUnavailable, err)
	}

	// 2. Инвалидация кэша — строго после подтверждённой записи
	if err := s.invalidator.InvalidateWord(ctx, language, lemma); err != nil {
		// Запись в хранилище прошла; неполная инвалидация — громкая ошибка
		knowledgeUpdatesTotal.WithLabelValues("error").Inc()
		s.logger.Error("Знание записано, но инвалидация кэша не завершена",
			slog.String("user_id", userID),
			slog.String("language", language),
			slog.String("lemma", lemma),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("инвалидация после записи знания: %w", err)
	}

	knowledgeUpdatesTotal.WithLabelValues("ok").Inc()
	s.logger.Debug("Знание слова обновлено",
		slog.String("user_id", userID),
		slog.String("language", language),
		slog.String("lemma", lemma),
		slog.Bool("is_known", isKnown),
	)
	return nil
}
