// analyzer.go — BlockingWordAnalyzer: оценка сложности сегментов субтитров
// относительно известных пользователю слов.
//
// Сегмент блокируется по двум независимым триггерам:
//   - доля неизвестных слов СТРОГО выше порога (граница не блокирует);
//   - хотя бы одно слово строго сложнее потолка CEFR — одно продвинутое
//     слово блокирует сегмент даже при низкой доле неизвестных и даже
//     если пользователь отметил его известным.
//
// Сбой lookup'а по токену трактуется как "слово неизвестно" (перестраховка
// в сторону блокировки), а вердикт помечается degraded — вызывающий
// отличает уверенную оценку от фолбэка.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"unicode"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// Prometheus-метрики анализатора.
var (
	segmentsAssessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vm_segments_assessed_total",
		Help: "Количество оценённых сегментов по вердикту (blocked/passed).",
	}, []string{"verdict"})
	degradedAssessmentsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vm_degraded_assessments_total",
		Help: "Количество вердиктов, вычисленных с неудавшимися sub-lookup'ами.",
	})
)

// BlockingWordAnalyzer — оценка сложности сегментов субтитров.
type BlockingWordAnalyzer struct {
	lookup    *LookupService
	stopwords map[string]struct{}
	logger    *slog.Logger
}

// NewBlockingWordAnalyzer создаёт анализатор.
// stopwords — сконфигурированный список служебных слов, исключаемых
// из значимых токенов (сравнение регистронезависимое).
func NewBlockingWordAnalyzer(lookup *LookupService, stopwords []string, logger *slog.Logger) *BlockingWordAnalyzer {
	set := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return &BlockingWordAnalyzer{
		lookup:    lookup,
		stopwords: set,
		logger:    logger.With(slog.String("component", "blocking_analyzer")),
	}
}

// AssessSegment вычисляет вердикт сложности одного сегмента.
// threshold — порог доли неизвестных слов (строгое сравнение >);
// ceiling — потолок CEFR (слова строго выше — блокирующие).
func (a *BlockingWordAnalyzer) AssessSegment(
	ctx context.Context,
	segment model.SubtitleSegment,
	userID, language string,
	threshold float64,
	ceiling model.CEFRLevel,
) (*model.BlockingAssessment, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: пустой идентификатор пользователя", ErrValidation)
	}
	if err := model.ValidateLanguage(language); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrValidation, err)
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("%w: порог %v вне диапазона [0, 1]", ErrValidation, threshold)
	}
	if !ceiling.Valid() {
		return nil, fmt.Errorf("%w: неизвестный уровень CEFR %q", ErrValidation, ceiling)
	}

	assessment := &model.BlockingAssessment{
		SegmentIndex:  segment.Index,
		BlockingWords: []string{},
	}

	contentTokens := a.filterContentTokens(segment.Tokens)
	// Сегмент без значимых токенов никогда не блокируется
	// (и деления на ноль не возникает)
	if len(contentTokens) == 0 {
		segmentsAssessedTotal.WithLabelValues("passed").Inc()
		return assessment, nil
	}

	// Знание слов пользователем — одним batch-запросом.
	// Сбой batch-чтения деградирует весь сегмент: все токены неизвестны.
	knowledge, err := a.lookup.GetUserKnowledgeBatch(ctx, userID, language, contentTokens)
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		a.logger.Warn("Batch-чтение знаний не удалось, деградированная оценка",
			slog.Int("segment", segment.Index),
			slog.String("error", err.Error()),
		)
		knowledge = map[string]*model.UserWordKnowledge{}
		assessment.Degraded = true
	}

	unknownCount := 0
	var lemmas []string  // уникальные леммы сегмента в порядке первого вхождения
	var unknown []string // уникальные неизвестные леммы в том же порядке
	seen := make(map[string]struct{})

	for _, token := range contentTokens {
		_, dup := seen[token]
		if !dup {
			seen[token] = struct{}{}
			lemmas = append(lemmas, token)
		}
		k, ok := knowledge[token]
		if ok && k.IsKnown {
			continue
		}
		unknownCount++
		if !dup {
			unknown = append(unknown, token)
		}
	}

	assessment.UnknownRatio = float64(unknownCount) / float64(len(contentTokens))
	// Строгое сравнение: доля, равная порогу, не блокирует
	blocked := assessment.UnknownRatio > threshold

	// Справочные данные для ВСЕХ значимых лемм: потолок CEFR действует
	// и на известные пользователю слова — одно слово строго выше потолка
	// блокирует сегмент независимо от отметок знания. Частотный ранг
	// задаёт порядок выдачи неизвестных; ранг 0 — данные недоступны.
	ranks := make(map[string]int, len(lemmas))
	for _, lemma := range lemmas {
		entry, err := a.lookup.GetWordInfo(ctx, language, lemma)
		if err != nil {
			if errors.Is(err, ErrValidation) {
				return nil, err
			}
			if !errors.Is(err, ErrNotFound) {
				// Сбой lookup'а: уровень слова определить нельзя,
				// триггер потолка мог быть пропущен — вердикт деградирован
				assessment.Degraded = true
			}
			ranks[lemma] = 0
			continue
		}
		ranks[lemma] = entry.FrequencyRank
		if entry.Level.Above(ceiling) {
			blocked = true
		}
	}

	// Самые редкие первыми (больший ранг = реже слово);
	// при равном ранге — порядок первого вхождения в сегменте
	sort.SliceStable(unknown, func(i, j int) bool {
		return ranks[unknown[i]] > ranks[unknown[j]]
	})

	assessment.Blocked = blocked
	assessment.BlockingWords = unknown

	verdict := "passed"
	if blocked {
		verdict = "blocked"
	}
	segmentsAssessedTotal.WithLabelValues(verdict).Inc()
	if assessment.Degraded {
		degradedAssessmentsTotal.Inc()
	}

	return assessment, nil
}

// AssessSegments оценивает последовательность сегментов одного видео.
func (a *BlockingWordAnalyzer) AssessSegments(
	ctx context.Context,
	segments []model.SubtitleSegment,
	userID, language string,
	threshold float64,
	ceiling model.CEFRLevel,
) ([]*model.BlockingAssessment, error) {
	result := make([]*model.BlockingAssessment, 0, len(segments))
	for _, segment := range segments {
		assessment, err := a.AssessSegment(ctx, segment, userID, language, threshold, ceiling)
		if err != nil {
			return nil, fmt.Errorf("оценка сегмента %d: %w", segment.Index, err)
		}
		result = append(result, assessment)
	}
	return result, nil
}

// filterContentTokens отбирает значимые токены: отбрасывает пунктуацию,
// числа и служебные слова из стоп-листа. Токены нормализуются
// к нижнему регистру.
func (a *BlockingWordAnalyzer) filterContentTokens(tokens []string) []string {
	var content []string
	for _, token := range tokens {
		normalized := strings.ToLower(strings.TrimSpace(token))
		if normalized == "" || !containsLetter(normalized) {
			continue
		}
		if _, stop := a.stopwords[normalized]; stop {
			continue
		}
		content = append(content, normalized)
	}
	return content
}

// containsLetter сообщает, содержит ли токен хотя бы одну букву
// (чистая пунктуация и числа — не значимые токены).
func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
