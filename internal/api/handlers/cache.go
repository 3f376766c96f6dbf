// cache.go — обработчики статистики и административной инвалидации кэша.
package handlers

import (
	"encoding/json"
	"net/http"

	apierrors "github.com/bigkaa/lingvostream/vocab-module/internal/api/errors"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// GetCacheStats — GET /api/v1/cache/stats.
// Возвращает счётчики hit/miss и hit ratio по scope'ам.
func (h *APIHandler) GetCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.Snapshot())
}

// ResetCacheStats — POST /api/v1/cache/stats/reset.
// Обнуляет сервисные счётчики статистики (Prometheus-метрики накопительные
// и сбросом не затрагиваются).
func (h *APIHandler) ResetCacheStats(w http.ResponseWriter, _ *http.Request) {
	h.stats.Reset()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// invalidateRequest — тело запроса административной инвалидации.
type invalidateRequest struct {
	// Scope — word, level или language
	Scope string `json:"scope"`
	// Language — код языка (обязателен для всех scope'ов)
	Language string `json:"language"`
	// Lemma — лемма (для scope=word)
	Lemma string `json:"lemma,omitempty"`
	// Level — уровень CEFR (для scope=level)
	Level string `json:"level,omitempty"`
}

// InvalidateCache — POST /api/v1/cache/invalidate.
// Административная инвалидация кэша по слову, уровню или языку.
// Используется после импорта/правки словаря.
func (h *APIHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	var err error
	switch req.Scope {
	case "word":
		err = h.invalidator.InvalidateWord(r.Context(), req.Language, req.Lemma)
	case "level":
		var level model.CEFRLevel
		level, err = model.ParseCEFRLevel(req.Level)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		err = h.invalidator.InvalidateLevel(r.Context(), req.Language, level)
	case "language":
		err = h.invalidator.InvalidateLanguage(r.Context(), req.Language)
	default:
		apierrors.ValidationError(w, "Некорректный scope: допустимые word, level, language")
		return
	}

	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"scope":  req.Scope,
	})
}
