// words.go — обработчики чтения словарных данных.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lingvostream/vocab-module/internal/api/errors"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// wordResponse — справочная запись слова в ответе API.
type wordResponse struct {
	Lemma         string `json:"lemma"`
	Language      string `json:"language"`
	Level         string `json:"cefr_level"`
	FrequencyRank int    `json:"frequency_rank"`
}

// levelWordsResponse — список слов уровня.
type levelWordsResponse struct {
	Language string         `json:"language"`
	Level    string         `json:"cefr_level"`
	Total    int            `json:"total"`
	Words    []wordResponse `json:"words"`
}

// toWordResponse конвертирует доменную запись в ответ API.
func toWordResponse(entry *model.VocabularyEntry) wordResponse {
	return wordResponse{
		Lemma:         entry.Lemma,
		Language:      entry.Language,
		Level:         string(entry.Level),
		FrequencyRank: entry.FrequencyRank,
	}
}

// GetWordInfo — GET /api/v1/words/{language}/{lemma}.
// Возвращает справочную запись слова (уровень CEFR, частотный ранг).
func (h *APIHandler) GetWordInfo(w http.ResponseWriter, r *http.Request) {
	language := chi.URLParam(r, "language")
	lemma := chi.URLParam(r, "lemma")

	entry, err := h.lookup.GetWordInfo(r.Context(), language, lemma)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toWordResponse(entry))
}

// GetWordsByLevel — GET /api/v1/levels/{language}/{level}/words.
// Возвращает слова языка на указанном уровне CEFR,
// упорядоченные по частотному рангу. Пустой список — валидный ответ.
func (h *APIHandler) GetWordsByLevel(w http.ResponseWriter, r *http.Request) {
	language := chi.URLParam(r, "language")

	level, err := model.ParseCEFRLevel(chi.URLParam(r, "level"))
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	entries, err := h.lookup.GetWordsByLevel(r.Context(), language, level)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	words := make([]wordResponse, 0, len(entries))
	for _, entry := range entries {
		words = append(words, toWordResponse(entry))
	}

	writeJSON(w, http.StatusOK, levelWordsResponse{
		Language: language,
		Level:    string(level),
		Total:    len(words),
		Words:    words,
	})
}
