// knowledge.go — обработчики чтения и записи знания слов пользователем.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/lingvostream/vocab-module/internal/api/errors"
)

// knowledgeResponse — снимок знания слова в ответе API.
type knowledgeResponse struct {
	UserID     string  `json:"user_id"`
	Lemma      string  `json:"lemma"`
	Language   string  `json:"language"`
	IsKnown    bool    `json:"is_known"`
	Confidence float64 `json:"confidence"`
}

// setKnownRequest — тело запроса отметки знания.
type setKnownRequest struct {
	Known bool `json:"known"`
}

// GetUserKnowledge — GET /api/v1/words/{language}/{lemma}/knowledge.
// Возвращает снимок знания слова текущим пользователем.
// 404 означает отсутствие записи — клиент трактует слово как неизвестное.
func (h *APIHandler) GetUserKnowledge(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		apierrors.ValidationError(w, "Не определён пользователь запроса")
		return
	}

	language := chi.URLParam(r, "language")
	lemma := chi.URLParam(r, "lemma")

	k, err := h.lookup.GetUserKnowledge(r.Context(), userID, language, lemma)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, knowledgeResponse{
		UserID:     k.UserID,
		Lemma:      k.Lemma,
		Language:   k.Language,
		IsKnown:    k.IsKnown,
		Confidence: k.Confidence,
	})
}

// SetUserKnowledge — POST /api/v1/words/{language}/{lemma}/known.
// Отмечает слово известным/неизвестным для текущего пользователя.
// Лемма обязана существовать в справочнике — иначе 404.
func (h *APIHandler) SetUserKnowledge(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		apierrors.ValidationError(w, "Не определён пользователь запроса")
		return
	}

	var req setKnownRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса: ожидается JSON {\"known\": bool}")
		return
	}

	language := chi.URLParam(r, "language")
	lemma := chi.URLParam(r, "lemma")

	if err := h.knowledge.SetUserKnowledge(r.Context(), userID, language, lemma, req.Known); err != nil {
		h.writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"lemma":    lemma,
		"language": language,
		"known":    req.Known,
	})
}
