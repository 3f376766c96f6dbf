// blocking.go — обработчик оценки сложности сегментов субтитров видео.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apierrors "github.com/bigkaa/lingvostream/vocab-module/internal/api/errors"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
)

// assessmentResponse — вердикт по одному сегменту в ответе API.
type assessmentResponse struct {
	SegmentIndex  int      `json:"segment_index"`
	Blocked       bool     `json:"blocked"`
	UnknownRatio  float64  `json:"unknown_ratio"`
	BlockingWords []string `json:"blocking_words"`
	Degraded      bool     `json:"degraded,omitempty"`
}

// videoAssessmentResponse — оценка всех сегментов видео.
type videoAssessmentResponse struct {
	VideoID      string               `json:"video_id"`
	Language     string               `json:"language"`
	Threshold    float64              `json:"threshold"`
	LevelCeiling string               `json:"level_ceiling"`
	Segments     []assessmentResponse `json:"segments"`
}

// AssessVideo — GET /api/v1/videos/{videoID}/blocking.
// Оценивает все сегменты субтитров видео относительно знаний пользователя.
//
// Query-параметры:
//   - language (обязателен) — язык субтитров
//   - threshold — порог доли неизвестных слов (по умолчанию из конфигурации)
//   - level_ceiling — потолок CEFR (по умолчанию из конфигурации)
func (h *APIHandler) AssessVideo(w http.ResponseWriter, r *http.Request) {
	userID := requestUserID(r)
	if userID == "" {
		apierrors.ValidationError(w, "Не определён пользователь запроса")
		return
	}

	videoID := chi.URLParam(r, "videoID")
	if _, err := uuid.Parse(videoID); err != nil {
		apierrors.ValidationError(w, "Некорректный идентификатор видео: ожидается UUID")
		return
	}

	language := r.URL.Query().Get("language")

	threshold := h.defaults.Threshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			apierrors.ValidationError(w, "Некорректный порог: ожидается число в диапазоне [0, 1]")
			return
		}
		threshold = parsed
	}

	ceiling := h.defaults.Ceiling
	if raw := r.URL.Query().Get("level_ceiling"); raw != "" {
		parsed, err := model.ParseCEFRLevel(raw)
		if err != nil {
			apierrors.ValidationError(w, err.Error())
			return
		}
		ceiling = parsed
	}

	segments, err := h.segments.ListByVideo(r.Context(), videoID)
	if err != nil {
		apierrors.StoreUnavailable(w, "Сегменты субтитров временно недоступны, повторите запрос")
		return
	}

	assessments, err := h.analyzer.AssessSegments(r.Context(), segments, userID, language, threshold, ceiling)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	resp := videoAssessmentResponse{
		VideoID:      videoID,
		Language:     language,
		Threshold:    threshold,
		LevelCeiling: string(ceiling),
		Segments:     make([]assessmentResponse, 0, len(assessments)),
	}
	for _, a := range assessments {
		resp.Segments = append(resp.Segments, assessmentResponse{
			SegmentIndex:  a.SegmentIndex,
			Blocked:       a.Blocked,
			UnknownRatio:  a.UnknownRatio,
			BlockingWords: a.BlockingWords,
			Degraded:      a.Degraded,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}
