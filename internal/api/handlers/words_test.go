package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/lingvostream/vocab-module/internal/cache"
	"github.com/bigkaa/lingvostream/vocab-module/internal/domain/model"
	"github.com/bigkaa/lingvostream/vocab-module/internal/repository"
	"github.com/bigkaa/lingvostream/vocab-module/internal/service"
)

// stubRepo — заглушка словарного репозитория для тестов обработчиков.
type stubRepo struct {
	findWordFn         func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error)
	findWordsByLevelFn func(ctx context.Context, language string, level model.CEFRLevel) ([]*model.VocabularyEntry, error)
	setUserKnowledgeFn func(ctx context.Context, userID, language, lemma string, isKnown bool) error
}

func (s *stubRepo) FindWord(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
	if s.findWordFn == nil {
		return nil, repository.ErrNotFound
	}
	return s.findWordFn(ctx, language, lemma)
}

func (s *stubRepo) FindWordsByLevel(ctx context.Context, language string, level model.CEFRLevel) ([]*model.VocabularyEntry, error) {
	if s.findWordsByLevelFn == nil {
		return []*model.VocabularyEntry{}, nil
	}
	return s.findWordsByLevelFn(ctx, language, level)
}

func (s *stubRepo) GetUserKnowledge(ctx context.Context, userID, language, lemma string) (*model.UserWordKnowledge, error) {
	return nil, repository.ErrNotFound
}

func (s *stubRepo) GetUserKnowledgeBatch(ctx context.Context, userID, language string, lemmas []string) (map[string]*model.UserWordKnowledge, error) {
	return map[string]*model.UserWordKnowledge{}, nil
}

func (s *stubRepo) SetUserKnowledge(ctx context.Context, userID, language, lemma string, isKnown bool) error {
	if s.setUserKnowledgeFn == nil {
		return nil
	}
	return s.setUserKnowledgeFn(ctx, userID, language, lemma, isKnown)
}

// stubSegments — заглушка репозитория сегментов.
type stubSegments struct {
	segments []model.SubtitleSegment
}

func (s *stubSegments) ListByVideo(ctx context.Context, videoID string) ([]model.SubtitleSegment, error) {
	return s.segments, nil
}

// newTestRouter собирает полный API-роутер поверх заглушки репозитория.
func newTestRouter(t *testing.T, repo repository.VocabularyRepository, segments repository.SegmentRepository) chi.Router {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	backend := cache.NewMemoryBackend(100, time.Minute)
	stats := service.NewStatsCollector()
	gens := service.NewGenerationTracker()

	lookup := service.NewLookupService(repo, backend, gens, stats, service.LookupConfig{
		CacheTTL:          time.Minute,
		CacheTimeout:      200 * time.Millisecond,
		StoreTimeout:      time.Second,
		FlightWaitTimeout: time.Second,
	}, logger)
	invalidator := service.NewInvalidationManager(backend, gens, lookup, 200*time.Millisecond, 2, logger)
	knowledge := service.NewKnowledgeService(repo, invalidator, time.Second, logger)
	analyzer := service.NewBlockingWordAnalyzer(lookup, nil, logger)

	if segments == nil {
		segments = &stubSegments{}
	}

	handler := NewAPIHandler(
		lookup, knowledge, analyzer, invalidator, stats, segments,
		NewHealthHandler(nil, nil),
		AssessmentDefaults{Threshold: 0.2, Ceiling: model.LevelC2},
		logger,
	)

	router := chi.NewRouter()
	handler.Routes(router, nil)
	return router
}

func doRequest(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestGetWordInfoHandler(t *testing.T) {
	repo := &stubRepo{
		findWordFn: func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
			return &model.VocabularyEntry{
				Lemma: lemma, Language: language,
				Level: model.LevelB2, FrequencyRank: 4200,
			}, nil
		},
	}
	router := newTestRouter(t, repo, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/words/de/unergiebig", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}

	var resp wordResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if resp.Lemma != "unergiebig" || resp.Level != "B2" || resp.FrequencyRank != 4200 {
		t.Errorf("ответ: %+v", resp)
	}
}

func TestGetWordInfoHandlerNotFound(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/words/de/nibelungentreue", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("статус = %d, ожидался 404", rec.Code)
	}
}

func TestGetWordInfoHandlerValidation(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/words/deu/haus", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("статус = %d, ожидался 400", rec.Code)
	}
}

func TestGetWordsByLevelHandler(t *testing.T) {
	repo := &stubRepo{
		findWordsByLevelFn: func(ctx context.Context, language string, level model.CEFRLevel) ([]*model.VocabularyEntry, error) {
			return []*model.VocabularyEntry{
				{Lemma: "haus", Language: language, Level: level, FrequencyRank: 50},
				{Lemma: "baum", Language: language, Level: level, FrequencyRank: 120},
			}, nil
		},
	}
	router := newTestRouter(t, repo, nil)

	rec := doRequest(t, router, http.MethodGet, "/api/v1/levels/de/A1/words", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}

	var resp levelWordsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if resp.Total != 2 || len(resp.Words) != 2 {
		t.Errorf("ответ: %+v", resp)
	}

	// Некорректный уровень — 400
	rec = doRequest(t, router, http.MethodGet, "/api/v1/levels/de/Z9/words", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("некорректный уровень: статус = %d, ожидался 400", rec.Code)
	}
}

func TestSetUserKnowledgeHandler(t *testing.T) {
	var gotUser, gotLemma string
	var gotKnown bool
	repo := &stubRepo{
		setUserKnowledgeFn: func(ctx context.Context, userID, language, lemma string, isKnown bool) error {
			gotUser, gotLemma, gotKnown = userID, lemma, isKnown
			return nil
		},
	}
	router := newTestRouter(t, repo, nil)

	rec := doRequest(t, router, http.MethodPost,
		"/api/v1/words/de/haus/known?user_id=user-1", `{"known": true}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}
	if gotUser != "user-1" || gotLemma != "haus" || !gotKnown {
		t.Errorf("запись: user=%q lemma=%q known=%v", gotUser, gotLemma, gotKnown)
	}

	// Без пользователя — 400
	rec = doRequest(t, router, http.MethodPost, "/api/v1/words/de/haus/known", `{"known": true}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("без пользователя: статус = %d, ожидался 400", rec.Code)
	}

	// Битое тело — 400
	rec = doRequest(t, router, http.MethodPost, "/api/v1/words/de/haus/known?user_id=user-1", `{`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("битое тело: статус = %d, ожидался 400", rec.Code)
	}
}

func TestCacheStatsHandler(t *testing.T) {
	repo := &stubRepo{
		findWordFn: func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
			return &model.VocabularyEntry{Lemma: lemma, Language: language, Level: model.LevelA1, FrequencyRank: 1}, nil
		},
	}
	router := newTestRouter(t, repo, nil)

	// Промах + попадание
	doRequest(t, router, http.MethodGet, "/api/v1/words/de/haus", "")
	doRequest(t, router, http.MethodGet, "/api/v1/words/de/haus", "")

	rec := doRequest(t, router, http.MethodGet, "/api/v1/cache/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var stats service.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("stats: hits=%d misses=%d, ожидалось 1/1", stats.Hits, stats.Misses)
	}

	// Сброс
	rec = doRequest(t, router, http.MethodPost, "/api/v1/cache/stats/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: статус = %d, ожидался 200", rec.Code)
	}
	rec = doRequest(t, router, http.MethodGet, "/api/v1/cache/stats", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if stats.Hits != 0 || stats.Misses != 0 {
		t.Errorf("после сброса: hits=%d misses=%d, ожидалось 0/0", stats.Hits, stats.Misses)
	}
}

func TestAssessVideoHandler(t *testing.T) {
	repo := &stubRepo{
		findWordFn: func(ctx context.Context, language, lemma string) (*model.VocabularyEntry, error) {
			return &model.VocabularyEntry{Lemma: lemma, Language: language, Level: model.LevelB2, FrequencyRank: 9000}, nil
		},
	}
	segments := &stubSegments{
		segments: []model.SubtitleSegment{
			{Index: 0, Tokens: []string{"unergiebig"}},
		},
	}
	router := newTestRouter(t, repo, segments)

	const videoID = "7f9c24e5-1b3a-4d8e-9f21-aa40cb0c0000"

	rec := doRequest(t, router, http.MethodGet,
		"/api/v1/videos/"+videoID+"/blocking?language=de&user_id=user-1&threshold=0.5", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200; тело: %s", rec.Code, rec.Body.String())
	}

	var resp videoAssessmentResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if len(resp.Segments) != 1 || !resp.Segments[0].Blocked {
		t.Errorf("ответ: %+v", resp)
	}

	// Не-UUID идентификатор видео — 400
	rec = doRequest(t, router, http.MethodGet,
		"/api/v1/videos/not-a-uuid/blocking?language=de&user_id=user-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("не-UUID: статус = %d, ожидался 400", rec.Code)
	}

	// Порог вне диапазона — 400 (валидация сервисного слоя)
	rec = doRequest(t, router, http.MethodGet,
		"/api/v1/videos/"+videoID+"/blocking?language=de&user_id=user-1&threshold=1.5", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("порог 1.5: статус = %d, ожидался 400", rec.Code)
	}
}

func TestHealthLiveHandler(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, nil)

	rec := doRequest(t, router, http.MethodGet, "/health/live", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d, ожидался 200", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("некорректный JSON: %v", err)
	}
	if resp["service"] != "vocab-module" || resp["status"] != "ok" {
		t.Errorf("ответ: %v", resp)
	}
}

func TestHealthReadyWithoutCheckers(t *testing.T) {
	router := newTestRouter(t, &stubRepo{}, nil)

	// pgChecker == nil → fail → 503
	rec := doRequest(t, router, http.MethodGet, "/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("статус = %d, ожидался 503", rec.Code)
	}
}
