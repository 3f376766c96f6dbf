// metrics.go — Prometheus HTTP метрики для Vocab Module.
// Регистрирует метрики: vm_http_requests_total, vm_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности
// (леммы и идентификаторы видео в лейблы не попадают).
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Vocab Module
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Vocab Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Vocab Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// normalizePath заменяет динамические сегменты пути на плейсхолдеры
// для предотвращения взрывного роста кардинальности метрик:
// /api/v1/words/de/unergiebig → /api/v1/words/{language}/{lemma}
// /api/v1/videos/a1b2.../blocking → /api/v1/videos/{id}/blocking
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/cache/stats", "/api/v1/cache/stats/reset", "/api/v1/cache/invalidate":
		return path
	}

	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	// Ожидаемая структура: api/v1/<resource>/...
	if len(parts) < 4 || parts[0] != "api" || parts[1] != "v1" {
		return path
	}

	switch parts[2] {
	case "words":
		// api/v1/words/{language}/{lemma}[/knowledge|/known]
		switch {
		case len(parts) == 6 && parts[5] == "knowledge":
			return "/api/v1/words/{language}/{lemma}/knowledge"
		case len(parts) == 6 && parts[5] == "known":
			return "/api/v1/words/{language}/{lemma}/known"
		case len(parts) == 5:
			return "/api/v1/words/{language}/{lemma}"
		}
	case "levels":
		// api/v1/levels/{language}/{level}/words
		if len(parts) == 6 && parts[5] == "words" {
			return "/api/v1/levels/{language}/{level}/words"
		}
	case "videos":
		// api/v1/videos/{id}/blocking
		if len(parts) == 5 && parts[4] == "blocking" {
			return "/api/v1/videos/{id}/blocking"
		}
	}

	return path
}
