// logging.go — slog-логирование HTTP-запросов Vocab Module.
// Фиксирует метод, нормализуемый роутером путь, статус, длительность
// и объём ответа. Клиентские ошибки пишутся как WARN, серверные — ERROR:
// 4xx на lookup-путях обычно означает опечатку клиента, не инцидент.
package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

// loggingResponseWriter перехватывает статус-код и объём записанного ответа.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (lw *loggingResponseWriter) WriteHeader(code int) {
	lw.statusCode = code
	lw.ResponseWriter.WriteHeader(code)
}

func (lw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lw.ResponseWriter.Write(b)
	lw.written += int64(n)
	return n, err
}

// Unwrap позволяет http.ResponseController добраться до исходного ResponseWriter.
func (lw *loggingResponseWriter) Unwrap() http.ResponseWriter {
	return lw.ResponseWriter
}

// statusLevel выбирает уровень логирования по статус-коду ответа.
func statusLevel(statusCode int) slog.Level {
	switch {
	case statusCode >= 500:
		return slog.LevelError
	case statusCode >= 400:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// RequestLogger возвращает middleware, логирующий каждый запрос к API.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With(slog.String("component", "http"))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			log.LogAttrs(r.Context(), statusLevel(wrapped.statusCode), "HTTP запрос",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.Int64("bytes", wrapped.written),
				slog.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
