package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusLevel(t *testing.T) {
	cases := []struct {
		status int
		want   slog.Level
	}{
		{http.StatusOK, slog.LevelInfo},
		{http.StatusNotModified, slog.LevelInfo},
		{http.StatusBadRequest, slog.LevelWarn},
		{http.StatusNotFound, slog.LevelWarn},
		{http.StatusInternalServerError, slog.LevelError},
		{http.StatusServiceUnavailable, slog.LevelError},
	}

	for _, tc := range cases {
		if got := statusLevel(tc.status); got != tc.want {
			t.Errorf("statusLevel(%d) = %v, ожидалось %v", tc.status, got, tc.want)
		}
	}
}

func TestRequestLoggerCapturesStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{}}`))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/words/de/haus", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("некорректная JSON-запись лога: %v", err)
	}
	if record["level"] != "WARN" {
		t.Errorf("level = %v, ожидался WARN для 404", record["level"])
	}
	if record["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v, ожидалось 404", record["status"])
	}
	if record["bytes"] != float64(12) {
		t.Errorf("bytes = %v, ожидалось 12", record["bytes"])
	}
	if record["method"] != http.MethodGet {
		t.Errorf("method = %v, ожидался GET", record["method"])
	}
}
