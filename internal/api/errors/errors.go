// Пакет errors — единый формат ошибок HTTP API Vocab Module.
// Все ошибки отдаются JSON-конвертом {"error": {"code", "message"}}.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeStoreUnavailable   = "STORE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// errorBody — тело ошибки.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorResponse — JSON-конверт ошибки.
type errorResponse struct {
	Error errorBody `json:"error"`
}

// WriteError записывает JSON-ошибку с указанным статусом и кодом.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error: errorBody{Code: code, Message: message},
	})
}

// ValidationError — 400 Bad Request.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 Not Found.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized — 401 Unauthorized.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// Forbidden — 403 Forbidden.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// StoreUnavailable — 503 Service Unavailable (хранилище недоступно, ретраябельно).
func StoreUnavailable(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, message)
}

// InternalError — 500 Internal Server Error.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
