package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
)

// APIKeyAuth validates the static service API key carried in a request
// header. The comparison is constant-time so the key cannot be probed
// byte by byte.
type APIKeyAuth struct {
	header string
	key    []byte
	logger *slog.Logger
}

// NewAPIKeyAuth creates the authentication middleware. header defaults to
// "API-Key", the name the original deployment used.
func NewAPIKeyAuth(header, key string, logger *slog.Logger) *APIKeyAuth {
	if header == "" {
		header = "API-Key"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &APIKeyAuth{
		header: header,
		key:    []byte(key),
		logger: logger,
	}
}

// Authenticate rejects requests whose key header does not match.
func (m *APIKeyAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented := r.Header.Get(m.header)
		if presented == "" {
			writeUnauthorized(w, "Missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented), m.key) != 1 {
			m.logger.Debug("API key validation failed", "remote_addr", r.RemoteAddr)
			writeUnauthorized(w, "Invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"code":"unauthorized","message":"` + message + `"}`))
}
