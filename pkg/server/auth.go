package server

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"mercator-hq/cadence/pkg/config"
)

// APIKeyHeader is the alternative to "Authorization: Bearer <key>".
const APIKeyHeader = "X-API-Key"

// Authentication error.
const (
	ErrorTypeAuthentication = "authentication_error"
	CodeInvalidAPIKey       = "invalid_api_key"
)

type operatorKey struct{}

// Operator returns the authenticated operator for the request, if any.
func Operator(ctx context.Context) (string, bool) {
	op, ok := ctx.Value(operatorKey{}).(string)
	return op, ok
}

// keyring holds the enabled operator keys.
type keyring struct {
	keys []config.APIKeyConfig
}

func newKeyring(cfg config.AuthConfig) *keyring {
	kr := &keyring{}
	for _, k := range cfg.Keys {
		if !k.Disabled && k.Key != "" {
			kr.keys = append(kr.keys, k)
		}
	}
	return kr
}

// lookup returns the operator owning presented. Every key is compared.
func (kr *keyring) lookup(presented string) (string, bool) {
	operator, found := "", false
	for _, k := range kr.keys {
		if subtle.ConstantTimeCompare([]byte(k.Key), []byte(presented)) == 1 {
			operator, found = k.Operator, true
		}
	}
	return operator, found
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if scheme, key, ok := strings.Cut(auth, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(key)
		}
	}
	return r.Header.Get(APIKeyHeader)
}

// authMiddleware requires a valid key on /v1 routes. Health, version and
// metrics endpoints are not authenticated.
func authMiddleware(kr *keyring) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, ErrorTypeAuthentication, CodeInvalidAPIKey, "missing API key")
				return
			}
			operator, ok := kr.lookup(key)
			if !ok {
				slog.WarnContext(r.Context(), "rejected API key",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
				)
				writeError(w, http.StatusUnauthorized, ErrorTypeAuthentication, CodeInvalidAPIKey, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
