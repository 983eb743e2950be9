package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kiranshivaraju/equiplens/internal/api/response"
	"github.com/kiranshivaraju/equiplens/internal/apikey"
	"github.com/kiranshivaraju/equiplens/internal/store"
	"github.com/kiranshivaraju/equiplens/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

// KeyPrefixLen is the number of leading characters of a raw key stored
// in clear for lookup.
const KeyPrefixLen = apikey.PrefixLen

var (
	errNoToken     = errors.New("missing or invalid Authorization header")
	errKeyFormat   = errors.New("invalid API key format")
	errKeyMismatch = errors.New("invalid API key")
)

// Auth provides authentication and scope-checking middleware.
type Auth struct {
	store store.Store
}

// NewAuth creates a new Auth middleware.
func NewAuth(s store.Store) *Auth {
	return &Auth{store: s}
}

// Authenticate validates the Bearer token, looks up the API key and binds
// its Principal to the request context.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := a.resolve(r)
		switch {
		case errors.Is(err, errNoToken), errors.Is(err, errKeyFormat), errors.Is(err, errKeyMismatch):
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", upperFirst(err.Error()), nil)
			return
		case err != nil:
			response.Error(w, http.StatusInternalServerError,
				"INTERNAL_ERROR", "Failed to validate API key", nil)
			return
		}

		next.ServeHTTP(w, r.WithContext(a.bind(r.Context(), key)))
	})
}

// Identify sets the owner when a valid key is presented and lets anonymous
// requests through unchanged.
func (a *Auth) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := a.resolve(r)
		if err != nil {
			if !errors.Is(err, errNoToken) {
				slog.Debug("ignoring unusable credentials", "path", r.URL.Path, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(a.bind(r.Context(), key)))
	})
}

// RequireScope returns middleware that checks whether the authenticated
// API key has the specified scope.
func (a *Auth) RequireScope(scope string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := PrincipalFrom(r); ok && p.HasScope(scope) {
				next.ServeHTTP(w, r)
				return
			}
			response.Error(w, http.StatusForbidden,
				"FORBIDDEN", "Insufficient permissions", nil)
		})
	}
}

func (a *Auth) resolve(r *http.Request) (*models.APIKey, error) {
	rawKey := extractBearerToken(r)
	if rawKey == "" {
		return nil, errNoToken
	}
	if len(rawKey) < KeyPrefixLen {
		return nil, errKeyFormat
	}

	keys, err := a.store.GetAPIKeyByPrefix(r.Context(), rawKey[:KeyPrefixLen])
	if err != nil {
		return nil, err
	}

	// Find matching key by bcrypt comparison
	for _, key := range keys {
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
			// Update last_used_at async
			go a.store.UpdateAPIKeyLastUsed(context.Background(), key.ID)
			return key, nil
		}
	}
	return nil, errKeyMismatch
}

func (a *Auth) bind(ctx context.Context, key *models.APIKey) context.Context {
	return WithPrincipal(ctx, Principal{
		OwnerID:   key.OwnerID,
		KeyPrefix: key.KeyPrefix,
		Scopes:    key.Scopes,
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func upperFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
