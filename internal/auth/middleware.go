// Package auth resolves the session token presented by API callers into the
// actor the request acts on behalf of.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/store"
)

// RFC 6750 Section 3 error codes
const (
	// errorCodeInvalidRequest indicates a missing or malformed Authorization header
	errorCodeInvalidRequest = "invalid_request"

	// errorCodeInvalidToken indicates an unknown or expired session
	errorCodeInvalidToken = "invalid_token"
)

const defaultRealm = "contract-promoter"

var (
	errMissingToken   = errors.New("missing authorization header")
	errMalformedToken = errors.New("authorization header is not a bearer token")
	errInvalidSession = errors.New("session is unknown or expired")
)

//go:generate mockgen -destination=mocks/mock_resolver.go -package=mocks -source=middleware.go SessionResolver

// SessionResolver looks up session records. store.Store satisfies it.
type SessionResolver interface {
	GetRecord(ctx context.Context, session, id string) (*record.Record, error)
}

// sessionMiddleware authenticates requests with a session token
type sessionMiddleware struct {
	resolver SessionResolver
	realm    string
	now      func() time.Time
}

func newSessionMiddleware(resolver SessionResolver, realm string) (*sessionMiddleware, error) {
	if resolver == nil {
		return nil, errors.New("session resolver is required")
	}
	if realm == "" {
		realm = defaultRealm
	}
	return &sessionMiddleware{
		resolver: resolver,
		realm:    realm,
		now:      time.Now,
	}, nil
}

// Middleware returns an HTTP middleware that rejects requests without a
// valid session and stores the resolved Caller in the request context.
func (m *sessionMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			slog.WarnContext(r.Context(), "Token extraction failed",
				"error", err,
				"remote_addr", r.RemoteAddr,
				"path", r.URL.Path)
			m.writeError(w, errorCodeInvalidRequest, "missing or malformed authorization header")
			return
		}

		caller, err := m.resolve(r.Context(), token)
		if err != nil {
			if errors.Is(err, errInvalidSession) {
				slog.WarnContext(r.Context(), "Session rejected",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				m.writeError(w, errorCodeInvalidToken, "session is unknown or expired")
				return
			}
			slog.ErrorContext(r.Context(), "Session lookup failed", "error", err)
			writeJSONError(w, http.StatusInternalServerError, "failed to resolve session")
			return
		}

		slog.DebugContext(r.Context(), "Authentication successful",
			"actor", caller.Actor,
			"path", r.URL.Path)
		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

func (m *sessionMiddleware) resolve(ctx context.Context, token string) (Caller, error) {
	rec, err := m.resolver.GetRecord(ctx, token, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Caller{}, errInvalidSession
		}
		return Caller{}, fmt.Errorf("failed to load session: %w", err)
	}
	actor, ok := store.SessionActor(rec, m.now())
	if !ok {
		return Caller{}, errInvalidSession
	}
	return Caller{Session: token, Actor: actor}, nil
}

// bearerToken extracts the token from an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", errMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", errMalformedToken
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errMalformedToken
	}
	return token, nil
}

// sanitizeHeaderValue strips CR and LF and escapes quotes so s can be placed
// in a quoted-string header parameter.
func sanitizeHeaderValue(s string) string {
	if !strings.ContainsAny(s, "\r\n\"") {
		return s
	}
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.ReplaceAll(s, `"`, `\"`)
}

// writeError writes a 401 with an RFC 6750 Www-Authenticate challenge
func (m *sessionMiddleware) writeError(w http.ResponseWriter, errCode, description string) {
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Bearer realm="%s", error="%s", error_description="%s"`,
		sanitizeHeaderValue(m.realm), errCode, sanitizeHeaderValue(description)))
	writeJSONError(w, http.StatusUnauthorized, description)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}
