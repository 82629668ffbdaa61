package auth

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stacklok/contract-promoter/internal/config"
)

// NewAuthMiddleware creates the authentication middleware selected by cfg.
// A nil cfg selects session mode. Public paths, including
// DefaultPublicPaths, bypass the middleware.
func NewAuthMiddleware(cfg *config.AuthConfig, resolver SessionResolver) (func(http.Handler) http.Handler, error) {
	var (
		mw          func(http.Handler) http.Handler
		realm       string
		publicPaths = append([]string{}, DefaultPublicPaths...)
	)
	if cfg != nil {
		realm = cfg.Realm
		publicPaths = append(publicPaths, cfg.PublicPaths...)
	}

	switch mode := cfg.GetMode(); mode {
	case config.AuthModeSession:
		m, err := newSessionMiddleware(resolver, realm)
		if err != nil {
			return nil, fmt.Errorf("failed to create session middleware: %w", err)
		}
		slog.Info("auth: session mode", "public_paths", publicPaths)
		mw = m.Middleware
	case config.AuthModeAnonymous:
		if cfg.AnonymousActor == "" {
			return nil, fmt.Errorf("anonymous actor is required in %s mode", mode)
		}
		slog.Warn("auth: anonymous mode, all requests act as a fixed actor", "actor", cfg.AnonymousActor)
		mw = anonymousMiddleware(cfg.AnonymousActor)
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", mode)
	}

	return WrapWithPublicPaths(mw, publicPaths), nil
}

// anonymousMiddleware attributes every request to actor without a session
func anonymousMiddleware(actor string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), Caller{Actor: actor})))
		})
	}
}
