package auth

import (
	"net/http"
	"path"
	"strings"
)

// DefaultPublicPaths are reachable without a session: the probes and the
// build information.
var DefaultPublicPaths = []string{"/health", "/readiness", "/version"}

// IsPublicPath reports whether requestPath falls under one of publicPaths.
//
// Matching works on cleaned, segment-aligned paths: "/health" covers
// "/health" and "/health/live" but not "/healthz", and "/health/../api" is
// not public. Paths carrying an encoded "/" or "." never match.
func IsPublicPath(requestPath string, publicPaths []string) bool {
	lower := strings.ToLower(requestPath)
	if strings.Contains(lower, "%2f") || strings.Contains(lower, "%2e") {
		return false
	}

	clean := rooted(requestPath)
	for _, p := range publicPaths {
		public := rooted(p)
		if public == "/" || clean == public || strings.HasPrefix(clean, public+"/") {
			return true
		}
	}
	return false
}

func rooted(p string) string {
	p = path.Clean(p)
	if !strings.HasPrefix(p, "/") {
		return "/" + p
	}
	return p
}

// WrapWithPublicPaths applies authMw to every request except those whose
// path is public.
func WrapWithPublicPaths(
	authMw func(http.Handler) http.Handler,
	publicPaths []string,
) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := authMw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if IsPublicPath(r.URL.Path, publicPaths) {
				next.ServeHTTP(w, r)
				return
			}
			protected.ServeHTTP(w, r)
		})
	}
}
