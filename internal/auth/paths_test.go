package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsPublicPath(t *testing.T) {
	t.Parallel()

	public := []string{"/health", "/readiness", "docs"}

	tests := []struct {
		name        string
		path        string
		publicPaths []string
		want        bool
	}{
		{"exact match", "/health", public, true},
		{"nested path", "/docs/records", public, true},
		{"relative public path", "/docs", public, true},
		{"protected path", "/api/v1/records/abc/promote", public, false},
		{"nil public paths", "/health", nil, false},
		{"segment boundary", "/healthz", public, false},
		{"trailing slash", "/readiness/", public, true},
		{"traversal out of public path", "/health/../api/v1/records/abc", public, false},
		{"traversal within public path", "/docs/a/../b", public, true},
		{"encoded slash", "/docs/..%2F..%2Fapi/v1/records", public, false},
		{"encoded dot", "/docs/%2e%2e/api", public, false},
		{"double slash", "//health", public, true},
		{"case sensitive", "/HEALTH", public, false},
		{"root makes everything public", "/api/v1/records/abc", []string{"/"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsPublicPath(tt.path, tt.publicPaths))
		})
	}
}

func TestWrapWithPublicPaths(t *testing.T) {
	t.Parallel()

	deny := func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
	}
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := WrapWithPublicPaths(deny, DefaultPublicPaths)(ok)

	for path, want := range map[string]int{
		"/health":                    http.StatusOK,
		"/readiness":                 http.StatusOK,
		"/version":                   http.StatusOK,
		"/api/v1/records/x":          http.StatusUnauthorized,
		"/api/v1/records/x/promote":  http.StatusUnauthorized,
		"/version/../api/v1/records": http.StatusUnauthorized,
	} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, want, rec.Code, path)
	}
}
