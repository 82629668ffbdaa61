package httpclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/contract-promoter/internal/httpclient"
)

// newTestServer creates a new test server with keep-alives disabled.
// This prevents flaky tests when running in parallel, as closing a server
// with keep-alives enabled can affect other tests sharing the HTTP transport.
func newTestServer(handler http.Handler) *httptest.Server {
	server := httptest.NewServer(handler)
	server.Config.SetKeepAlivesEnabled(false)
	return server
}

func TestDefaultClient_Do(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		method     string
		header     http.Header
		body       []byte
		status     int
		respBody   string
		respHeader map[string]string
	}{
		{
			name:     "get with accept header",
			method:   http.MethodGet,
			header:   http.Header{"Accept": {"application/vnd.oci.image.manifest.v1+json"}},
			status:   http.StatusOK,
			respBody: `{"schemaVersion":2}`,
			respHeader: map[string]string{
				"Content-Type": "application/vnd.oci.image.manifest.v1+json",
			},
		},
		{
			name:   "put with body",
			method: http.MethodPut,
			header: http.Header{"Content-Type": {"application/json"}},
			body:   []byte(`{"schemaVersion":2}`),
			status: http.StatusCreated,
		},
		{
			name:   "non 2xx status is returned, not an error",
			method: http.MethodPut,
			status: http.StatusUnauthorized,
			respHeader: map[string]string{
				"Www-Authenticate": `Bearer realm="https://auth.example/token"`,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotMethod, gotUserAgent string
			var gotHeader http.Header
			var gotBody []byte
			server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				gotUserAgent = r.Header.Get("User-Agent")
				gotHeader = r.Header.Clone()
				gotBody, _ = io.ReadAll(r.Body)
				for k, v := range tt.respHeader {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.respBody))
			}))
			defer server.Close()

			client := httpclient.NewDefaultClient(5 * time.Second)
			resp, err := client.Do(context.Background(), &httpclient.Request{
				Method: tt.method,
				URL:    server.URL,
				Header: tt.header,
				Body:   tt.body,
			})
			require.NoError(t, err)

			assert.Equal(t, tt.method, gotMethod)
			assert.Equal(t, httpclient.UserAgent, gotUserAgent)
			for k := range tt.header {
				assert.Equal(t, tt.header.Get(k), gotHeader.Get(k))
			}
			if tt.body != nil {
				assert.Equal(t, tt.body, gotBody)
			}
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.respBody, string(resp.Body))
			for k, v := range tt.respHeader {
				assert.Equal(t, v, resp.Header.Get(k))
			}
		})
	}
}

func TestDefaultClient_Do_NetworkErrors(t *testing.T) {
	t.Parallel()

	client := httpclient.NewDefaultClient(time.Second)

	_, err := client.Do(context.Background(), &httpclient.Request{Method: http.MethodGet, URL: "http://127.0.0.1:1/unreachable"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute request")

	_, err = client.Do(context.Background(), &httpclient.Request{Method: "BAD METHOD", URL: "http://example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create request")
}

func TestDefaultClient_Do_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	defer close(release)

	client := httpclient.NewDefaultClient(50 * time.Millisecond)
	_, err := client.Do(context.Background(), &httpclient.Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)
}

func TestDefaultClient_Do_ContextCancellation(t *testing.T) {
	t.Parallel()

	server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := httpclient.NewDefaultClient(5 * time.Second)
	_, err := client.Do(ctx, &httpclient.Request{Method: http.MethodGet, URL: server.URL})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDefaultClient_Do_SizeLimitExceeded(t *testing.T) {
	t.Parallel()

	payload := strings.Repeat("x", 2048)

	t.Run("declared content length", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(payload))
		}))
		defer server.Close()

		client := httpclient.NewDefaultClient(5*time.Second, httpclient.WithMaxResponseSize(1024))
		_, err := client.Do(context.Background(), &httpclient.Request{Method: http.MethodGet, URL: server.URL})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum allowed size")
	})

	t.Run("chunked body", func(t *testing.T) {
		t.Parallel()

		server := newTestServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			for i := 0; i < len(payload); i += 256 {
				_, _ = w.Write([]byte(payload[i : i+256]))
				w.(http.Flusher).Flush()
			}
		}))
		defer server.Close()

		client := httpclient.NewDefaultClient(5*time.Second, httpclient.WithMaxResponseSize(1024))
		_, err := client.Do(context.Background(), &httpclient.Request{Method: http.MethodGet, URL: server.URL})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum allowed size")
	})
}

func TestExpectStatus(t *testing.T) {
	t.Parallel()

	resp := &httpclient.Response{StatusCode: http.StatusCreated, Status: "201 Created"}
	require.NoError(t, httpclient.ExpectStatus(resp, "http://example.com", http.StatusOK, http.StatusCreated))

	err := httpclient.ExpectStatus(resp, "http://example.com", http.StatusOK)
	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusCreated, httpErr.StatusCode)
}
