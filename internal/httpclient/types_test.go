package httpclient_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/contract-promoter/internal/httpclient"
)

func TestHTTPError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		statusCode    int
		url           string
		message       string
		expectedError string
	}{
		{
			name:          "unauthorized manifest put",
			statusCode:    401,
			url:           "https://registry.example/v2/card-x/manifests/1.0.2-beta1",
			message:       "401 Unauthorized",
			expectedError: "HTTP 401 for URL https://registry.example/v2/card-x/manifests/1.0.2-beta1: 401 Unauthorized",
		},
		{
			name:          "server error",
			statusCode:    500,
			url:           "http://registry.local:5000/v2/_catalog",
			message:       "Internal Server Error",
			expectedError: "HTTP 500 for URL http://registry.local:5000/v2/_catalog: Internal Server Error",
		},
		{
			name:          "empty message",
			statusCode:    404,
			url:           "http://example.com",
			expectedError: "HTTP 404 for URL http://example.com: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := httpclient.NewHTTPError(tt.statusCode, tt.url, tt.message)
			require.Error(t, err)
			assert.Equal(t, tt.expectedError, err.Error())
		})
	}
}

func TestHTTPError_As(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("registry call failed: %w", httpclient.NewHTTPError(403, "http://example.com", "Forbidden"))

	var httpErr *httpclient.HTTPError
	require.True(t, errors.As(wrapped, &httpErr))
	assert.Equal(t, 403, httpErr.StatusCode)
	assert.Equal(t, "http://example.com", httpErr.URL)
}
