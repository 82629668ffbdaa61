// Package httpclient provides a bounded HTTP client for calls to remote
// registries and their token services.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 5 * time.Second

	// MaxResponseSize is the default maximum response size (16MB). Manifests
	// and token responses are far smaller.
	MaxResponseSize = 16 * 1024 * 1024

	// UserAgent is the user agent string for HTTP requests
	UserAgent = "contract-promoter/1.0"
)

// Request describes a single HTTP call
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Status     string
	Header     http.Header
	Body       []byte
}

// Client is an interface for HTTP operations
type Client interface {
	// Do performs the request and returns the response whatever its status code
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Option is a functional option for configuring the default client
type Option func(*DefaultClient)

// WithMaxResponseSize overrides the response size limit
func WithMaxResponseSize(size int64) Option {
	return func(c *DefaultClient) {
		if size > 0 {
			c.maxResponseSize = size
		}
	}
}

// WithTLSConfig sets the TLS configuration of the underlying transport
func WithTLSConfig(cfg *tls.Config) Option {
	return func(c *DefaultClient) {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = cfg
		c.client.Transport = transport
	}
}

// DefaultClient is the default HTTP client implementation
type DefaultClient struct {
	client          *http.Client
	timeout         time.Duration
	maxResponseSize int64
}

// NewDefaultClient creates a new default HTTP client with the specified timeout.
// If timeout is 0, uses DefaultTimeout.
func NewDefaultClient(timeout time.Duration, opts ...Option) Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	c := &DefaultClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout:         timeout,
		maxResponseSize: MaxResponseSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do performs an HTTP request and reads the whole response body
func (c *DefaultClient) Do(ctx context.Context, r *Request) (*Response, error) {
	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, values := range r.Header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.ContentLength > c.maxResponseSize {
		return nil, fmt.Errorf("response size %d bytes exceeds maximum allowed size of %d bytes",
			resp.ContentLength, c.maxResponseSize)
	}

	// +1 to detect if limit exceeded
	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > c.maxResponseSize {
		return nil, fmt.Errorf("response size exceeds maximum allowed size of %d bytes", c.maxResponseSize)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// ExpectStatus returns an *HTTPError unless resp carries one of the given
// status codes.
func ExpectStatus(resp *Response, url string, codes ...int) error {
	if slices.Contains(codes, resp.StatusCode) {
		return nil
	}
	return NewHTTPError(resp.StatusCode, url, resp.Status)
}
