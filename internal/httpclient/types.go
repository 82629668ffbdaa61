package httpclient

import "fmt"

// HTTPError is returned when a server answers with an unexpected status code
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

// NewHTTPError creates an HTTPError
func NewHTTPError(statusCode int, url, message string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		URL:        url,
		Message:    message,
	}
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d for URL %s: %s", e.StatusCode, e.URL, e.Message)
}
