package registry

import (
	"errors"
	"fmt"

	"github.com/stacklok/contract-promoter/internal/httpclient"
)

var (
	// ErrProtocol is returned when the registry does not follow the
	// challenge, manifest or retag exchange
	ErrProtocol = errors.New("registry protocol error")
	// ErrAuth is returned when the token service rejects the credentials or
	// answers without a token
	ErrAuth = errors.New("registry authentication failed")
	// ErrChallengeParse is returned when a Www-Authenticate challenge lacks one
	// of realm, service or scope. It is a protocol error.
	ErrChallengeParse = fmt.Errorf("%w: malformed authentication challenge", ErrProtocol)
)

// Error kinds reported in CommunicationError.Cause
const (
	KindProtocol  = "protocol"
	KindAuth      = "auth"
	KindTransport = "transport"
)

// CommunicationError wraps every failure of a registry exchange. Cause is a
// plain mapping that can be serialized as is; the underlying error stays
// reachable through errors.Is and errors.As.
type CommunicationError struct {
	Host     string
	Insecure bool
	Cause    map[string]any

	err error
}

// Error implements the error interface
func (e *CommunicationError) Error() string {
	return fmt.Sprintf("communication with registry %s failed: %v", e.Host, e.err)
}

// Unwrap returns the underlying error
func (e *CommunicationError) Unwrap() error {
	return e.err
}

func newCommunicationError(host string, insecure bool, step string, err error) *CommunicationError {
	cause := map[string]any{
		"message": err.Error(),
		"step":    step,
		"kind":    errorKind(err),
	}
	var httpErr *httpclient.HTTPError
	if errors.As(err, &httpErr) {
		cause["status"] = httpErr.StatusCode
		cause["url"] = httpErr.URL
	}
	return &CommunicationError{
		Host:     host,
		Insecure: insecure,
		Cause:    cause,
		err:      err,
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrProtocol):
		return KindProtocol
	default:
		return KindTransport
	}
}
