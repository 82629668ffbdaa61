// Package registrytest provides an in-process fake of an OCI registry and its
// token service for tests. Manifests are kept in memory; bearer tokens are
// HS256 JWTs issued by the fake itself.
package registrytest

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/opencontainers/go-digest"
)

const (
	// Service is the service name announced in challenges
	Service = "fake-registry"

	tokenPath = "/token"
)

// Manifest is a stored manifest
type Manifest struct {
	MediaType string
	Body      []byte
}

// Request is a request observed by the fake
type Request struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// Server is a fake registry
type Server struct {
	*httptest.Server

	secret []byte

	mu              sync.Mutex
	manifests       map[string]Manifest
	requests        []Request
	credentials     map[string]string
	challengeStatus int
	challenge       *string
	omitToken       bool
	wrongDigest     bool
	omitContentType bool
}

// Option configures the fake
type Option func(*Server)

// WithCredentials only accepts the given username and password at the token
// endpoint. Without it every credential is accepted.
func WithCredentials(username, password string) Option {
	return func(s *Server) {
		s.credentials[username] = password
	}
}

// WithChallengeStatus makes the unauthenticated probe answer with status
// instead of 401
func WithChallengeStatus(status int) Option {
	return func(s *Server) {
		s.challengeStatus = status
	}
}

// WithChallenge overrides the Www-Authenticate header value. An empty value
// omits the header.
func WithChallenge(header string) Option {
	return func(s *Server) {
		s.challenge = &header
	}
}

// WithoutToken makes the token endpoint answer with a body lacking a token
func WithoutToken() Option {
	return func(s *Server) {
		s.omitToken = true
	}
}

// WithWrongDigest announces a digest that does not match served manifests
func WithWrongDigest() Option {
	return func(s *Server) {
		s.wrongDigest = true
	}
}

// WithoutContentType serves manifests without a Content-Type header
func WithoutContentType() Option {
	return func(s *Server) {
		s.omitContentType = true
	}
}

// NewServer starts a fake registry. Callers must Close it.
func NewServer(opts ...Option) *Server {
	s := &Server{
		secret:          []byte("registrytest-secret"),
		manifests:       make(map[string]Manifest),
		credentials:     make(map[string]string),
		challengeStatus: http.StatusUnauthorized,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	s.Config.SetKeepAlivesEnabled(false)
	return s
}

// Host returns host:port of the fake, suitable for an insecure client
func (s *Server) Host() string {
	return strings.TrimPrefix(s.URL, "http://")
}

// PutManifest stores a manifest under repository:reference
func (s *Server) PutManifest(repository, reference string, m Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[repository+":"+reference] = m
}

// GetManifest returns the manifest stored under repository:reference
func (s *Server) GetManifest(repository, reference string) (Manifest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.manifests[repository+":"+reference]
	return m, ok
}

// Requests returns every request observed so far
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Token issues a bearer token the fake accepts
func (s *Server) Token(subject string) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    Service,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	s.mu.Unlock()

	if r.URL.Path == tokenPath {
		s.serveToken(w, r)
		return
	}

	repository, reference, ok := parseManifestPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if !s.authorized(r) {
		s.writeChallenge(w, repository)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.serveGet(w, repository, reference)
	case http.MethodPut:
		s.servePut(w, r, repository, reference, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) writeChallenge(w http.ResponseWriter, repository string) {
	s.mu.Lock()
	status, override := s.challengeStatus, s.challenge
	s.mu.Unlock()

	header := fmt.Sprintf(`Bearer realm="%s%s",service="%s",scope="repository:%s:pull,push"`,
		s.URL, tokenPath, Service, repository)
	if override != nil {
		header = *override
	}
	if header != "" {
		w.Header().Set("Www-Authenticate", header)
	}
	w.WriteHeader(status)
}

func (s *Server) authorized(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "bearer ")
	if !ok {
		raw, ok = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if !ok {
		return false
	}
	_, err := jwt.ParseWithClaims(raw, &jwt.RegisteredClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Service))
	return err == nil
}

func (s *Server) serveToken(w http.ResponseWriter, r *http.Request) {
	username, password, ok := basicAuth(r.Header.Get("Authorization"))
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	want, restricted := s.credentials[username]
	anyCredentials := len(s.credentials) == 0
	omitToken := s.omitToken
	s.mu.Unlock()

	if !anyCredentials && (!restricted || want != password) {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if omitToken {
		_ = json.NewEncoder(w).Encode(map[string]any{"expires_in": 300})
		return
	}
	token, err := s.Token(username)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"token": token, "expires_in": 300})
}

func (s *Server) serveGet(w http.ResponseWriter, repository, reference string) {
	m, ok := s.GetManifest(repository, reference)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	s.mu.Lock()
	wrongDigest, omitContentType := s.wrongDigest, s.omitContentType
	s.mu.Unlock()

	d := digest.FromBytes(m.Body)
	if wrongDigest {
		d = digest.FromString("something else")
	}
	if omitContentType {
		// nil suppresses content sniffing
		w.Header()["Content-Type"] = nil
	} else {
		w.Header().Set("Content-Type", m.MediaType)
	}
	w.Header().Set("Docker-Content-Digest", d.String())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(m.Body)
}

func (s *Server) servePut(w http.ResponseWriter, r *http.Request, repository, reference string, body []byte) {
	s.PutManifest(repository, reference, Manifest{
		MediaType: r.Header.Get("Content-Type"),
		Body:      body,
	})
	w.Header().Set("Docker-Content-Digest", digest.FromBytes(body).String())
	w.WriteHeader(http.StatusCreated)
}

func parseManifestPath(path string) (repository, reference string, ok bool) {
	rest, ok := strings.CutPrefix(path, "/v2/")
	if !ok {
		return "", "", false
	}
	repository, reference, ok = strings.Cut(rest, "/manifests/")
	if !ok || repository == "" || reference == "" {
		return "", "", false
	}
	return repository, reference, true
}

func basicAuth(header string) (username, password string, ok bool) {
	raw, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}
