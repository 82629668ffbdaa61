// Package registry implements the OCI/Docker Registry HTTP API v2 exchanges
// needed to move a manifest reference: the bearer challenge and token
// handshake, and the manifest get/put retag.
package registry

import (
	"context"
	_ "crypto/sha256" // Registers sha256 for digest verification
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-containerregistry/pkg/v1/types"
	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/contract-promoter/internal/httpclient"
	"github.com/stacklok/contract-promoter/internal/otel"
	"github.com/stacklok/contract-promoter/internal/record"
)

const (
	// ClientTracerName is the name used for the registry client tracer
	ClientTracerName = "github.com/stacklok/contract-promoter/registry"

	// DefaultTimeout bounds every single registry call
	DefaultTimeout = 5 * time.Second

	headerAuthenticate  = "Www-Authenticate"
	headerContentDigest = "Docker-Content-Digest"
)

// Exchange steps reported in CommunicationError.Cause
const (
	stepChallenge = "challenge"
	stepToken     = "token"
	stepGet       = "get-manifest"
	stepPut       = "put-manifest"
)

// acceptedManifestTypes are the single-platform manifest media types the
// client asks for. Manifest lists are not supported.
var acceptedManifestTypes = []string{
	string(types.DockerManifestSchema2),
	ocispec.MediaTypeImageManifest,
}

// Config configures the registry client
type Config struct {
	// Host is the registry host, optionally with a port
	Host string
	// Insecure selects plain http instead of https
	Insecure bool
	// Timeout bounds each registry call, DefaultTimeout if zero
	Timeout time.Duration
}

// Option is a functional option for configuring the client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for registry calls
func WithHTTPClient(c httpclient.Client) Option {
	return func(rc *Client) {
		rc.http = c
	}
}

// WithTracer sets the OpenTelemetry tracer for the client
func WithTracer(tracer trace.Tracer) Option {
	return func(rc *Client) {
		rc.tracer = tracer
	}
}

// Client talks to a single registry host
type Client struct {
	host     string
	insecure bool
	http     httpclient.Client
	tracer   trace.Tracer
}

// RetagResult describes the manifest that was pushed under the new reference
type RetagResult struct {
	Source    string
	Target    string
	Digest    digest.Digest
	MediaType string
	Size      int
}

// New creates a registry client for cfg.Host
func New(cfg Config, opts ...Option) (*Client, error) {
	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		return nil, fmt.Errorf("registry host is required")
	}
	if strings.Contains(host, "://") || strings.Contains(host, "/") {
		return nil, fmt.Errorf("registry host %q must not contain a scheme or path", host)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		host:     host,
		insecure: cfg.Insecure,
		http:     httpclient.NewDefaultClient(timeout),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.insecure {
		slog.Warn("Registry client uses plain HTTP", "host", c.host)
	}
	return c, nil
}

// Host returns the registry host the client talks to
func (c *Client) Host() string {
	return c.host
}

// ManifestURL returns the manifest URL of repository at reference
func (c *Client) ManifestURL(repository, reference string) string {
	scheme := "https"
	if c.insecure {
		scheme = "http"
	}
	return fmt.Sprintf("%s://%s/v2/%s/manifests/%s", scheme, c.host, repository, reference)
}

// Retag makes the manifest of draft available under the version of final,
// authenticating as actorSlug with sessionToken. The manifest bytes are
// copied verbatim; no blob is transferred.
func (c *Client) Retag(
	ctx context.Context,
	draft, final *record.Record,
	actorSlug, sessionToken string,
) (*RetagResult, error) {
	ctx, span := otel.StartSpan(ctx, c.tracer, "registry.Retag", trace.WithAttributes(
		otel.AttrRegistryHost.String(c.host),
		otel.AttrRecordSlug.String(draft.Slug),
		otel.AttrRecordVersion.String(draft.Version),
		otel.AttrFinalVersion.String(final.Version),
	))
	defer span.End()

	srcURL := c.ManifestURL(draft.Slug, draft.Version)
	dstURL := c.ManifestURL(final.Slug, final.Version)

	token, err := c.Authenticate(ctx, srcURL, actorSlug, sessionToken)
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	manifest, mediaType, err := c.getManifest(ctx, srcURL, token)
	if err != nil {
		err = newCommunicationError(c.host, c.insecure, stepGet, err)
		otel.RecordError(span, err)
		return nil, err
	}

	if err := c.putManifest(ctx, dstURL, token, mediaType, manifest); err != nil {
		err = newCommunicationError(c.host, c.insecure, stepPut, err)
		otel.RecordError(span, err)
		return nil, err
	}

	result := &RetagResult{
		Source:    srcURL,
		Target:    dstURL,
		Digest:    digest.FromBytes(manifest),
		MediaType: mediaType,
		Size:      len(manifest),
	}
	slog.InfoContext(ctx, "Manifest retagged",
		"host", c.host,
		"source", srcURL,
		"target", dstURL,
		"digest", result.Digest.String(),
		"media_type", mediaType)
	return result, nil
}

// Authenticate performs the challenge and token handshake for resourceURL and
// returns a bearer token. The token is not cached.
func (c *Client) Authenticate(ctx context.Context, resourceURL, actorSlug, sessionToken string) (string, error) {
	challenge, err := c.challenge(ctx, resourceURL)
	if err != nil {
		return "", newCommunicationError(c.host, c.insecure, stepChallenge, err)
	}

	token, err := c.fetchToken(ctx, challenge, actorSlug, sessionToken)
	if err != nil {
		return "", newCommunicationError(c.host, c.insecure, stepToken, err)
	}
	return token, nil
}

// challenge sends the unauthenticated probe. The registry must refuse it with
// 401 and a bearer challenge.
func (c *Client) challenge(ctx context.Context, resourceURL string) (*Challenge, error) {
	resp, err := c.http.Do(ctx, &httpclient.Request{
		Method: http.MethodPut,
		URL:    resourceURL,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: expected 401 challenge from %s: %w",
			ErrProtocol, resourceURL, httpclient.NewHTTPError(resp.StatusCode, resourceURL, resp.Status))
	}
	header := resp.Header.Get(headerAuthenticate)
	if header == "" {
		return nil, fmt.Errorf("%w: 401 from %s without %s header", ErrProtocol, resourceURL, headerAuthenticate)
	}
	return ParseChallenge(header)
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *Client) fetchToken(ctx context.Context, ch *Challenge, actorSlug, sessionToken string) (string, error) {
	realm, err := url.Parse(ch.Realm)
	if err != nil {
		return "", fmt.Errorf("%w: invalid realm %q: %v", ErrChallengeParse, ch.Realm, err)
	}
	q := realm.Query()
	q.Set("service", ch.Service)
	q.Set("scope", ch.Scope)
	realm.RawQuery = q.Encode()
	tokenURL := realm.String()

	credentials := base64.StdEncoding.EncodeToString([]byte(actorSlug + ":" + sessionToken))
	resp, err := c.http.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    tokenURL,
		Header: http.Header{
			"Authorization": {"Basic " + credentials},
			"Accept":        {"application/json"},
		},
	})
	if err != nil {
		return "", err
	}
	if err := httpclient.ExpectStatus(resp, ch.Realm, http.StatusOK); err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}

	var body tokenResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%w: invalid token response from %s: %v", ErrAuth, ch.Realm, err)
	}
	if body.Token == "" {
		return "", fmt.Errorf("%w: token response from %s has no token", ErrAuth, ch.Realm)
	}

	logTokenClaims(ctx, body.Token)
	return body.Token, nil
}

// logTokenClaims logs the subject and expiry of JWT bearer tokens. The
// signature is not verified; the token is only read for diagnostics.
func logTokenClaims(ctx context.Context, token string) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}
	attrs := []any{"subject", claims.Subject, "issuer", claims.Issuer}
	if claims.ExpiresAt != nil {
		attrs = append(attrs, "expires_at", claims.ExpiresAt.Time)
	}
	slog.DebugContext(ctx, "Obtained registry token", attrs...)
}

func (c *Client) getManifest(ctx context.Context, srcURL, token string) ([]byte, string, error) {
	resp, err := c.http.Do(ctx, &httpclient.Request{
		Method: http.MethodGet,
		URL:    srcURL,
		Header: http.Header{
			"Authorization": {"bearer " + token},
			"Accept":        {strings.Join(acceptedManifestTypes, ", ")},
		},
	})
	if err != nil {
		return nil, "", err
	}
	if err := httpclient.ExpectStatus(resp, srcURL, http.StatusOK); err != nil {
		return nil, "", fmt.Errorf("%w: failed to get manifest: %w", ErrProtocol, err)
	}

	if err := verifyDigest(resp.Header.Get(headerContentDigest), resp.Body); err != nil {
		return nil, "", err
	}

	mediaType := resp.Header.Get("Content-Type")
	if mediaType == "" {
		mediaType = embeddedMediaType(resp.Body)
	}
	if mediaType == "" {
		return nil, "", fmt.Errorf("%w: manifest %s has no content type", ErrProtocol, srcURL)
	}
	return resp.Body, mediaType, nil
}

func (c *Client) putManifest(ctx context.Context, dstURL, token, mediaType string, manifest []byte) error {
	resp, err := c.http.Do(ctx, &httpclient.Request{
		Method: http.MethodPut,
		URL:    dstURL,
		Header: http.Header{
			"Authorization": {"bearer " + token},
			"Content-Type":  {mediaType},
		},
		Body: manifest,
	})
	if err != nil {
		return err
	}
	if err := httpclient.ExpectStatus(resp, dstURL, http.StatusOK, http.StatusCreated, http.StatusAccepted); err != nil {
		return fmt.Errorf("%w: failed to put manifest: %w", ErrProtocol, err)
	}
	return nil
}

// verifyDigest checks manifest against the digest the registry announced.
// Registries may omit the header.
func verifyDigest(announced string, manifest []byte) error {
	if announced == "" {
		return nil
	}
	want, err := digest.Parse(announced)
	if err != nil {
		return fmt.Errorf("%w: invalid %s %q: %v", ErrProtocol, headerContentDigest, announced, err)
	}
	if !want.Algorithm().Available() {
		return nil
	}
	if got := want.Algorithm().FromBytes(manifest); got != want {
		return fmt.Errorf("%w: manifest digest %s does not match announced %s", ErrProtocol, got, want)
	}
	return nil
}

func embeddedMediaType(manifest []byte) string {
	var m struct {
		MediaType string `json:"mediaType"`
	}
	if err := json.Unmarshal(manifest, &m); err != nil {
		return ""
	}
	return m.MediaType
}

// IsCommunicationError reports whether err was raised by a registry exchange
func IsCommunicationError(err error) bool {
	var ce *CommunicationError
	return errors.As(err, &ce)
}
