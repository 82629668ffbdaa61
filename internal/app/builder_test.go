package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/registry/registrytest"
	"github.com/stacklok/contract-promoter/internal/seed"
)

const seedDocument = `
types:
  - slug: card
    schema: {type: object, required: [title]}
  - slug: contract-repository
    schema: {type: object}
  - slug: user
    schema: {type: object}
  - slug: link
    schema: {type: object, required: [inverseName, from, to]}
records:
  - slug: user-jellyjuju
    type: user@1.0.0
    version: 1.0.0
  - slug: repo-x
    type: contract-repository@1.0.0
    version: 1.0.0
  - slug: card-x
    type: card@1.0.0
    version: 1.0.2-beta1+rev02
    data:
      title: Card X
      $transformer:
        artifactReady: card-x:1.0.2-beta1+rev02
links:
  - from: repo-x@1.0.0
    to: card-x@1.0.2-beta1+rev02
    verb: contains
    inverse: is contained in
sessions:
  - actor: user-jellyjuju@1.0.0
`

func memoryConfig() *config.Config {
	return &config.Config{Storage: config.StorageConfig{Type: config.StorageTypeMemory}}
}

func TestWithAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		addr    string
		wantErr bool
	}{
		{addr: ":8080"},
		{addr: "localhost:9090"},
		{addr: "10.0.0.1:80"},
		{addr: "", wantErr: true},
		{addr: "8080", wantErr: true},
		{addr: "localhost:", wantErr: true},
		{addr: ":http", wantErr: true},
		{addr: "host.example:80", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			t.Parallel()

			cfg, err := baseConfig(WithAddress(tt.addr))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.addr, cfg.address)
		})
	}
}

func TestNewPromoterApp_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewPromoterApp(ctx)
	require.ErrorContains(t, err, "config cannot be nil")

	_, err = NewPromoterApp(ctx, WithAddress(""))
	require.ErrorContains(t, err, "address cannot be empty")

	cfg := memoryConfig()
	cfg.Auth = &config.AuthConfig{Mode: "oauth"}
	_, err = NewPromoterApp(ctx, WithConfig(cfg))
	require.ErrorContains(t, err, "failed to build auth middleware")

	cfg = memoryConfig()
	cfg.Registry = &config.RegistryConfig{Host: "https://registry.example.com"}
	_, err = NewPromoterApp(ctx, WithConfig(cfg))
	require.ErrorContains(t, err, "failed to create registry client")
}

func TestNewComponents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	comps, err := NewComponents(ctx, WithConfig(memoryConfig()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = comps.Close(ctx) })

	require.NotNil(t, comps.Store)
	require.NotNil(t, comps.Promotion)
	require.NoError(t, comps.Promotion.CheckReadiness(ctx))
}

// TestPromoterApp_PromoteOverHTTP drives a promotion through the full HTTP
// stack: session auth, the API, the promotion service and a fake registry.
func TestPromoterApp_PromoteOverHTTP(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	fake := registrytest.NewServer()
	t.Cleanup(fake.Close)
	fake.PutManifest("card-x", "1.0.2-beta1+rev02", registrytest.Manifest{
		MediaType: "application/vnd.oci.image.manifest.v1+json",
		Body:      []byte(`{"schemaVersion":2,"mediaType":"application/vnd.oci.image.manifest.v1+json","layers":[]}`),
	})

	cfg := memoryConfig()
	cfg.Registry = &config.RegistryConfig{Host: fake.Host(), Insecure: true, Timeout: "2s"}

	app, err := NewPromoterApp(ctx, WithConfig(cfg))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Components().Close(ctx) })

	doc, err := seed.Parse([]byte(seedDocument))
	require.NoError(t, err)
	seeded, err := seed.New(app.Components().Store).Apply(ctx, doc)
	require.NoError(t, err)
	require.Len(t, seeded.Sessions, 1)
	token := seeded.Sessions[0].Token

	var draftID string
	for _, s := range seeded.Inserted {
		if s.Slug == "card-x" {
			draftID = s.ID
		}
	}
	require.NotEmpty(t, draftID)

	srv := httptest.NewServer(app.GetHTTPServer().Handler)
	t.Cleanup(srv.Close)

	// Without a session
	resp, err := http.Post(srv.URL+"/api/v1/records/"+draftID+"/promote", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	promote := func() *http.Response {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/api/v1/records/"+draftID+"/promote",
			strings.NewReader(`{"originator":"5f1c2b8e-3d4a-4b6c-8e9f-0a1b2c3d4e5f"}`))
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	resp = promote()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var summary record.Summary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "card-x", summary.Slug)
	assert.Equal(t, "1.0.2+rev02", summary.Version)
	assert.Equal(t, "card@1.0.0", summary.Type)

	_, published := fake.GetManifest("card-x", "1.0.2+rev02")
	assert.True(t, published)

	final, err := app.Components().Store.GetRecord(ctx, token, summary.ID)
	require.NoError(t, err)
	ready, _ := final.Lookup("$transformer", "artifactReady")
	assert.Equal(t, "card-x:1.0.2+rev02", ready)

	// The same draft cannot be promoted twice
	again := promote()
	defer again.Body.Close()
	assert.Equal(t, http.StatusConflict, again.StatusCode)

	// Probes stay public
	health, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)
}

func TestBuildHTTPServer_Defaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	app, err := NewPromoterApp(ctx,
		WithConfig(memoryConfig()),
		WithAddress("127.0.0.1:0"),
		WithAuthMiddleware(func(next http.Handler) http.Handler { return next }))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Components().Close(ctx) })

	server := app.GetHTTPServer()
	assert.Equal(t, "127.0.0.1:0", server.Addr)
	assert.Equal(t, defaultReadTimeout, server.ReadTimeout)
	assert.Equal(t, defaultWriteTimeout, server.WriteTimeout)
	assert.Equal(t, defaultIdleTimeout, server.IdleTimeout)
	assert.Equal(t, config.StorageTypeMemory, app.GetConfig().Storage.Type)
}
