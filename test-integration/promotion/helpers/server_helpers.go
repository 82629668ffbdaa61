package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/onsi/gomega"

	promoter "github.com/stacklok/contract-promoter/internal/app"
	"github.com/stacklok/contract-promoter/internal/config"
	"github.com/stacklok/contract-promoter/internal/record"
	"github.com/stacklok/contract-promoter/internal/seed"
	"github.com/stacklok/contract-promoter/internal/store"
)

// ServerTestHelper manages the promoter server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	baseURL    string
	address    string
	httpClient *http.Client
	app        *promoter.PromoterApp
}

// NewServerTestHelper creates a server helper listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	address := l.Addr().String()
	gomega.Expect(l.Close()).To(gomega.Succeed())

	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// StartServer builds the application from the configuration file and serves
// it in the background
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := promoter.NewPromoterApp(s.ctx,
		promoter.WithConfig(cfg),
		promoter.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()
	return nil
}

// StopServer gracefully stops the server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the readiness probe to succeed
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 50*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// Seed applies a seed document to the server's store
func (s *ServerTestHelper) Seed(document string) *seed.Result {
	doc, err := seed.Parse([]byte(document))
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	res, err := seed.New(s.Store()).Apply(s.ctx, doc)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return res
}

// Store returns the server's record store
func (s *ServerTestHelper) Store() store.Store {
	return s.app.Components().Store
}

// Find returns the record referenced as slug@version
func (s *ServerTestHelper) Find(ref string) *record.Record {
	rec, err := seed.FindRecord(s.ctx, s.Store(), "", ref)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	return rec
}

// Promote makes a POST request to /api/v1/records/{id}/promote. An empty
// token sends no Authorization header.
func (s *ServerTestHelper) Promote(token, id string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		payload = bytes.NewReader(data)
	}
	return s.do(http.MethodPost, fmt.Sprintf("/api/v1/records/%s/promote", id), token, payload)
}

// GetRecord makes a GET request to /api/v1/records/{id}
func (s *ServerTestHelper) GetRecord(token, id string) (*http.Response, error) {
	return s.do(http.MethodGet, "/api/v1/records/"+id, token, nil)
}

// GetHealth makes a GET request to /health
func (s *ServerTestHelper) GetHealth() (*http.Response, error) {
	return s.httpClient.Get(s.baseURL + "/health")
}

func (s *ServerTestHelper) do(method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(s.ctx, method, s.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return s.httpClient.Do(req)
}

// DecodeJSON decodes and closes the response body
func DecodeJSON(resp *http.Response, v any) {
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(json.NewDecoder(resp.Body).Decode(v)).To(gomega.Succeed())
}
