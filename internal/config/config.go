// Package config provides configuration loading and validation for the
// contract promoter.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stacklok/contract-promoter/internal/telemetry"
)

const (
	// StorageTypeDatabase stores records in PostgreSQL
	StorageTypeDatabase = "database"

	// StorageTypeMemory keeps records in process memory. Intended for
	// development and tests; nothing survives a restart.
	StorageTypeMemory = "memory"
)

const (
	// AuthModeSession requires a session token on every protected request
	AuthModeSession = "session"

	// AuthModeAnonymous attributes every request to a configured actor
	AuthModeAnonymous = "anonymous"
)

const (
	// EnvPrefix prefixes the environment variables read by the promoter
	EnvPrefix = "CONTRACT_PROMOTER"

	// EnvDatabasePassword is read when no password file is configured
	EnvDatabasePassword = "CONTRACT_PROMOTER_DATABASE_PASSWORD"

	defaultRegistryTimeout = 5 * time.Second
	defaultSessionTTL      = 10 * time.Minute
	defaultTypeCacheTTL    = 5 * time.Minute
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Calls filepath.Clean internally
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}
		if !filepath.IsAbs(realPath) && !filepath.IsLocal(realPath) {
			return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	Storage   StorageConfig     `yaml:"storage"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Registry  *RegistryConfig   `yaml:"registry,omitempty"`
	Promotion *PromotionConfig  `yaml:"promotion,omitempty"`
	TypeCache *TypeCacheConfig  `yaml:"typeCache,omitempty"`
	Auth      *AuthConfig       `yaml:"auth,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// StorageConfig selects the record store
type StorageConfig struct {
	// Type is "database" or "memory"
	Type string `yaml:"type"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing only the password.
	// Trailing whitespace is ignored.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	Database string `yaml:"database"`

	// SSLMode is one of disable, require, verify-ca, verify-full.
	// Defaults to require.
	SSLMode string `yaml:"sslMode,omitempty"`

	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is a duration such as "1h" or "30m"
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// RegistryConfig defines the OCI registry artifacts are published to
type RegistryConfig struct {
	// Host is the registry host with an optional port, without scheme
	Host string `yaml:"host"`

	// Insecure talks plain HTTP to the registry
	Insecure bool `yaml:"insecure,omitempty"`

	// Timeout bounds each registry call, e.g. "5s"
	Timeout string `yaml:"timeout,omitempty"`
}

// PromotionConfig tunes the promotion workflow
type PromotionConfig struct {
	// SessionTTL is the lifetime of the session minted for registry access
	SessionTTL string `yaml:"sessionTTL,omitempty"`
}

// TypeCacheConfig configures the type definition cache
type TypeCacheConfig struct {
	// TTL of cached definitions. "0" disables the cache.
	TTL string `yaml:"ttl,omitempty"`
}

// AuthConfig configures API authentication
type AuthConfig struct {
	// Mode is "session" (default) or "anonymous"
	Mode string `yaml:"mode,omitempty"`

	// Realm is announced in Www-Authenticate challenges
	Realm string `yaml:"realm,omitempty"`

	// AnonymousActor is the actor id requests are attributed to in
	// anonymous mode
	AnonymousActor string `yaml:"anonymousActor,omitempty"`

	// PublicPaths bypass authentication in addition to the probes
	PublicPaths []string `yaml:"publicPaths,omitempty"`
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	switch c.Storage.Type {
	case StorageTypeDatabase:
		if c.Database == nil {
			errs = append(errs, fmt.Errorf("storage: database configuration is required for storage type %q", c.Storage.Type))
		} else if err := c.Database.validate(); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	case StorageTypeMemory:
	case "":
		errs = append(errs, fmt.Errorf("storage: type is required"))
	default:
		errs = append(errs, fmt.Errorf("storage: unsupported type %q", c.Storage.Type))
	}

	if c.Registry != nil {
		if err := c.Registry.validate(); err != nil {
			errs = append(errs, fmt.Errorf("registry: %w", err))
		}
	}
	if _, err := c.GetSessionTTL(); err != nil {
		errs = append(errs, fmt.Errorf("promotion: %w", err))
	}
	if _, err := c.GetTypeCacheTTL(); err != nil {
		errs = append(errs, fmt.Errorf("typeCache: %w", err))
	}
	if err := c.Auth.validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}
	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func (d *DatabaseConfig) validate() error {
	if d.Host == "" {
		return fmt.Errorf("host is required")
	}
	if d.Port <= 0 || d.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", d.Port)
	}
	if d.User == "" {
		return fmt.Errorf("user is required")
	}
	if d.Database == "" {
		return fmt.Errorf("database is required")
	}
	if _, err := d.GetConnMaxLifetime(); err != nil {
		return err
	}
	return nil
}

// GetPassword returns the database password, read from PasswordFile if set
// and from the CONTRACT_PROMOTER_DATABASE_PASSWORD environment variable
// otherwise.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		data, err := os.ReadFile(filepath.Clean(d.PasswordFile))
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}
		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvDatabasePassword); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf("no database password configured: set passwordFile or %s", EnvDatabasePassword)
}

// GetConnectionString builds a PostgreSQL connection URL. The password is
// escaped.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": {sslMode}}.Encode(),
	}
	return u.String(), nil
}

// GetConnMaxLifetime parses ConnMaxLifetime, zero if unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	return parseDuration("connMaxLifetime", d.ConnMaxLifetime, 0)
}

func (r *RegistryConfig) validate() error {
	host := strings.TrimSpace(r.Host)
	if host == "" {
		return fmt.Errorf("host is required")
	}
	if strings.Contains(host, "://") || strings.Contains(host, "/") {
		return fmt.Errorf("host %q must not contain a scheme or path", host)
	}
	_, err := r.GetTimeout()
	return err
}

// GetTimeout parses Timeout, 5s if unset
func (r *RegistryConfig) GetTimeout() (time.Duration, error) {
	return parseDuration("timeout", r.Timeout, defaultRegistryTimeout)
}

// GetSessionTTL returns the promotion session TTL, 10m if unset
func (c *Config) GetSessionTTL() (time.Duration, error) {
	var raw string
	if c.Promotion != nil {
		raw = c.Promotion.SessionTTL
	}
	ttl, err := parseDuration("sessionTTL", raw, defaultSessionTTL)
	if err != nil {
		return 0, err
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("sessionTTL must be positive, got %s", raw)
	}
	return ttl, nil
}

// GetTypeCacheTTL returns the type definition cache TTL, 5m if unset.
// Zero disables the cache.
func (c *Config) GetTypeCacheTTL() (time.Duration, error) {
	var raw string
	if c.TypeCache != nil {
		raw = c.TypeCache.TTL
	}
	return parseDuration("ttl", raw, defaultTypeCacheTTL)
}

// GetMode returns the auth mode, AuthModeSession if unset
func (a *AuthConfig) GetMode() string {
	if a == nil || a.Mode == "" {
		return AuthModeSession
	}
	return a.Mode
}

func (a *AuthConfig) validate() error {
	switch a.GetMode() {
	case AuthModeSession:
		return nil
	case AuthModeAnonymous:
		if a.AnonymousActor == "" {
			return fmt.Errorf("anonymousActor is required in %s mode", AuthModeAnonymous)
		}
		return nil
	default:
		return fmt.Errorf("unsupported mode %q", a.Mode)
	}
}

func parseDuration(field, raw string, def time.Duration) (time.Duration, error) {
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s must not be negative, got %s", field, raw)
	}
	return d, nil
}
