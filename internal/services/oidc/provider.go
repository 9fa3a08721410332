// Package oidc signs users in through an OpenID Connect provider using the
// authorization code flow.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/benvon/tagdesk/internal/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// DefaultProviderName is used when no provider name is configured.
	DefaultProviderName = "google"
	// DefaultIssuer is Google's issuer.
	DefaultIssuer = "https://accounts.google.com"

	discoveryTTL = time.Hour
)

// ErrNotConfigured is returned when neither the environment nor the
// database holds a provider configuration.
var ErrNotConfigured = errors.New("identity provider is not configured")

// ConfigSource looks up stored provider configurations.
type ConfigSource interface {
	GetByProvider(ctx context.Context, provider string) (*models.OIDCConfig, error)
}

// Provider resolves the provider configuration and its discovered endpoints.
type Provider struct {
	name       string
	env        *models.OIDCConfig
	repo       ConfigSource
	httpClient *http.Client
	jwks       *JWKSManager
	log        *zap.Logger

	mu         sync.Mutex
	discovery  *Discovery
	discovered time.Time
	issuer     string
}

// NewProvider creates a provider manager. env, when it has a client id,
// takes precedence over the stored configuration named name.
func NewProvider(name string, env *models.OIDCConfig, repo ConfigSource, httpClient *http.Client, log *zap.Logger) *Provider {
	if name == "" {
		name = DefaultProviderName
	}
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		httpClient = NewHTTPClient(log)
	}
	return &Provider{
		name:       name,
		env:        env,
		repo:       repo,
		httpClient: httpClient,
		jwks:       NewJWKSManager(httpClient),
		log:        log,
	}
}

// Name returns the configured provider name.
func (p *Provider) Name() string {
	return p.name
}

// GetConfig returns the active provider configuration.
func (p *Provider) GetConfig(ctx context.Context) (*models.OIDCConfig, error) {
	if p.env != nil && p.env.ClientID != "" {
		cfg := *p.env
		if cfg.Provider == "" {
			cfg.Provider = p.name
		}
		if cfg.Issuer == "" {
			cfg.Issuer = DefaultIssuer
		}
		return &cfg, nil
	}
	if p.repo == nil {
		return nil, ErrNotConfigured
	}
	cfg, err := p.repo.GetByProvider(ctx, p.name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotConfigured, err)
	}
	return cfg, nil
}

// Discovery returns the provider metadata for issuer, cached for an hour.
func (p *Provider) Discovery(ctx context.Context, issuer string) (*Discovery, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.discovery != nil && p.issuer == issuer && time.Since(p.discovered) < discoveryTTL {
		return p.discovery, nil
	}
	d, err := Discover(ctx, p.httpClient, issuer)
	if err != nil {
		return nil, err
	}
	p.discovery, p.discovered, p.issuer = d, time.Now(), issuer
	p.log.Info("oidc_discovery_loaded",
		zap.String("provider", p.name),
		zap.String("issuer", issuer),
	)
	return d, nil
}

// Session bundles everything needed for one sign-in round trip.
type Session struct {
	Config   *models.OIDCConfig
	Client   *Client
	Verifier *Verifier
	JWKSURL  string
}

// Begin resolves configuration and endpoints for a sign-in.
func (p *Provider) Begin(ctx context.Context) (*Session, error) {
	cfg, err := p.GetConfig(ctx)
	if err != nil {
		return nil, err
	}
	d, err := p.Discovery(ctx, cfg.Issuer)
	if err != nil {
		return nil, err
	}
	jwksURL := d.JWKSURI
	if cfg.JWKSUrl != nil && *cfg.JWKSUrl != "" {
		jwksURL = *cfg.JWKSUrl
	}
	endpoint := oauth2.Endpoint{
		AuthURL:  d.AuthorizationEndpoint,
		TokenURL: d.TokenEndpoint,
	}
	return &Session{
		Config:   cfg,
		Client:   NewClient(cfg, endpoint, p.httpClient),
		Verifier: NewVerifier(p.jwks, cfg.Issuer, cfg.ClientID),
		JWKSURL:  jwksURL,
	}, nil
}

// AuthURL returns the provider URL that starts a sign-in.
func (p *Provider) AuthURL(ctx context.Context, state, nonce string) (string, error) {
	s, err := p.Begin(ctx)
	if err != nil {
		return "", err
	}
	return s.Client.AuthCodeURL(state, nonce), nil
}

// Complete exchanges the callback code and returns the verified identity.
func (p *Provider) Complete(ctx context.Context, code, nonce string) (*models.JWTClaims, error) {
	s, err := p.Begin(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := s.Client.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.Verifier.Verify(ctx, raw, s.JWKSURL, nonce)
}
