package oidc

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/benvon/tagdesk/internal/models"
	"golang.org/x/oauth2"
)

// ErrNoIDToken is returned when a token response carries no id_token.
var ErrNoIDToken = errors.New("token response has no id_token")

// Client wraps OAuth2 client functionality
type Client struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewClient creates an OAuth2 client from OIDC config and the provider's
// discovered endpoints.
func NewClient(oidcConfig *models.OIDCConfig, endpoint oauth2.Endpoint, httpClient *http.Client) *Client {
	clientSecret := ""
	if oidcConfig.ClientSecret != nil {
		clientSecret = *oidcConfig.ClientSecret
	}

	config := &oauth2.Config{
		ClientID:     oidcConfig.ClientID,
		ClientSecret: clientSecret,
		RedirectURL:  oidcConfig.RedirectURI,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     endpoint,
	}

	return &Client{config: config, httpClient: httpClient}
}

// AuthCodeURL returns the provider URL the browser is sent to. state and
// nonce are echoed back and checked on the callback.
func (c *Client) AuthCodeURL(state, nonce string) string {
	return c.config.AuthCodeURL(state,
		oauth2.SetAuthURLParam("nonce", nonce),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

// Exchange trades an authorization code for tokens and returns the raw ID
// token.
func (c *Client) Exchange(ctx context.Context, code string) (string, error) {
	if c.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	}
	tok, err := c.config.Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("failed to exchange code: %w", err)
	}
	raw, ok := tok.Extra("id_token").(string)
	if !ok || raw == "" {
		return "", ErrNoIDToken
	}
	return raw, nil
}

// RandomToken returns a URL-safe random string for state and nonce values.
func RandomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
