package oidc

import (
	"context"
	"errors"
	"fmt"

	"github.com/benvon/tagdesk/internal/models"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// ErrNonceMismatch is returned when the ID token's nonce differs from the
// one sent with the authorization request.
var ErrNonceMismatch = errors.New("token nonce mismatch")

// Verifier verifies ID tokens
type Verifier struct {
	jwksManager *JWKSManager
	issuer      string
	audience    string
}

// NewVerifier creates a verifier accepting tokens from issuer addressed to
// audience (the OAuth client id).
func NewVerifier(jwksManager *JWKSManager, issuer, audience string) *Verifier {
	return &Verifier{
		jwksManager: jwksManager,
		issuer:      issuer,
		audience:    audience,
	}
}

// Verify checks signature, issuer, audience, expiry and nonce, and extracts
// the identity claims.
func (v *Verifier) Verify(ctx context.Context, tokenString, jwksURL, nonce string) (*models.JWTClaims, error) {
	token, err := v.parse(ctx, tokenString, jwksURL)
	if err != nil {
		// Keys may have rotated since the set was cached.
		v.jwksManager.Invalidate(jwksURL)
		token, err = v.parse(ctx, tokenString, jwksURL)
		if err != nil {
			return nil, err
		}
	}

	claims := &models.JWTClaims{
		Sub:     token.Subject(),
		Iss:     token.Issuer(),
		Exp:     token.Expiration().Unix(),
		Iat:     token.IssuedAt().Unix(),
		Email:   stringClaim(token, "email"),
		Name:    stringClaim(token, "name"),
		Picture: stringClaim(token, "picture"),
		Nonce:   stringClaim(token, "nonce"),
	}
	if aud := token.Audience(); len(aud) > 0 {
		claims.Aud = aud[0]
	}

	if nonce != "" && claims.Nonce != nonce {
		return nil, ErrNonceMismatch
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}
	return claims, nil
}

func (v *Verifier) parse(ctx context.Context, tokenString, jwksURL string) (jwt.Token, error) {
	keys, err := v.jwksManager.GetJWKS(ctx, jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse/verify token: %w", err)
	}
	return token, nil
}

func stringClaim(token jwt.Token, name string) string {
	v, ok := token.Get(name)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
