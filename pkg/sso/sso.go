// Package sso authenticates portal users against an OpenID Connect
// identity provider. The provider yields an Identity; the login flow maps
// its tenant and role claims onto a Principal before opening a session.
package sso

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// Config configures the OIDC provider
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// TenantClaim names the ID token claim carrying the tenant ref;
	// platform users omit it
	TenantClaim string
	// RolesClaim names the claim carrying the user's role names
	RolesClaim string
}

// Validate checks the configuration before discovery
func (c Config) Validate() error {
	if c.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if c.ClientSecret == "" {
		return fmt.Errorf("client_secret is required")
	}
	if c.IssuerURL == "" {
		return fmt.Errorf("issuer_url is required")
	}
	if c.RedirectURL == "" {
		return fmt.Errorf("redirect_url is required")
	}
	hasOpenID := false
	for _, scope := range c.Scopes {
		if scope == oidc.ScopeOpenID {
			hasOpenID = true
			break
		}
	}
	if !hasOpenID {
		return fmt.Errorf("%q scope is required", oidc.ScopeOpenID)
	}
	return nil
}

// Identity is the authenticated user as reported by the identity provider
type Identity struct {
	Subject   string
	Email     string
	Name      string
	TenantRef *string
	RoleNames []string
}

// Provider wraps OIDC discovery, the authorization code flow, and ID token
// verification
type Provider struct {
	config       Config
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
	oauth2Config *oauth2.Config
}

// NewProvider discovers the issuer and prepares the code flow
func NewProvider(ctx context.Context, config Config) (*Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	provider, err := oidc.NewProvider(ctx, config.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &Provider{
		config:   config,
		provider: provider,
		verifier: provider.Verifier(&oidc.Config{ClientID: config.ClientID}),
		oauth2Config: &oauth2.Config{
			ClientID:     config.ClientID,
			ClientSecret: config.ClientSecret,
			Endpoint:     provider.Endpoint(),
			RedirectURL:  config.RedirectURL,
			Scopes:       config.Scopes,
		},
	}, nil
}

// InitiateLogin redirects to the authorization endpoint. The state token
// must be checked on callback.
func (p *Provider) InitiateLogin(w http.ResponseWriter, r *http.Request, state string) {
	http.Redirect(w, r, p.oauth2Config.AuthCodeURL(state), http.StatusFound)
}

// HandleCallback exchanges the authorization code, verifies the ID token,
// and maps its claims to an Identity
func (p *Provider) HandleCallback(ctx context.Context, code string) (*Identity, error) {
	if code == "" {
		return nil, fmt.Errorf("missing authorization code")
	}

	oauth2Token, err := p.oauth2Config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}

	rawIDToken, ok := oauth2Token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("missing id_token in response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims map[string]interface{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	identity := identityFromClaims(claims, p.config)
	if identity.Subject == "" {
		identity.Subject = idToken.Subject
	}
	if identity.Email == "" {
		return nil, fmt.Errorf("missing email claim in ID token")
	}
	return identity, nil
}

func identityFromClaims(claims map[string]interface{}, config Config) *Identity {
	identity := &Identity{
		Subject: stringClaim(claims, "sub"),
		Email:   stringClaim(claims, "email"),
		Name:    stringClaim(claims, "name"),
	}
	if config.TenantClaim != "" {
		if tenant := stringClaim(claims, config.TenantClaim); tenant != "" {
			identity.TenantRef = &tenant
		}
	}
	if config.RolesClaim != "" {
		identity.RoleNames = arrayClaim(claims, config.RolesClaim)
	}
	return identity
}

func stringClaim(claims map[string]interface{}, key string) string {
	if key == "" {
		return ""
	}
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func arrayClaim(claims map[string]interface{}, key string) []string {
	switch v := claims[key].(type) {
	case []interface{}:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return v
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
