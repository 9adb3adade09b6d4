package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"memberauth/internal/config"
	"memberauth/internal/domain/model"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

var (
	ErrNoIDToken     = errors.New("no id_token in token response")
	ErrNonceMismatch = errors.New("nonce mismatch")
	ErrNoEmail       = errors.New("id_token has no email")
	ErrUnverified    = errors.New("id_token email is not verified")
)

// ProviderはOIDCのauthorization codeフローで外部の本人情報を取得する
type Provider struct {
	name     string
	oauth2   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewProviderはissuerのdiscoveryで設定を作る
func NewProvider(ctx context.Context, cfg config.Config) (*Provider, error) {
	p, err := oidc.NewProvider(ctx, cfg.OIDCIssuer)
	if err != nil {
		return nil, fmt.Errorf("oidc discovery: %w", err)
	}

	oc := oauth2.Config{
		ClientID:     cfg.OIDCClientID,
		ClientSecret: cfg.OIDCClientSecret,
		Endpoint:     p.Endpoint(),
		RedirectURL:  cfg.OIDCRedirectURL,
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	verifier := p.Verifier(&oidc.Config{ClientID: cfg.OIDCClientID})

	return New(oc, verifier, cfg.OIDCProvider), nil
}

func New(oc oauth2.Config, verifier *oidc.IDTokenVerifier, name string) *Provider {
	return &Provider{
		name:     name,
		oauth2:   oc,
		verifier: verifier,
	}
}

func (p *Provider) Name() string {
	return p.name
}

// 認可画面のURL（PKCE S256）
func (p *Provider) AuthCodeURL(state, nonce, codeVerifier string) string {
	return p.oauth2.AuthCodeURL(state,
		oidc.Nonce(nonce),
		oauth2.S256ChallengeOption(codeVerifier),
	)
}

// Exchangeはcodeをid_tokenに交換し、検証した本人情報を返す
func (p *Provider) Exchange(ctx context.Context, code, nonce, codeVerifier string) (model.ExternalIdentity, error) {
	tok, err := p.oauth2.Exchange(ctx, code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("token exchange: %w", err)
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return model.ExternalIdentity{}, ErrNoIDToken
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims struct {
		Nonce    string `json:"nonce"`
		Email    string `json:"email"`
		Name     string `json:"name"`
		Nickname string `json:"nickname"`
		Verified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return model.ExternalIdentity{}, fmt.Errorf("id_token claims: %w", err)
	}

	// リプレイ防止
	if nonce == "" || claims.Nonce != nonce {
		return model.ExternalIdentity{}, ErrNonceMismatch
	}

	email := strings.TrimSpace(claims.Email)
	if email == "" {
		return model.ExternalIdentity{}, ErrNoEmail
	}
	//会員はemailで突き合わせるので未検証のemailは受け付けない
	if !claims.Verified {
		return model.ExternalIdentity{}, ErrUnverified
	}

	name := claims.Nickname
	if name == "" {
		name = claims.Name
	}

	return model.ExternalIdentity{
		Email:       email,
		DisplayName: name,
		Provider:    p.name,
		ProviderID:  idToken.Subject,
	}, nil
}
