// Package auth runs the Google OAuth web flow used to save reports to the
// user's own spreadsheets.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	// DriveFileScope grants access only to files the app creates.
	DriveFileScope = "https://www.googleapis.com/auth/drive.file"

	stateTTL      = 10 * time.Minute
	defaultRevoke = "https://oauth2.googleapis.com/revoke"
	stateIssuer   = "finanzen"
)

var (
	ErrInvalidState  = errors.New("invalid oauth state")
	ErrNotConfigured = errors.New("google login is not configured")
)

// Profile is the signed-in user as shown in the header.
type Profile struct {
	Email   string
	Name    string
	Picture string
}

// Config holds the OAuth client registration.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	StateSecret  []byte
}

// Provider wraps the OAuth client configuration. It holds no per-user state.
type Provider struct {
	oauth      *oauth2.Config
	secret     []byte
	revokeURL  string
	httpClient *http.Client
	apiOptions []option.ClientOption
	now        func() time.Time
}

type stateClaims struct {
	Nonce string `json:"nonce"`
	jwt.RegisteredClaims
}

// NewProvider returns ErrNotConfigured when client credentials are missing.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrNotConfigured
	}
	if len(cfg.StateSecret) < 16 {
		return nil, errors.New("state secret must be at least 16 bytes")
	}
	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes: []string{
				DriveFileScope,
				goauth2.UserinfoEmailScope,
				goauth2.UserinfoProfileScope,
			},
		},
		secret:     cfg.StateSecret,
		revokeURL:  defaultRevoke,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}, nil
}

// LoginURL returns the consent page URL. The state parameter is a signed
// token bound to nonce, which the caller keeps in the user's session.
func (p *Provider) LoginURL(nonce string) (string, error) {
	now := p.now()
	claims := stateClaims{
		Nonce: nonce,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(stateTTL)),
		},
	}
	state, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign state: %w", err)
	}
	return p.oauth.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account")), nil
}

// VerifyState checks the signature, expiry and nonce of a returned state.
func (p *Provider) VerifyState(state, nonce string) error {
	if state == "" || nonce == "" {
		return ErrInvalidState
	}
	var claims stateClaims
	_, err := jwt.ParseWithClaims(state, &claims, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if claims.Nonce != nonce {
		return fmt.Errorf("%w: nonce mismatch", ErrInvalidState)
	}
	return nil
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if strings.TrimSpace(code) == "" {
		return nil, errors.New("missing authorization code")
	}
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	return tok, nil
}

// TokenSource refreshes tok as needed.
func (p *Provider) TokenSource(ctx context.Context, tok *oauth2.Token) oauth2.TokenSource {
	return p.oauth.TokenSource(ctx, tok)
}

// Profile fetches the user's name, e-mail and picture.
func (p *Provider) Profile(ctx context.Context, tok *oauth2.Token) (Profile, error) {
	opts := append([]option.ClientOption{option.WithTokenSource(p.TokenSource(ctx, tok))}, p.apiOptions...)
	svc, err := goauth2.NewService(ctx, opts...)
	if err != nil {
		return Profile{}, fmt.Errorf("userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return Profile{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	return Profile{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// Revoke invalidates tok at Google. The refresh token is preferred since
// revoking it also revokes its access tokens.
func (p *Provider) Revoke(ctx context.Context, tok *oauth2.Token) error {
	if tok == nil {
		return nil
	}
	value := tok.RefreshToken
	if value == "" {
		value = tok.AccessToken
	}
	if value == "" {
		return nil
	}
	form := url.Values{"token": {value}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.revokeURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke token: status %d", resp.StatusCode)
	}
	return nil
}
