package publisher

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const bloggerScope = "https://www.googleapis.com/auth/blogger"

var googleEndpoint = oauth2.Endpoint{
	AuthURL:  "https://accounts.google.com/o/oauth2/v2/auth",
	TokenURL: "https://oauth2.googleapis.com/token",
}

// Credentials for the Blogger API. Either a refresh token (with client id and
// secret) or a bare access token is required; TokenFile may supply both.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	AccessToken  string
	TokenFile    string
	// TokenURL overrides Google's token endpoint.
	TokenURL string
}

// tokenFile is the layout of blogger_token.json written by the consent helper.
type tokenFile struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresAt    int64  `json:"expires_at"`
}

// NewTokenSource builds a refreshing token source from c.
func NewTokenSource(ctx context.Context, c Credentials) (oauth2.TokenSource, error) {
	tok := &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    "Bearer",
	}
	if c.TokenFile != "" {
		ft, err := readTokenFile(c.TokenFile)
		if err != nil {
			return nil, err
		}
		if tok.AccessToken == "" {
			tok.AccessToken = ft.AccessToken
			if tok.AccessToken == "" {
				tok.AccessToken = ft.Token
			}
			if ft.ExpiresAt > 0 {
				tok.Expiry = time.Unix(ft.ExpiresAt, 0)
			}
		}
		if tok.RefreshToken == "" {
			tok.RefreshToken = ft.RefreshToken
		}
	}

	if tok.RefreshToken == "" {
		if tok.AccessToken == "" {
			return nil, errors.New("blogger credentials missing: set refresh_token, access_token or token_file")
		}
		return oauth2.StaticTokenSource(tok), nil
	}
	if c.ClientID == "" || c.ClientSecret == "" {
		return nil, errors.New("blogger client_id and client_secret are required to refresh tokens")
	}
	if tok.Expiry.IsZero() {
		// an access token of unknown age is treated as expired
		tok.Expiry = time.Unix(1, 0)
	}

	endpoint := googleEndpoint
	if c.TokenURL != "" {
		endpoint.TokenURL = c.TokenURL
	}
	conf := &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       []string{bloggerScope},
	}
	return conf.TokenSource(ctx, tok), nil
}

func readTokenFile(path string) (tokenFile, error) {
	var ft tokenFile
	data, err := os.ReadFile(path)
	if err != nil {
		return ft, errors.Wrapf(err, "read token file %s", path)
	}
	if err := json.Unmarshal(data, &ft); err != nil {
		return ft, errors.Wrapf(err, "parse token file %s", path)
	}
	return ft, nil
}
