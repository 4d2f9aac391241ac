package config

import (
	"time"

	"github.com/pkg/errors"
)

// BloggerConfig holds the target blog and its OAuth credentials. A refresh
// token needs the client id and secret; an access token alone works until it
// expires. TokenFile may supply either.
type BloggerConfig struct {
	BlogID       string        `json:"blogId" yaml:"blog_id"`
	ClientID     string        `json:"clientId" yaml:"client_id"`
	ClientSecret string        `json:"clientSecret" yaml:"client_secret"`
	RefreshToken string        `json:"refreshToken" yaml:"refresh_token"`
	AccessToken  string        `json:"accessToken" yaml:"access_token"`
	TokenFile    string        `json:"tokenFile" yaml:"token_file"`
	Labels       []string      `json:"labels" yaml:"labels"`
	BaseURL      string        `json:"baseUrl" yaml:"base_url"`
	Timeout      time.Duration `json:"timeout" yaml:"timeout"`
}

func (b *BloggerConfig) Validate() []error {
	var errs = make([]error, 0)
	if b.BlogID == "" {
		errs = append(errs, errors.New("blogger.blog_id is required"))
	}
	if b.RefreshToken == "" && b.AccessToken == "" && b.TokenFile == "" {
		errs = append(errs, errors.New("blogger credentials missing: set refresh_token, access_token or token_file"))
	}
	if b.RefreshToken != "" && (b.ClientID == "" || b.ClientSecret == "") {
		errs = append(errs, errors.New("blogger.client_id and blogger.client_secret are required with refresh_token"))
	}
	if b.Timeout <= 0 {
		errs = append(errs, errors.New("blogger.timeout must be positive"))
	}
	return errs
}

func NewDefaultBloggerConfig() *BloggerConfig {
	return &BloggerConfig{
		Labels:  []string{"AI", "Daily"},
		Timeout: 60 * time.Second,
	}
}
