package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"auto_blog_publisher/render"
)

func staticTokens(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func samplePost() render.Post {
	return render.Post{Title: "Brew better coffee", HTML: "<p>Grind fresh.</p>", Labels: []string{"coffee"}}
}

func TestPublishSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/blogs/42/posts/", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var payload insertPostPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "blogger#post", payload.Kind)
		assert.Equal(t, "42", payload.Blog.ID)
		assert.Equal(t, "Brew better coffee", payload.Title)
		assert.Equal(t, "<p>Grind fresh.</p>", payload.Content)
		assert.Equal(t, []string{"coffee"}, payload.Labels)

		fmt.Fprint(w, `{"id": "p1", "url": "https://demo.blogspot.com/2026/10/brew.html"}`)
	}))
	defer srv.Close()

	p, err := New(Config{BlogID: "42", BaseURL: srv.URL}, staticTokens("test-token"), nil)
	require.NoError(t, err)

	ref, err := p.Publish(context.Background(), samplePost())
	require.NoError(t, err)
	assert.Equal(t, "p1", ref.ID)
	assert.Equal(t, "https://demo.blogspot.com/2026/10/brew.html", ref.URL)
}

func TestPublishClassifiesFailures(t *testing.T) {
	cases := []struct {
		status int
		body   string
		kind   Kind
	}{
		{http.StatusUnauthorized, `{"error": {"code": 401, "message": "Invalid Credentials"}}`, KindAuth},
		{http.StatusForbidden, `{"error": {"code": 403, "message": "forbidden"}}`, KindAuth},
		{http.StatusTooManyRequests, `{"error": {"code": 429, "message": "Rate Limit Exceeded"}}`, KindQuota},
		{http.StatusBadRequest, `{"error": {"code": 400, "message": "Invalid value"}}`, KindValidation},
		{http.StatusServiceUnavailable, `oops`, KindServer},
		{http.StatusOK, `{"url": "https://x"}`, KindMalformed},
		{http.StatusOK, `not json`, KindMalformed},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%s", tc.status, tc.kind), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.body)
			}))
			defer srv.Close()

			p, err := New(Config{BlogID: "42", BaseURL: srv.URL}, staticTokens("t"), nil)
			require.NoError(t, err)

			ref, err := p.Publish(context.Background(), samplePost())
			require.Error(t, err)
			assert.Empty(t, ref.ID)
			assert.True(t, errors.Is(err, ErrPublish))

			var perr *Error
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.kind, perr.Kind)
		})
	}
}

func TestPublishNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	p, err := New(Config{BlogID: "42", BaseURL: url, Timeout: time.Second}, staticTokens("t"), nil)
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), samplePost())
	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, KindNetwork, perr.Kind)
}

func TestPublishRejectsEmptyPost(t *testing.T) {
	p, err := New(Config{BlogID: "42", BaseURL: "http://127.0.0.1:0"}, staticTokens("t"), nil)
	require.NoError(t, err)
	_, err = p.Publish(context.Background(), render.Post{Title: " "})
	assert.True(t, errors.Is(err, ErrPublish))
}

func TestNewRequiresBlogAndTokens(t *testing.T) {
	_, err := New(Config{}, staticTokens("t"), nil)
	require.Error(t, err)
	_, err = New(Config{BlogID: "1"}, nil, nil)
	require.Error(t, err)
}

func TestTokenSourceRefreshesFromTokenFile(t *testing.T) {
	var refreshes int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "file-refresh", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh-token", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer tokenSrv.Close()

	path := filepath.Join(t.TempDir(), "blogger_token.json")
	expired := time.Now().Add(-time.Hour).Unix()
	require.NoError(t, os.WriteFile(path,
		[]byte(fmt.Sprintf(`{"access_token": "stale", "refresh_token": "file-refresh", "expires_at": %d}`, expired)), 0o600))

	ts, err := NewTokenSource(context.Background(), Credentials{
		ClientID:     "cid",
		ClientSecret: "secret",
		TokenFile:    path,
		TokenURL:     tokenSrv.URL,
	})
	require.NoError(t, err)

	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "fresh-token", tok.AccessToken)
	assert.Equal(t, int32(1), atomic.LoadInt32(&refreshes))
}

func TestTokenSourceRefreshesUndatedToken(t *testing.T) {
	var refreshes int32
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&refreshes, 1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "r", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh-token", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer tokenSrv.Close()

	path := filepath.Join(t.TempDir(), "blogger_token.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token": "yesterday", "refresh_token": "r"}`), 0o600))

	cases := map[string]Credentials{
		"token file": {ClientID: "cid", ClientSecret: "secret", TokenFile: path, TokenURL: tokenSrv.URL},
		"config":     {ClientID: "cid", ClientSecret: "secret", AccessToken: "yesterday", RefreshToken: "r", TokenURL: tokenSrv.URL},
	}
	for name, creds := range cases {
		t.Run(name, func(t *testing.T) {
			before := atomic.LoadInt32(&refreshes)
			ts, err := NewTokenSource(context.Background(), creds)
			require.NoError(t, err)
			tok, err := ts.Token()
			require.NoError(t, err)
			assert.Equal(t, "fresh-token", tok.AccessToken)
			assert.Equal(t, before+1, atomic.LoadInt32(&refreshes))
		})
	}
}

func TestTokenSourceValidation(t *testing.T) {
	_, err := NewTokenSource(context.Background(), Credentials{})
	require.Error(t, err)

	_, err = NewTokenSource(context.Background(), Credentials{RefreshToken: "r"})
	require.Error(t, err)

	ts, err := NewTokenSource(context.Background(), Credentials{AccessToken: "a"})
	require.NoError(t, err)
	tok, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
}
