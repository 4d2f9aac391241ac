package imagery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

const (
	defaultUnsplashURL = "https://api.unsplash.com"
	// sizing parameters understood by the Unsplash CDN
	coverParams = "w=1200&h=630&fit=crop&auto=format&q=85"
)

type unsplashSearchResp struct {
	Results []struct {
		ID             string `json:"id"`
		AltDescription string `json:"alt_description"`
		URLs           struct {
			Raw     string `json:"raw"`
			Regular string `json:"regular"`
		} `json:"urls"`
		User struct {
			Name  string `json:"name"`
			Links struct {
				HTML string `json:"html"`
			} `json:"links"`
		} `json:"user"`
	} `json:"results"`
}

// Unsplash resolves images through the Unsplash search API.
type Unsplash struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// UnsplashOption customises the client.
type UnsplashOption func(*Unsplash)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) UnsplashOption {
	return func(c *Unsplash) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithHTTPClient replaces the HTTP client. Redirects are never followed.
func WithHTTPClient(hc *http.Client) UnsplashOption {
	return func(c *Unsplash) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLimiter replaces the request limiter.
func WithLimiter(l *rate.Limiter) UnsplashOption {
	return func(c *Unsplash) {
		if l != nil {
			c.limiter = l
		}
	}
}

func NewUnsplash(accessKey string, timeout time.Duration, opts ...UnsplashOption) (*Unsplash, error) {
	if accessKey == "" {
		return nil, errors.New("unsplash access key is required")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	c := &Unsplash{
		accessKey:  accessKey,
		baseURL:    defaultUnsplashURL,
		httpClient: &http.Client{Timeout: timeout},
		// Demo keys allow 50 requests per hour
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	noRedirect := *c.httpClient
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	c.httpClient = &noRedirect
	return c, nil
}

func (c *Unsplash) Resolve(ctx context.Context, topic string) (Asset, error) {
	query := strings.TrimSpace(topic)
	if query == "" {
		return Asset{}, errors.Wrap(ErrUnavailable, "empty topic")
	}

	resp, err := c.search(ctx, query)
	if err != nil {
		return Asset{}, err
	}

	for _, r := range resp.Results {
		src := sizedURL(r.URLs.Raw, r.URLs.Regular)
		if src == "" {
			continue
		}
		if err := c.verify(ctx, src); err != nil {
			continue
		}
		asset := Asset{URL: src, Alt: r.AltDescription}
		if asset.Alt == "" {
			asset.Alt = query
		}
		if r.User.Name != "" {
			asset.Attribution = fmt.Sprintf("Photo by %s on Unsplash", r.User.Name)
			asset.AttributionURL = r.User.Links.HTML
		}
		return asset, nil
	}
	return Asset{}, errors.Wrapf(ErrUnavailable, "no usable unsplash result for %q", query)
}

func (c *Unsplash) search(ctx context.Context, query string) (unsplashSearchResp, error) {
	var data unsplashSearchResp
	if err := c.limiter.Wait(ctx); err != nil {
		return data, unavailable(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search/photos", nil)
	if err != nil {
		return data, unavailable(err)
	}
	q := req.URL.Query()
	q.Set("query", query)
	q.Set("orientation", "landscape")
	q.Set("per_page", "5")
	q.Set("content_filter", "high")
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return data, unavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return data, errors.Wrapf(ErrUnavailable, "unsplash search status: %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return data, unavailable(errors.Wrap(err, "decode search"))
	}
	return data, nil
}

// verify requires the URL itself to serve an image, not a redirect.
func (c *Unsplash) verify(ctx context.Context, src string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, src, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("image status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return errors.Errorf("unexpected content type %q", ct)
	}
	return nil
}

func sizedURL(raw, regular string) string {
	if raw == "" {
		return regular
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") {
		return regular
	}
	q := u.Query()
	params, _ := url.ParseQuery(coverParams)
	for k, v := range params {
		q[k] = v
	}
	u.RawQuery = q.Encode()
	return u.String()
}
