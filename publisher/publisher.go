// Package publisher submits rendered posts to Blogger.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"auto_blog_publisher/render"
)

const defaultBloggerURL = "https://www.googleapis.com/blogger/v3"

// ErrPublish is matched by every Publish failure.
var ErrPublish = errors.New("publish failed")

// Kind classifies a publish failure.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindQuota      Kind = "quota"
	KindValidation Kind = "validation"
	KindNetwork    Kind = "network"
	KindServer     Kind = "server"
	KindMalformed  Kind = "malformed_response"
)

// Error describes a failed publish. Nothing was published when it is returned.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("publish failed (")
	b.WriteString(string(e.Kind))
	if e.Status != 0 {
		fmt.Fprintf(&b, ", status %d", e.Status)
	}
	b.WriteString(")")
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrPublish }

// PostRef identifies a live post.
type PostRef struct {
	ID  string
	URL string
}

// Config holds the Blogger target.
type Config struct {
	BlogID  string
	BaseURL string
	Timeout time.Duration
}

type blogRef struct {
	ID string `json:"id"`
}

type insertPostPayload struct {
	Kind    string   `json:"kind"`
	Blog    blogRef  `json:"blog"`
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Labels  []string `json:"labels,omitempty"`
}

type insertPostResp struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
}

type apiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Publisher posts to one blog.
type Publisher struct {
	cfg    Config
	client *http.Client
	logger *zap.SugaredLogger
}

// New creates a Publisher whose requests are authorised by tokens.
func New(cfg Config, tokens oauth2.TokenSource, logger *zap.SugaredLogger) (*Publisher, error) {
	if cfg.BlogID == "" {
		return nil, errors.New("blogger blog_id is required")
	}
	if tokens == nil {
		return nil, errors.New("blogger token source is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBloggerURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &oauth2.Transport{Source: tokens, Base: http.DefaultTransport},
	}
	return &Publisher{cfg: cfg, client: client, logger: logger}, nil
}

// Publish creates a live post. Either a PostRef with a non-empty ID is
// returned or nothing was published.
func (p *Publisher) Publish(ctx context.Context, post render.Post) (PostRef, error) {
	if strings.TrimSpace(post.Title) == "" || strings.TrimSpace(post.HTML) == "" {
		return PostRef{}, &Error{Kind: KindValidation, Message: "title and content are required"}
	}
	payload := insertPostPayload{
		Kind:    "blogger#post",
		Blog:    blogRef{ID: p.cfg.BlogID},
		Title:   post.Title,
		Content: post.HTML,
		Labels:  post.Labels,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return PostRef{}, &Error{Kind: KindValidation, Err: err}
	}

	endpoint := fmt.Sprintf("%s/blogs/%s/posts/", p.cfg.BaseURL, p.cfg.BlogID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return PostRef{}, &Error{Kind: KindValidation, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Infow("submitting post", "blog_id", p.cfg.BlogID, "title", post.Title, "bytes", len(post.HTML))
	resp, err := p.client.Do(req)
	if err != nil {
		return PostRef{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return PostRef{}, &Error{Kind: KindNetwork, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return PostRef{}, &Error{Kind: kindForStatus(resp.StatusCode), Status: resp.StatusCode, Message: apiMessage(raw)}
	}

	var data insertPostResp
	if err := json.Unmarshal(raw, &data); err != nil {
		return PostRef{}, &Error{Kind: KindMalformed, Status: resp.StatusCode, Err: err}
	}
	if data.ID == "" {
		return PostRef{}, &Error{Kind: KindMalformed, Status: resp.StatusCode, Message: "response has no post id"}
	}
	p.logger.Infow("post published", "post_id", data.ID, "url", data.URL)
	return PostRef{ID: data.ID, URL: data.URL}, nil
}

func kindForStatus(status int) Kind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return KindAuth
	case status == http.StatusTooManyRequests:
		return KindQuota
	case status >= 400 && status < 500:
		return KindValidation
	default:
		return KindServer
	}
}

// classifyTransportError separates token refresh failures from network errors.
func classifyTransportError(err error) error {
	var rerr *oauth2.RetrieveError
	if errors.As(err, &rerr) {
		status := 0
		if rerr.Response != nil {
			status = rerr.Response.StatusCode
		}
		return &Error{Kind: KindAuth, Status: status, Message: "token refresh failed", Err: err}
	}
	return &Error{Kind: KindNetwork, Err: err}
}

func apiMessage(raw []byte) string {
	var e apiErrorResp
	if err := json.Unmarshal(raw, &e); err == nil && e.Error.Message != "" {
		return e.Error.Message
	}
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
