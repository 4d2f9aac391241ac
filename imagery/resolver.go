// Package imagery finds a cover image for a post.
package imagery

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrUnavailable is returned when no suitable image could be found.
var ErrUnavailable = errors.New("image unavailable")

// Asset is a directly dereferenceable image.
type Asset struct {
	URL         string `json:"url"`
	Alt         string `json:"alt,omitempty"`
	Attribution string `json:"attribution,omitempty"`
	// AttributionURL links the attribution text, when the source requires it.
	AttributionURL string `json:"attribution_url,omitempty"`
}

// Resolver finds an image for a topic.
type Resolver interface {
	Resolve(ctx context.Context, topic string) (Asset, error)
}

// Chain tries each resolver in order and returns the first image found.
type Chain struct {
	resolvers []Resolver
	logger    *zap.SugaredLogger
}

func NewChain(logger *zap.SugaredLogger, resolvers ...Resolver) *Chain {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Chain{resolvers: resolvers, logger: logger}
}

func (c *Chain) Resolve(ctx context.Context, topic string) (Asset, error) {
	var lastErr error
	for i, r := range c.resolvers {
		asset, err := r.Resolve(ctx, topic)
		if err == nil {
			return asset, nil
		}
		c.logger.Infow("image resolver failed, trying next", "resolver", i, "topic", topic, "error", err)
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	if lastErr == nil {
		return Asset{}, errors.Wrap(ErrUnavailable, "no resolvers configured")
	}
	if errors.Is(lastErr, ErrUnavailable) {
		return Asset{}, lastErr
	}
	return Asset{}, unavailable(lastErr)
}

// unavailable tags err as ErrUnavailable; the cause still matches errors.Is.
func unavailable(err error) error { return unavailableError{cause: err} }

type unavailableError struct{ cause error }

func (e unavailableError) Error() string   { return ErrUnavailable.Error() + ": " + e.cause.Error() }
func (e unavailableError) Unwrap() []error { return []error{ErrUnavailable, e.cause} }
