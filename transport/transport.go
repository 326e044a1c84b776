// Package transport retrieves feed bodies over HTTP through an ordered
// chain of client strategies: the full net/http client, a lower-level
// fasthttp client, and a minimal raw-socket GET as the universal
// fallback.
package transport

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds every request regardless of strategy.
const DefaultTimeout = 20 * time.Second

// maxRedirects bounds redirect following for the strategies that support
// it.
const maxRedirects = 10

// Request describes one feed fetch. Basic auth is attached only when both
// Username and Password are set. TLS verification is strict unless
// InsecureTLS is explicitly enabled.
type Request struct {
	URL         string
	Username    string
	Password    string
	UserAgent   string
	Timeout     time.Duration
	InsecureTLS bool
}

func (r Request) hasAuth() bool {
	return r.Username != "" && r.Password != ""
}

// basicCredentials encodes the request's basic-auth pair for the
// strategies that set the Authorization header by hand.
func basicCredentials(r Request) string {
	return base64.StdEncoding.EncodeToString([]byte(r.Username + ":" + r.Password))
}

// Strategy is one HTTP mechanism in the chain.
type Strategy interface {
	Name() string
	Available() bool
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Chain evaluates strategies in priority order.
type Chain struct {
	strategies []Strategy
}

// NewChain builds a chain from the given strategies, highest priority
// first. With no arguments it builds the default chain: net/http,
// fasthttp, raw.
func NewChain(strategies ...Strategy) *Chain {
	if len(strategies) == 0 {
		strategies = []Strategy{
			NewHTTPStrategy(),
			NewFastHTTPStrategy(),
			NewRawStrategy(),
		}
	}
	return &Chain{strategies: strategies}
}

// Fetch attempts exactly one strategy: the highest-priority one that
// reports itself available. A failure of that strategy is surfaced
// immediately rather than silently falling through to the next one, so a
// request fails with the error of the mechanism that actually ran.
func (c *Chain) Fetch(ctx context.Context, req Request) ([]byte, error) {
	if req.Timeout <= 0 {
		req.Timeout = DefaultTimeout
	}
	for _, s := range c.strategies {
		if !s.Available() {
			continue
		}
		body, err := s.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("%s fetch of '%s' failed with %w", s.Name(), req.URL, err)
		}
		slog.Debug("feed fetched", "strategy", s.Name(), "url", req.URL, "bytes", len(body))
		return body, nil
	}
	return nil, errors.New("no transport strategy available")
}
