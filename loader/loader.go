// Package loader orchestrates the cache gateway and the transport chain
// to produce normalized feeds: fresh cache read, network fetch on miss,
// write-through, lenient XML parse, dialect detection and normalization.
package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/beevik/etree"

	"github.com/scipunch/feedfetch/cache"
	"github.com/scipunch/feedfetch/config"
	"github.com/scipunch/feedfetch/feed"
	"github.com/scipunch/feedfetch/transport"
)

// Loader is a long-lived feed loader. Its configuration is fixed at
// construction; there are no process-wide mutable settings.
type Loader struct {
	cache       *cache.Store
	chain       *transport.Chain
	userAgent   string
	insecureTLS bool
}

// New builds a Loader from configuration with the default transport
// chain.
func New(conf config.Config) (*Loader, error) {
	return NewWithChain(conf, transport.NewChain())
}

// NewWithChain builds a Loader with an explicit transport chain, letting
// callers substitute strategies.
func NewWithChain(conf config.Config, chain *transport.Chain) (*Loader, error) {
	store, err := cache.New(conf.CacheDir, conf.CacheExpire)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cache with %w", err)
	}
	ua := conf.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}
	return &Loader{
		cache:       store,
		chain:       chain,
		userAgent:   ua,
		insecureTLS: conf.InsecureTLS,
	}, nil
}

// Cache exposes the underlying store for maintenance operations such as
// Clear and Stats.
func (l *Loader) Cache() *cache.Store { return l.cache }

// Load fetches, parses and normalizes a feed, detecting the dialect.
// user and pass may be empty; when both are set they are sent as HTTP
// basic auth and become part of the cache fingerprint.
func (l *Loader) Load(ctx context.Context, url, user, pass string) (*feed.Feed, error) {
	doc, err := l.loadXML(ctx, url, user, pass)
	if err != nil {
		return nil, err
	}
	return feed.New(doc)
}

// LoadRSS is Load with the dialect forced to RSS; a non-RSS document
// fails with a format error.
func (l *Loader) LoadRSS(ctx context.Context, url, user, pass string) (*feed.Feed, error) {
	doc, err := l.loadXML(ctx, url, user, pass)
	if err != nil {
		return nil, err
	}
	return feed.NewRSS(doc)
}

// LoadAtom is Load with the dialect forced to Atom.
func (l *Loader) LoadAtom(ctx context.Context, url, user, pass string) (*feed.Feed, error) {
	doc, err := l.loadXML(ctx, url, user, pass)
	if err != nil {
		return nil, err
	}
	return feed.NewAtom(doc)
}

// loadXML produces the parsed document: fresh cache hit, else network
// fetch with write-through, else stale cache as a last resort. A body
// that is empty after trimming counts as a failed fetch.
func (l *Loader) loadXML(ctx context.Context, url, user, pass string) (*etree.Document, error) {
	body, hit := l.cache.Read(url, user, pass)
	if hit {
		slog.Debug("cache hit", "url", url, "bytes", len(body))
	} else {
		fetched, err := l.chain.Fetch(ctx, transport.Request{
			URL:         url,
			Username:    user,
			Password:    pass,
			UserAgent:   l.userAgent,
			Timeout:     transport.DefaultTimeout,
			InsecureTLS: l.insecureTLS,
		})
		if err == nil && len(bytes.TrimSpace(fetched)) == 0 {
			err = errors.New("empty response body")
		}
		if err != nil {
			stale, ok := l.cache.ReadStale(url, user, pass)
			if !ok {
				return nil, fmt.Errorf("%w '%s': %w", feed.ErrConnection, url, err)
			}
			slog.Warn("fetch failed, serving stale cache entry", "url", url, "error", err)
			body = stale
		} else {
			body = fetched
			if werr := l.cache.Write(url, user, pass, body); werr != nil {
				return nil, fmt.Errorf("%w: %w", feed.ErrCache, werr)
			}
		}
	}

	// Permissive mode suppresses most well-formedness complaints, and
	// CDATA sections are merged into plain character data.
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, fmt.Errorf("%w: %w", feed.ErrParse, err)
	}
	return doc, nil
}
