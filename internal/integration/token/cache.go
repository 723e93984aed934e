// Package token caches provider bearer tokens and refreshes them lazily.
package token

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/smallbiznis/gstbill/internal/clock"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSkew = 30 * time.Second
	// FetchTimeout bounds a shared fetch once it no longer follows any caller's context.
	FetchTimeout = 30 * time.Second
)

var ErrEmptyToken = errors.New("token source returned an empty token")

// FetchFunc acquires a fresh token from the provider.
type FetchFunc func(ctx context.Context) (*oauth2.Token, error)

// Cache holds one token per adapter instance. Concurrent callers that find the
// token missing or expired share a single fetch.
type Cache struct {
	fetch FetchFunc
	clock clock.Clock
	skew  time.Duration

	mu    sync.RWMutex
	token *oauth2.Token
	group singleflight.Group
}

func NewCache(fetch FetchFunc, clk clock.Clock) *Cache {
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Cache{fetch: fetch, clock: clk, skew: DefaultSkew}
}

// Token returns the cached token or joins a shared fetch. The fetch is
// detached from the caller's cancellation so one caller giving up does not
// fail the others; each caller still returns when its own ctx is done.
func (c *Cache) Token(ctx context.Context) (*oauth2.Token, error) {
	if tok := c.current(); tok != nil {
		return tok, nil
	}

	detached := context.WithoutCancel(ctx)
	ch := c.group.DoChan("token", func() (any, error) {
		if tok := c.current(); tok != nil {
			return tok, nil
		}
		fetchCtx, cancel := context.WithTimeout(detached, FetchTimeout)
		defer cancel()
		tok, err := c.fetch(fetchCtx)
		if err != nil {
			return nil, err
		}
		if tok == nil || tok.AccessToken == "" {
			return nil, ErrEmptyToken
		}
		c.mu.Lock()
		c.token = tok
		c.mu.Unlock()
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*oauth2.Token), nil
	}
}

// Invalidate drops the cached token, e.g. after the provider answered 401.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

func (c *Cache) current() *oauth2.Token {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == nil {
		return nil
	}
	if !c.token.Expiry.IsZero() && !c.clock.Now().Add(c.skew).Before(c.token.Expiry) {
		return nil
	}
	return c.token
}
