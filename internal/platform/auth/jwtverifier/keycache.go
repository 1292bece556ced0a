package jwtverifier

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultRefreshInterval is the minimum gap between two downloads of the key set.
const DefaultRefreshInterval = 30 * time.Second

const defaultFetchTimeout = 10 * time.Second

// KeyCache resolves a public verification key by key id.
type KeyCache interface {
	Key(ctx context.Context, kid string) (any, error)
}

// JWKSCache is a lookup-or-fetch-once KeyCache backed by a remote JWKS document.
//
// A key, once cached, is kept for the lifetime of the cache. A key rotated at the provider
// under the same kid is therefore not picked up until the process restarts. Keys published
// under a new kid are picked up by the next refresh.
//
// Unknown kids never cause more than one download per refresh interval, whatever the kid.
// Inside the interval they resolve to ErrKeyNotFound, or to the last fetch error if the
// last download failed.
//
// It is safe for concurrent use; concurrent misses for the same kid share one fetch.
type JWKSCache struct {
	url    string
	client *http.Client
	clock  Clock

	mu        sync.RWMutex
	keys      map[string]any
	refresh   *rate.Limiter
	lastFetch error

	group   singleflight.Group
	fetches atomic.Int64
}

// CacheOption configures a JWKSCache.
type CacheOption func(*JWKSCache)

// WithRefreshInterval sets the minimum gap between downloads. Zero disables throttling.
func WithRefreshInterval(d time.Duration) CacheOption {
	return func(c *JWKSCache) {
		if d <= 0 {
			c.refresh = rate.NewLimiter(rate.Inf, 1)
			return
		}
		c.refresh = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithCacheClock sets the clock the refresh throttle reads.
func WithCacheClock(clk Clock) CacheOption {
	return func(c *JWKSCache) {
		if clk != nil {
			c.clock = clk
		}
	}
}

func NewJWKSCache(url string, client *http.Client, opts ...CacheOption) *JWKSCache {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	c := &JWKSCache{
		url:     url,
		client:  client,
		clock:   realClock{},
		keys:    map[string]any{},
		refresh: rate.NewLimiter(rate.Every(DefaultRefreshInterval), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *JWKSCache) Key(ctx context.Context, kid string) (any, error) {
	if key, ok := c.lookup(kid); ok {
		return key, nil
	}

	// The fetch outlives any single caller; waiters on the same kid share its result.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, _ := c.group.Do(kid, func() (any, error) {
		// Another caller may have completed a fetch between lookup and Do.
		if key, ok := c.lookup(kid); ok {
			return key, nil
		}
		if !c.refresh.AllowN(c.clock.Now(), 1) {
			return nil, c.throttled()
		}
		return c.fetch(fetchCtx, kid)
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Fetches reports how many times the remote key set has been downloaded.
func (c *JWKSCache) Fetches() int64 {
	return c.fetches.Load()
}

func (c *JWKSCache) lookup(kid string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.keys[kid]
	return k, ok
}

func (c *JWKSCache) throttled() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.lastFetch != nil {
		return fmt.Errorf("jwks: refresh throttled after failed fetch: %w", c.lastFetch)
	}
	return ErrKeyNotFound
}

func (c *JWKSCache) fetch(ctx context.Context, kid string) (any, error) {
	set, err := c.download(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastFetch = err
	if err != nil {
		return nil, err
	}
	for id, key := range set.ReadOnlyKeys() {
		if _, exists := c.keys[id]; !exists {
			c.keys[id] = key
		}
	}
	key, ok := c.keys[kid]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return key, nil
}

func (c *JWKSCache) download(ctx context.Context) (*keyfunc.JWKS, error) {
	if c.url == "" {
		return nil, errors.New("jwks: no key set url configured")
	}
	ctx, cancel := context.WithTimeout(ctx, defaultFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	c.fetches.Add(1)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("jwks fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	set, err := keyfunc.NewJSON(body)
	if err != nil {
		return nil, fmt.Errorf("jwks parse: %w", err)
	}
	return set, nil
}
