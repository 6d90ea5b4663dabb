// Package ganjoor is a read-only client for the Ganjoor poetry corpus API.
// Only immutable metadata (category and page titles and URLs) is fetched, so
// responses are cached for the configured TTL.
package ganjoor

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/antonholmquist/jason"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/rmuseum/naskban-go/internal/conf"
	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/httpclient"
	"github.com/rmuseum/naskban-go/internal/logger"
	"github.com/rmuseum/naskban-go/internal/observability/metrics"
)

const (
	componentGanjoor = "ganjoor-client"

	endpointCategory = "cat"
	endpointPage     = "page"

	// DefaultBaseURL is the public Ganjoor API.
	DefaultBaseURL = "https://api.ganjoor.net"
)

// Category is the subset of a Ganjoor category the library needs.
type Category struct {
	ID      int
	Title   string
	FullURL string
}

// Page is the subset of a Ganjoor page the library needs.
type Page struct {
	FullTitle string
	FullURL   string
}

// Config configures the client.
type Config struct {
	BaseURL   string
	CacheTTL  time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Burst     int
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		CacheTTL:  24 * time.Hour,
		RateLimit: 5,
		Burst:     5,
	}
}

// ConfigFromSettings builds a Config from application settings.
func ConfigFromSettings(settings *conf.Settings) Config {
	return Config{
		BaseURL:   settings.Ganjoor.APIURL,
		CacheTTL:  settings.Ganjoor.CacheTTL,
		RateLimit: settings.Ganjoor.RateLimit,
		Burst:     settings.Ganjoor.Burst,
	}
}

// Client talks to the Ganjoor API. Safe for concurrent use.
type Client struct {
	config  Config
	http    *httpclient.Client
	cache   *cache.Cache
	limiter *rate.Limiter
	group   singleflight.Group
	metrics *metrics.GanjoorMetrics
	log     logger.Logger
}

// NewClient creates a client. httpClient, m and log may be nil.
func NewClient(config Config, httpClient *httpclient.Client, m *metrics.GanjoorMetrics, log logger.Logger) *Client {
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if httpClient == nil {
		httpClient = httpclient.New(nil)
	}
	if log == nil {
		log = logger.Global().Module(componentGanjoor)
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if config.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RateLimit), max(config.Burst, 1))
	}

	return &Client{
		config:  config,
		http:    httpClient,
		cache:   cache.New(config.CacheTTL, config.CacheTTL*2),
		limiter: limiter,
		metrics: m,
		log:     log,
	}
}

// Category fetches category metadata. Only the category itself is requested,
// without its poems or main sections.
func (c *Client) Category(ctx context.Context, id int) (*Category, error) {
	key := "cat:" + strconv.Itoa(id)
	v, err := c.cached(ctx, endpointCategory, key, func(ctx context.Context) (any, error) {
		endpoint := fmt.Sprintf("%s/api/ganjoor/cat/%d?poems=false&mainSections=false", c.config.BaseURL, id)
		obj, err := c.getJSON(ctx, endpointCategory, endpoint)
		if err != nil {
			return nil, err
		}
		cat, err := obj.GetObject("cat")
		if err != nil {
			return nil, c.malformed(endpointCategory, err)
		}
		fullURL, err := cat.GetString("fullUrl")
		if err != nil {
			return nil, c.malformed(endpointCategory, err)
		}
		title, _ := cat.GetString("title")
		return &Category{ID: id, Title: title, FullURL: fullURL}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Category), nil
}

// Page fetches page metadata by its site-relative URL.
func (c *Client) Page(ctx context.Context, pageURL string) (*Page, error) {
	key := "page:" + pageURL
	v, err := c.cached(ctx, endpointPage, key, func(ctx context.Context) (any, error) {
		endpoint := fmt.Sprintf("%s/api/ganjoor/page?url=%s", c.config.BaseURL, url.QueryEscape(pageURL))
		obj, err := c.getJSON(ctx, endpointPage, endpoint)
		if err != nil {
			return nil, err
		}
		fullTitle, err := obj.GetString("fullTitle")
		if err != nil {
			return nil, c.malformed(endpointPage, err)
		}
		fullURL, _ := obj.GetString("fullUrl")
		if fullURL == "" {
			fullURL = pageURL
		}
		return &Page{FullTitle: fullTitle, FullURL: fullURL}, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Page), nil
}

// cached serves key from the cache, collapsing concurrent misses into one
// upstream request. Errors are never cached.
func (c *Client) cached(ctx context.Context, endpoint, key string, fetch func(context.Context) (any, error)) (any, error) {
	if v, found := c.cache.Get(key); found {
		c.metrics.RecordCacheLookup(endpoint, true)
		return v, nil
	}
	c.metrics.RecordCacheLookup(endpoint, false)

	v, err, _ := c.group.Do(key, func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(key, v, cache.DefaultExpiration)
		return v, nil
	})
	return v, err
}

func (c *Client) getJSON(ctx context.Context, endpoint, target string) (*jason.Object, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.New(err).
			Component(componentGanjoor).
			Category(errors.CategoryNetwork).
			Context("operation", "rate_limiter_wait").
			Context("endpoint", endpoint).
			Build()
	}

	start := time.Now()
	resp, err := c.http.Get(ctx, target)
	if err != nil {
		c.metrics.RecordRequest(endpoint, metrics.ResultError, time.Since(start))
		c.log.Warn("Ganjoor request failed", logger.String("endpoint", endpoint), logger.Error(err))
		return nil, errors.New(err).
			Component(componentGanjoor).
			Category(errors.CategoryNetwork).
			Context("operation", "get_"+endpoint).
			Build()
	}
	defer resp.Body.Close()
	c.metrics.RecordRequest(endpoint, strconv.Itoa(resp.StatusCode), time.Since(start))

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("Ganjoor returned non-success status",
			logger.String("endpoint", endpoint),
			logger.Int("status", resp.StatusCode))
		return nil, errors.Newf("ganjoor %s request returned status %d", endpoint, resp.StatusCode).
			Component(componentGanjoor).
			Category(errors.CategoryExternal).
			Context("operation", "get_"+endpoint).
			Context("status", resp.StatusCode).
			Build()
	}

	obj, err := jason.NewObjectFromReader(resp.Body)
	if err != nil {
		return nil, c.malformed(endpoint, err)
	}
	return obj, nil
}

func (c *Client) malformed(endpoint string, err error) error {
	return errors.New(fmt.Errorf("malformed ganjoor %s response: %w", endpoint, err)).
		Component(componentGanjoor).
		Category(errors.CategoryExternal).
		Context("operation", "parse_"+endpoint).
		Build()
}
