package utils

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultClientTimeout = 10 * time.Second
	defaultPoolSize      = 8
	defaultDialTimeout   = 2 * time.Second
)

// ClientConfig tunes the pooled client used for the scoring endpoint.
// Zero values fall back to defaults.
type ClientConfig struct {
	// Timeout bounds the whole request, and caps the response header wait.
	Timeout time.Duration
	// PoolSize is the connection limit per host; it should match the number of concurrent scoring calls.
	PoolSize    int
	DialTimeout time.Duration
}

type ClientOption func(*ClientConfig)

func WithClientTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.Timeout = d }
}

func WithPoolSize(n int) ClientOption {
	return func(c *ClientConfig) { c.PoolSize = n }
}

func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.DialTimeout = d }
}

// NewHTTPClient builds a client with its own transport so idle connections are kept warm
// for one endpoint and never shared with http.DefaultTransport.
func NewHTTPClient(opts ...ClientOption) *http.Client {
	cfg := ClientConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClientTimeout
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = defaultPoolSize
	}
	if cfg.DialTimeout <= 0 || cfg.DialTimeout > cfg.Timeout {
		cfg.DialTimeout = min(defaultDialTimeout, cfg.Timeout)
	}

	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxConnsPerHost:       cfg.PoolSize,
		MaxIdleConns:          cfg.PoolSize,
		MaxIdleConnsPerHost:   cfg.PoolSize,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: tr, Timeout: cfg.Timeout}
}
