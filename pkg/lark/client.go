// Package lark provides a client for the Lark (Feishu) Open Platform API.
//
// The client covers the pieces of the platform a backend service usually
// needs: tenant credentials, messaging, custom-bot webhooks, spreadsheets,
// bitable (multi-dimensional tables), documents, drive downloads and the
// knowledge-space (wiki) node lookup. All calls go through the shared request
// executor in pkg/http, which handles credential headers, retries and the
// {code, msg} response envelope.
package lark

import (
	"time"

	"go.uber.org/zap"

	"github.com/natserract/lark/pkg/config"
	httpclient "github.com/natserract/lark/pkg/http"
)

// Lark is the main client for the Lark Open Platform API
type Lark struct {
	config      *config.Config
	httpClient  *httpclient.Client
	credentials *credentialStore
	logger      *zap.Logger
}

type options struct {
	httpOptions []httpclient.ClientOption
	now         func() time.Time
}

// Option customizes a Lark client.
type Option func(*options)

// WithHTTPOptions passes options through to the underlying request executor.
func WithHTTPOptions(opts ...httpclient.ClientOption) Option {
	return func(o *options) { o.httpOptions = append(o.httpOptions, opts...) }
}

// WithClock replaces time.Now for credential expiry checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// NewLark creates a new Lark client with default production logger
func NewLark(cfg *config.Config, opts ...Option) *Lark {
	logger, _ := zap.NewProduction()
	return NewLarkWithLogger(cfg, logger, opts...)
}

// NewLarkWithLogger creates a new Lark client with a custom logger
func NewLarkWithLogger(cfg *config.Config, logger *zap.Logger, opts ...Option) *Lark {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	store := newCredentialStore(cfg, o.now, logger)

	httpOpts := []httpclient.ClientOption{
		httpclient.WithHTTPClient(newHTTPClient(cfg)),
		httpclient.WithAuthProvider(store),
		httpclient.WithRetryPolicy(retryPolicy(cfg)),
	}
	if cfg.Timeout > 0 {
		httpOpts = append(httpOpts, httpclient.WithDefaultTimeout(cfg.Timeout))
	}
	httpOpts = append(httpOpts, o.httpOptions...)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}
	client := httpclient.NewClientWithLogger(baseURL, logger, httpOpts...)
	store.client = client

	return &Lark{
		config:      cfg,
		httpClient:  client,
		credentials: store,
		logger:      logger,
	}
}

// retryPolicy maps cfg onto the executor policy. Unset delays take the
// executor defaults; MaxRetries is used as given, so zero disables retries.
func retryPolicy(cfg *config.Config) httpclient.RetryPolicy {
	p := httpclient.DefaultRetryPolicy()
	p.MaxRetries = cfg.MaxRetries
	if cfg.InitialRetryDelay > 0 {
		p.InitialDelay = cfg.InitialRetryDelay
	}
	if cfg.MaxRetryDelay > 0 {
		p.MaxDelay = cfg.MaxRetryDelay
	}
	if p.MaxDelay < p.InitialDelay {
		p.MaxDelay = p.InitialDelay
	}
	return p
}

// HTTPClient exposes the request executor for endpoints the client does not wrap.
func (l *Lark) HTTPClient() *httpclient.Client { return l.httpClient }

func (l *Lark) Config() *config.Config { return l.config }
