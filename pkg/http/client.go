package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// AuthProvider supplies the credential headers for authenticated calls. It
// is consulted before every attempt, so a refreshed token is picked up on retry.
type AuthProvider interface {
	AuthHeaders(ctx context.Context) (map[string]string, error)
}

// RetryNotify observes each scheduled retry: attempt is the 1-based attempt
// that just failed, delay the sleep before the next one.
type RetryNotify func(attempt int, err error, delay time.Duration)

// Client executes RequestOptions against the platform API: header assembly,
// retries with capped exponential backoff, and envelope validation.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	auth           AuthProvider
	policy         RetryPolicy
	timeout        time.Duration
	defaultHeaders map[string]string
	notify         RetryNotify
	logger         *zap.Logger
}

type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Envelope is the {code, msg} pair present on every JSON response.
type Envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Result is an envelope whose payload lives under "data".
type Result[T any] struct {
	Envelope
	Data T `json:"data"`
}

type ClientOption func(*Client)

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = hc }
}

func WithAuthProvider(p AuthProvider) ClientOption {
	return func(c *Client) { c.auth = p }
}

func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) { c.policy = p }
}

// WithDefaultTimeout sets the per-attempt timeout used when a call has no override.
func WithDefaultTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.timeout = d }
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) { c.defaultHeaders[key] = value }
}

func WithRetryNotify(fn RetryNotify) ClientOption {
	return func(c *Client) { c.notify = fn }
}

func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// TransportConfig holds the connection settings of the default transport.
type TransportConfig struct {
	ConnectTimeout     time.Duration
	MaxConnections     int
	MaxIdleConnections int
}

// NewTransport builds a transport that never reuses connections between calls.
func NewTransport(cfg TransportConfig) *http.Transport {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnTimeout
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = DefaultMaxConns
	}
	if cfg.MaxIdleConnections < 0 {
		cfg.MaxIdleConnections = DefaultMaxIdleConns
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: cfg.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: cfg.ConnectTimeout,
		DisableKeepAlives:   true,
		MaxConnsPerHost:     cfg.MaxConnections,
		MaxIdleConns:        cfg.MaxIdleConnections,
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	logger, _ := zap.NewProduction()
	return NewClientWithLogger(baseURL, logger, opts...)
}

// NewClientWithLogger creates a new HTTP client with a custom logger
func NewClientWithLogger(baseURL string, logger *zap.Logger, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{
			Transport: NewTransport(TransportConfig{}),
		},
		baseURL: baseURL,
		policy:  DefaultRetryPolicy(),
		timeout: DefaultTimeout,
		defaultHeaders: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "natserract-lark-go/1.0",
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Logger returns the client's logger.
func (c *Client) Logger() *zap.Logger { return c.logger }

// RetryPolicy returns the policy applied when a call has no retry override.
func (c *Client) RetryPolicy() RetryPolicy { return c.policy }

// Do runs the request pipeline. Unless opts asks for the raw response, the
// body is checked to be a JSON envelope with code == 0.
func (c *Client) Do(ctx context.Context, opts *RequestOptions) (*Response, error) {
	if opts == nil {
		return nil, errors.New("request options are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	endpoint, err := BuildURL(c.baseURL, opts.path, opts.params)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL: %w", err)
	}
	body, contentType, err := opts.encodeBody()
	if err != nil {
		return nil, err
	}

	maxRetries := c.policy.MaxRetries
	if n, ok := opts.MaxRetries(); ok {
		maxRetries = n
	}
	timeout := c.timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	requestID := uuid.NewString()
	logger := c.logger.With(
		zap.String("method", opts.method),
		zap.String("path", opts.path),
		zap.String("request_id", requestID))

	attempt := 0
	operation := func() (*Response, error) {
		attempt++
		req, err := c.newRequest(ctx, opts, endpoint, body, contentType, requestID)
		if err != nil {
			logger.Error("Failed to build request", zap.Error(err))
			return nil, backoff.Permanent(err)
		}

		logger.Debug("Making HTTP request", zap.Int("attempt", attempt))
		resp, err := c.send(ctx, req, timeout)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, backoff.Permanent(ctxErr)
			}
			if !IsRetryable(err) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return resp, nil
	}

	resp, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(newPolicyBackOff(c.policy, maxRetries)),
		backoff.WithMaxTries(uint(maxRetries)+1),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, delay time.Duration) {
			logger.Warn("HTTP request failed, will retry",
				zap.Error(err),
				zap.Int("attempt", attempt),
				zap.Int("retries_left", maxRetries-attempt),
				zap.Duration("delay", delay))
			if c.notify != nil {
				c.notify(attempt, err, delay)
			}
		}),
	)
	if err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			err = permanent.Unwrap()
		}
		logger.Error("HTTP request failed",
			zap.Error(err),
			zap.Int("attempts", attempt))
		return nil, err
	}

	if opts.rawResponse {
		logger.Debug("Returning raw response",
			zap.Int("status_code", resp.StatusCode),
			zap.Int("bytes", len(resp.Body)))
		return resp, nil
	}

	if err := checkEnvelope(resp.Body); err != nil {
		var apiErr *RemoteAPIError
		if errors.As(err, &apiErr) {
			logger.Error("API returned error code",
				zap.Int("code", apiErr.Code),
				zap.String("msg", apiErr.Msg))
		} else {
			logger.Error("Bad response", zap.Error(err))
		}
		return nil, err
	}

	logger.Debug("HTTP request successful",
		zap.Int("status_code", resp.StatusCode),
		zap.Int("attempts", attempt))
	return resp, nil
}

// Raw performs a call whose response is returned untouched (binary downloads).
func (c *Client) Raw(ctx context.Context, method, path string, opts ...Option) (*Response, error) {
	ro, err := NewRequestOptions(method, path, append(opts, WithRawResponse())...)
	if err != nil {
		return nil, err
	}
	return c.Do(ctx, ro)
}

// Execute runs opts and decodes the envelope-checked body into T. If *T has a
// Validate() error method it is called after decoding.
func Execute[T any](ctx context.Context, c *Client, opts *RequestOptions) (*T, error) {
	if opts != nil && opts.rawResponse {
		return nil, ErrRawTarget
	}
	resp, err := c.Do(ctx, opts)
	if err != nil {
		return nil, err
	}
	return decode[T](resp.Body)
}

func Get[T any](ctx context.Context, c *Client, path string, opts ...Option) (*T, error) {
	return request[T](ctx, c, http.MethodGet, path, nil, opts)
}

func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...Option) (*T, error) {
	return request[T](ctx, c, http.MethodPost, path, body, opts)
}

func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...Option) (*T, error) {
	return request[T](ctx, c, http.MethodPut, path, body, opts)
}

func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...Option) (*T, error) {
	return request[T](ctx, c, http.MethodPatch, path, body, opts)
}

func Delete[T any](ctx context.Context, c *Client, path string, opts ...Option) (*T, error) {
	return request[T](ctx, c, http.MethodDelete, path, nil, opts)
}

func request[T any](ctx context.Context, c *Client, method, path string, body any, opts []Option) (*T, error) {
	all := make([]Option, 0, len(opts)+1)
	if body != nil {
		all = append(all, WithJSON(body))
	}
	all = append(all, opts...)
	ro, err := NewRequestOptions(method, path, all...)
	if err != nil {
		return nil, err
	}
	return Execute[T](ctx, c, ro)
}

func (c *Client) newRequest(ctx context.Context, opts *RequestOptions, endpoint string, body []byte, contentType, requestID string) (*http.Request, error) {
	headers, err := c.buildHeaders(ctx, opts, contentType)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}
	req, err := http.NewRequest(opts.method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = headers
	if req.Header.Get("X-Request-Id") == "" {
		req.Header.Set("X-Request-Id", requestID)
	}
	req.Close = true
	return req, nil
}

// buildHeaders layers defaults, per-call headers, credentials and the body
// content type. Connection: close is always set.
func (c *Client) buildHeaders(ctx context.Context, opts *RequestOptions, contentType string) (http.Header, error) {
	headers := make(http.Header)
	for k, v := range c.defaultHeaders {
		headers.Set(k, v)
	}
	for k, v := range opts.headers {
		headers.Set(k, v)
	}

	if !opts.skipAuth && c.auth != nil {
		authHeaders, err := c.auth.AuthHeaders(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get auth headers: %w", err)
		}
		for k, v := range authHeaders {
			headers.Set(k, v)
		}
	}

	switch opts.kind() {
	case bodyJSON:
		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", contentType)
		}
	case bodyMultipart:
		headers.Set("Content-Type", contentType)
	case bodyContent:
		if headers.Get("Content-Type") == "" && contentType != "" {
			headers.Set("Content-Type", contentType)
		}
	}

	headers.Set("Connection", "close")
	return headers, nil
}

// send performs one attempt. The attempt deadline covers the round trip and
// reading the body, not the backoff sleeps between attempts.
func (c *Client) send(ctx context.Context, req *http.Request, timeout time.Duration) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := req.URL.Redacted()
	httpResp, err := c.httpClient.Do(req.WithContext(attemptCtx))
	if err != nil {
		return nil, classifyTransportError(attemptCtx, req.Method, url, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(attemptCtx, req.Method, url, fmt.Errorf("failed to read response body: %w", err))
	}

	if httpResp.StatusCode >= 400 {
		return nil, newStatusError(httpResp.StatusCode, body)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       body,
	}, nil
}

func classifyTransportError(attemptCtx context.Context, method, url string, err error) error {
	var netErr net.Error
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return &TimeoutError{Method: method, URL: url, Err: err}
	}
	return &ConnectionError{Method: method, URL: url, Err: err}
}

func newStatusError(status int, body []byte) *StatusError {
	e := &StatusError{StatusCode: status, Body: body}
	if gjson.ValidBytes(body) {
		if code := gjson.GetBytes(body, "code"); code.Type == gjson.Number {
			e.Code = int(code.Int())
			e.Msg = gjson.GetBytes(body, "msg").String()
		}
	}
	return e
}

// checkEnvelope validates the {code, msg} envelope of a successful response.
func checkEnvelope(body []byte) error {
	if !gjson.ValidBytes(body) {
		return &BadResponseError{Reason: "body is not valid JSON", Body: body}
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return &BadResponseError{Reason: "body is not a JSON object", Body: body}
	}
	code := root.Get("code")
	if code.Type != gjson.Number {
		return &BadResponseError{Reason: "response has no integer code field", Body: body}
	}
	if code.Int() != 0 {
		apiErr := &RemoteAPIError{
			Code: int(code.Int()),
			Msg:  root.Get("msg").String(),
			Body: body,
		}
		if detail := root.Get("error"); detail.Exists() {
			apiErr.Detail = detail.Value()
		}
		return apiErr
	}
	return nil
}

type validator interface {
	Validate() error
}

func decode[T any](body []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(body, out); err != nil {
		return nil, &BadResponseError{Reason: fmt.Sprintf("cannot decode into %T", *out), Body: body, Err: err}
	}
	if v, ok := any(out).(validator); ok {
		if err := v.Validate(); err != nil {
			return nil, &BadResponseError{Reason: fmt.Sprintf("invalid %T", *out), Body: body, Err: err}
		}
	}
	return out, nil
}
