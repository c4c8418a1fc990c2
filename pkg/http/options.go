package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"
)

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyJSON
	bodyContent
	bodyMultipart
)

// FilePart is one file field of a multipart body.
type FilePart struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RequestOptions describes a single API call. Build it with NewRequestOptions;
// it is not modified afterwards.
type RequestOptions struct {
	method      string
	path        string
	headers     map[string]string
	params      map[string]string
	timeout     time.Duration
	maxRetries  *int
	skipAuth    bool
	rawResponse bool

	kinds       int
	jsonBody    any
	content     []byte
	contentType string
	fields      map[string]string
	files       map[string]FilePart
}

type Option func(*RequestOptions)

// WithHeaders merges headers into the request, overriding the client defaults.
func WithHeaders(headers map[string]string) Option {
	return func(o *RequestOptions) {
		for k, v := range headers {
			o.headers[k] = v
		}
	}
}

func WithHeader(key, value string) Option {
	return func(o *RequestOptions) { o.headers[key] = value }
}

// WithParams merges query parameters. Empty values are dropped when the URL is built.
func WithParams(params map[string]string) Option {
	return func(o *RequestOptions) {
		for k, v := range params {
			o.params[k] = v
		}
	}
}

func WithParam(key, value string) Option {
	return func(o *RequestOptions) { o.params[key] = value }
}

// WithJSON sets a JSON body. A nil body leaves the request without one.
func WithJSON(body any) Option {
	return func(o *RequestOptions) {
		if body == nil {
			return
		}
		o.jsonBody = body
		o.kinds |= 1 << bodyJSON
	}
}

// WithContent sets a raw byte body. contentType may be empty.
func WithContent(content []byte, contentType string) Option {
	return func(o *RequestOptions) {
		o.content = content
		o.contentType = contentType
		o.kinds |= 1 << bodyContent
	}
}

// WithMultipart sets a multipart/form-data body from plain fields and files.
func WithMultipart(fields map[string]string, files map[string]FilePart) Option {
	return func(o *RequestOptions) {
		o.fields = fields
		o.files = files
		o.kinds |= 1 << bodyMultipart
	}
}

// WithTimeout bounds each attempt of this call. Zero keeps the client default.
func WithTimeout(d time.Duration) Option {
	return func(o *RequestOptions) { o.timeout = d }
}

func WithMaxRetries(n int) Option {
	return func(o *RequestOptions) { o.maxRetries = &n }
}

// WithoutAuth skips credential lookup and the Authorization header.
func WithoutAuth() Option {
	return func(o *RequestOptions) { o.skipAuth = true }
}

// WithRawResponse returns the transport response untouched instead of
// validating the JSON envelope.
func WithRawResponse() Option {
	return func(o *RequestOptions) { o.rawResponse = true }
}

func NewRequestOptions(method, path string, opts ...Option) (*RequestOptions, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
	default:
		return nil, fmt.Errorf("request options: unsupported method %q", method)
	}
	if path == "" {
		return nil, fmt.Errorf("request options: path is required")
	}

	o := &RequestOptions{
		method:  method,
		path:    path,
		headers: make(map[string]string),
		params:  make(map[string]string),
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.kinds&(o.kinds-1) != 0 {
		return nil, ErrConflictingBody
	}
	if o.maxRetries != nil && *o.maxRetries < 0 {
		return nil, fmt.Errorf("request options: max retries must be non-negative, got %d", *o.maxRetries)
	}
	if o.timeout < 0 {
		return nil, fmt.Errorf("request options: timeout must be non-negative, got %s", o.timeout)
	}
	return o, nil
}

func (o *RequestOptions) Method() string { return o.method }
func (o *RequestOptions) Path() string   { return o.path }

// Headers returns a copy of the per-call headers.
func (o *RequestOptions) Headers() map[string]string { return copyMap(o.headers) }

// Params returns a copy of the query parameters, including empty ones.
func (o *RequestOptions) Params() map[string]string { return copyMap(o.params) }

func (o *RequestOptions) Timeout() time.Duration { return o.timeout }

// MaxRetries returns the per-call retry override, if any.
func (o *RequestOptions) MaxRetries() (int, bool) {
	if o.maxRetries == nil {
		return 0, false
	}
	return *o.maxRetries, true
}

func (o *RequestOptions) SkipAuth() bool    { return o.skipAuth }
func (o *RequestOptions) RawResponse() bool { return o.rawResponse }

func (o *RequestOptions) kind() bodyKind {
	switch {
	case o.kinds&(1<<bodyJSON) != 0:
		return bodyJSON
	case o.kinds&(1<<bodyContent) != 0:
		return bodyContent
	case o.kinds&(1<<bodyMultipart) != 0:
		return bodyMultipart
	}
	return bodyNone
}

// encodeBody serializes the body once per call so every attempt sends the
// same bytes (and the same multipart boundary).
func (o *RequestOptions) encodeBody() ([]byte, string, error) {
	switch o.kind() {
	case bodyJSON:
		b, err := json.Marshal(o.jsonBody)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		return b, "application/json; charset=utf-8", nil
	case bodyContent:
		return o.content, o.contentType, nil
	case bodyMultipart:
		return encodeMultipart(o.fields, o.files)
	}
	return nil, "", nil
}

func encodeMultipart(fields map[string]string, files map[string]FilePart) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for _, name := range sortedKeys(fields) {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart field %s: %w", name, err)
		}
	}
	for _, name := range sortedKeys(files) {
		part := files[name]
		filename := part.Filename
		if filename == "" {
			filename = name
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, escapeQuotes(name), escapeQuotes(filename)))
		ct := part.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart file %s: %w", name, err)
		}
		if _, err := pw.Write(part.Data); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart file %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

var placeholderRe = regexp.MustCompile(`\{([^{}]+)\}`)

// FormatPath substitutes {name} placeholders in template with path-escaped values.
func FormatPath(template string, values map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(template, func(token string) string {
		name := token[1 : len(token)-1]
		v, ok := values[name]
		if !ok || v == "" {
			if missing == "" {
				missing = name
			}
			return token
		}
		return url.PathEscape(v)
	})
	if missing != "" {
		return "", fmt.Errorf("%w %q in %s", ErrMissingPathParam, missing, template)
	}
	return out, nil
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
