// Package transport is the HTTP client every resource call goes through.
//
// It owns the base URL and timeout, attaches the bearer token of the current
// session to each request, and turns failed responses into user notices
// before handing the error back to the caller. It never retries and never
// swallows an error.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	applog "ledger/internal/log"
)

// DefaultTimeout bounds every request unless overridden at construction.
const DefaultTimeout = 15 * time.Second

// maxErrorBody caps how much of an error response is read for its detail.
const maxErrorBody = 1 << 20

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
	tokens     TokenSource
	events     Events
	logger     *applog.Logger
}

type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient uses hc for requests. Its Timeout is replaced by the
// client's configured timeout on a private copy.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			cp := *hc
			c.httpClient = &cp
		}
	}
}

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithEvents sets the receiver of auth-expired and notice events.
func WithEvents(e Events) Option {
	return func(c *Client) {
		if e != nil {
			c.events = e
		}
	}
}

func WithLogger(l *applog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(applog.ComponentTransport)
		}
	}
}

// New creates a client rooted at baseURL, e.g. "https://host/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""

	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
		events:     nopEvents{},
		logger:     applog.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.httpClient.Timeout = c.timeout
	return c, nil
}

// Response describes a successful call.
type Response struct {
	StatusCode int
	Header     http.Header
	RequestID  string
}

type requestOptions struct {
	query  url.Values
	header http.Header
}

type RequestOption func(*requestOptions)

// WithQuery merges values into the query string.
func WithQuery(values url.Values) RequestOption {
	return func(o *requestOptions) {
		for k, vs := range values {
			for _, v := range vs {
				o.query.Add(k, v)
			}
		}
	}
}

// WithParam adds a single query parameter.
func WithParam(key, value string) RequestOption {
	return func(o *requestOptions) { o.query.Add(key, value) }
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) { o.header.Set(key, value) }
}

// URL resolves path against the base URL without issuing a request.
func (c *Client) URL(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

func (c *Client) Post(ctx context.Context, path string, body Body, out any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

func (c *Client) Put(ctx context.Context, path string, body Body, out any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

func (c *Client) Delete(ctx context.Context, path string, out any, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do issues one request. out may be nil, an io.Writer that receives the raw
// body, or a pointer the JSON body is decoded into.
func (c *Client) Do(ctx context.Context, method, path string, body Body, out any, opts ...RequestOption) (*Response, error) {
	ro := requestOptions{query: url.Values{}, header: http.Header{}}
	for _, opt := range opts {
		opt(&ro)
	}

	req, err := c.newRequest(ctx, method, path, body, ro)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	requestID := NewRequestID()
	req.Header.Set(HeaderRequestID, requestID)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logCompleted(ctx, req, requestID, 0, time.Since(start), err)
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil, &Error{
				Kind:    KindCanceled,
				Method:  method,
				Path:    req.URL.Path,
				Message: "Request canceled",
				Err:     err,
			}
		}
		return nil, c.fail(ctx, &Error{
			Kind:    KindNetwork,
			Method:  method,
			Path:    req.URL.Path,
			Message: networkMessage(err),
			Err:     err,
		})
	}
	defer resp.Body.Close()

	c.logCompleted(ctx, req, requestID, resp.StatusCode, time.Since(start), nil)

	r := &Response{StatusCode: resp.StatusCode, Header: resp.Header, RequestID: requestID}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := decode(resp, out); err != nil {
			return r, fmt.Errorf("decode %s %s: %w", method, req.URL.Path, err)
		}
		return r, nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg, detail := detailMessage(raw)
	return r, c.fail(ctx, &Error{
		Kind:       kindForStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Method:     method,
		Path:       req.URL.Path,
		Message:    msg,
		Detail:     detail,
	})
}

func (c *Client) newRequest(ctx context.Context, method, path string, body Body, ro requestOptions) (*http.Request, error) {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		var err error
		reader, contentType, err = body.Encode()
		if err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path, ro.query), reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, vs := range ro.header {
		req.Header[k] = vs
	}
	return req, nil
}

// authorize attaches the session token, if any.
func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	tok := c.tokens.Token()
	if tok == nil || tok.AccessToken == "" {
		return
	}
	tok.SetAuthHeader(req)
}

// fail produces the user-visible side effects of e and returns it.
func (c *Client) fail(ctx context.Context, e *Error) error {
	if e.Kind == KindUnauthorized {
		c.events.OnAuthExpired(ctx)
	}
	n := e.notice()
	n.At = time.Now()
	c.events.OnNotify(ctx, n)
	return e
}

func (c *Client) logCompleted(ctx context.Context, req *http.Request, requestID string, status int, d time.Duration, err error) {
	level := slog.LevelDebug
	switch {
	case status == 0 || status >= 500:
		level = slog.LevelError
	case status >= 400:
		level = slog.LevelWarn
	}

	fields := applog.NewFields().
		WithRequestID(requestID).
		WithHTTPRequest(req.Method, req.URL.Path, req.URL.RawQuery).
		WithHTTPResponse(status, d.Milliseconds()).
		WithError(err)

	c.logger.Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

func decode(resp *http.Response, out any) error {
	switch v := out.(type) {
	case nil:
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	case io.Writer:
		_, err := io.Copy(v, resp.Body)
		return err
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	err := json.NewDecoder(resp.Body).Decode(out)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func networkMessage(err error) string {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return "Request timed out"
	}
	return "Request failed"
}
