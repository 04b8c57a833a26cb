package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Doer is the subset of *http.Client used by Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: %s: %s", e.URL, e.Status, e.Body)
}

// HTTPStatus exposes the status code to callers that only know the error.
func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Request describes one logical call. Path may be relative to the client's
// base URL or absolute.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Body    []byte
	Timeout time.Duration
}

// Response is a fully read response body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Text returns the body as a string.
func (r *Response) Text() string { return string(r.Body) }

// Client issues requests against one upstream with a fixed retry policy.
type Client struct {
	base     *url.URL
	name     string
	doer     Doer
	header   http.Header
	query    url.Values
	timeout  time.Duration
	policy   RetryPolicy
	sleep    Sleeper
	logger   *log.Logger
	maxBody  int64
	errBytes int
}

// Option customises a Client.
type Option func(*Client)

func WithHTTPClient(d Doer) Option { return func(c *Client) { c.doer = d } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHeader sets a default header sent to the client's own host.
func WithHeader(key, value string) Option { return func(c *Client) { c.header.Set(key, value) } }

// WithQueryParam sets a default query parameter sent to the client's own
// host, e.g. an api_key credential.
func WithQueryParam(key, value string) Option { return func(c *Client) { c.query.Set(key, value) } }

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.header.Set("User-Agent", ua)
		}
	}
}

func WithRetryPolicy(p RetryPolicy) Option { return func(c *Client) { c.policy = p } }

func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		if s != nil {
			c.sleep = s
		}
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithMaxBodyBytes(n int64) Option { return func(c *Client) { c.maxBody = n } }

// WithName labels the client in logs and metrics.
func WithName(name string) Option { return func(c *Client) { c.name = name } }

// WithBaseURL overrides the base URL given to New. Used to point adapters at
// mirrors or test servers.
func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(strings.TrimSpace(raw)); err == nil && u.Host != "" {
			c.base = u
		}
	}
}

// New builds a client for baseURL. An empty baseURL means every request
// carries an absolute URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		doer:     &http.Client{},
		header:   http.Header{},
		query:    url.Values{},
		timeout:  30 * time.Second,
		policy:   DefaultRetryPolicy(),
		sleep:    sleepContext,
		logger:   log.New(log.Writer(), "[TRANSPORT] ", log.LstdFlags),
		maxBody:  20 << 20,
		errBytes: 512,
	}
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			c.base = u
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" && c.base != nil {
		c.name = c.base.Host
	}
	if c.name == "" {
		c.name = "http"
	}
	return c
}

// BaseURL returns the resolved base URL, or "" for base-less clients.
func (c *Client) BaseURL() string {
	if c.base == nil {
		return ""
	}
	return c.base.String()
}

// Do runs req, retrying transient failures per the client's policy. After the
// last attempt the final error is returned unchanged.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	target, own, err := c.resolve(req.Path)
	if err != nil {
		return nil, err
	}
	q := target.Query()
	if own {
		for k, vs := range c.query {
			if _, set := q[k]; !set {
				q[k] = vs
			}
		}
	}
	for k, vs := range req.Query {
		q[k] = vs
	}
	target.RawQuery = q.Encode()

	st := &RetryState{}
	ctx = withRetryState(ctx, st)
	for {
		st.Attempt++
		resp, status, err := c.attempt(ctx, req, target, own)
		if err == nil {
			return resp, nil
		}
		if IsResponseTooLarge(err) || st.Attempt > c.policy.MaxRetries || ctx.Err() != nil {
			return nil, err
		}
		if !Retryable(status, networkErr(status, err)) {
			return nil, err
		}
		st.NextDelay = c.policy.Delay(st.Attempt)
		c.logger.Printf("%s %s attempt %d failed: %v; retrying in %s", c.name, redact(target), st.Attempt, err, st.NextDelay)
		recordRetry(ctx, c.name)
		if serr := c.sleep(ctx, st.NextDelay); serr != nil {
			return nil, err
		}
	}
}

func networkErr(status int, err error) error {
	if status != 0 {
		return nil
	}
	return err
}

func (c *Client) attempt(ctx context.Context, req Request, target *url.URL, own bool) (*Response, int, error) {
	timeout := c.timeout
	if req.Timeout > 0 {
		timeout = req.Timeout
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(actx, method, target.String(), body)
	if err != nil {
		return nil, 0, err
	}
	for k, vs := range c.header {
		if !own && k != "User-Agent" {
			continue
		}
		hreq.Header[k] = vs
	}
	for k, vs := range req.Header {
		hreq.Header[k] = vs
	}
	if req.Body != nil && hreq.Header.Get("Content-Type") == "" {
		hreq.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.doer.Do(hreq)
	if err != nil {
		recordAttempt(ctx, c.name, 0, time.Since(start).Seconds())
		return nil, 0, err
	}
	defer resp.Body.Close()
	recordAttempt(ctx, c.name, resp.StatusCode, time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, int64(c.errBytes)))
		return nil, resp.StatusCode, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			URL:        redact(target),
			Body:       strings.TrimSpace(string(b)),
		}
	}
	data, err := ReadAllWithLimit(resp.Body, c.maxBody)
	if err != nil {
		return nil, 0, err
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data, URL: target.String()}, resp.StatusCode, nil
}

func (c *Client) resolve(path string) (*url.URL, bool, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		u, err := url.Parse(path)
		if err != nil {
			return nil, false, err
		}
		return u, c.base != nil && strings.EqualFold(u.Host, c.base.Host), nil
	}
	if c.base == nil {
		return nil, false, fmt.Errorf("relative path %q on a client without base url", path)
	}
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
	if i := strings.IndexByte(u.Path, '?'); i >= 0 {
		return nil, false, fmt.Errorf("path %q must not carry a query string", path)
	}
	return &u, true, nil
}

// redact hides credentials passed as query parameters.
func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.Contains(lk, "key") || strings.Contains(lk, "token") {
			q.Set(k, "REDACTED")
		}
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// Get issues a GET for path with extra query parameters.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// GetJSON issues a GET and decodes the JSON body into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}

// PostJSON sends body as JSON and decodes the JSON response into out.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := c.Do(ctx, Request{Method: http.MethodPost, Path: path, Query: query, Body: payload})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", c.name, err)
	}
	return nil
}
