package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const csrfCookieName = "csrftoken"

// Options configures a Client.
type Options struct {
	// BaseURL is the API root, e.g. http://localhost:8000/api.
	BaseURL string
	// Timeout bounds every request unless the caller's context is tighter.
	// Zero means 15s.
	Timeout time.Duration
	// Logger defaults to zap.NewNop().
	Logger *zap.Logger
	// HTTPClient overrides the underlying client (tests). When nil a
	// cookie-jar-backed client is built.
	HTTPClient *http.Client
}

// Client issues authenticated JSON requests against the storefront backend.
// Credentials are cookie-based; the client never stores them itself beyond
// its cookie jar. Unsafe methods carry an X-CSRFToken header mirrored from
// the csrftoken cookie, priming it with a catalog GET when absent.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *zap.Logger

	csrfMu sync.Mutex // serializes cookie priming
}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

// WithHeader sets a header on the request.
func WithHeader(key, value string) RequestOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// New builds a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		httpClient = &http.Client{Jar: jar}
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		timeout: timeout,
		log:     logger,
	}, nil
}

// Get issues a GET and decodes the JSON response into out (out may be nil).
func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST with a JSON body (in may be nil).
func (c *Client) Post(ctx context.Context, path string, in, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, in, out, opts...)
}

// Patch issues a PATCH with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, in, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPatch, path, in, out, opts...)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// FilePart names one file in a multipart POST.
type FilePart struct {
	Field    string
	Filename string
	Content  io.Reader
}

// PostMultipart issues a POST with a multipart form body (proof photo
// uploads). Fields may be nil.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, file FilePart, out interface{}) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return fmt.Errorf("write form field %s: %w", k, err)
		}
	}
	part, err := writer.CreateFormFile(file.Field, file.Filename)
	if err != nil {
		return fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return fmt.Errorf("copy file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, &buf, writer.FormDataContentType(), out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}, opts ...RequestOption) error {
	var body io.Reader
	if in != nil {
		encoded, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	return c.do(ctx, method, path, body, "application/json", out, opts...)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}, opts ...RequestOption) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if isUnsafe(method) {
		if err := c.ensureCSRFCookie(ctx); err != nil {
			c.log.Debug("csrf priming failed", zap.Error(err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if isUnsafe(method) {
		if token := c.csrfToken(req.URL); token != "" {
			req.Header.Set("X-CSRFToken", token)
		}
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.log.Debug("api request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return normalizeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// normalizeError extracts the backend's detail field when present. Plain
// string bodies (some validation errors) are used verbatim.
func normalizeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var payload struct {
		Detail string `json:"detail"`
		Err    string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Detail != "":
			apiErr.Detail = payload.Detail
		case payload.Err != "":
			apiErr.Detail = payload.Err
		}
		return apiErr
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed != "" && !strings.HasPrefix(trimmed, "<") {
		apiErr.Detail = trimmed
	}
	return apiErr
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// csrfToken reads the csrftoken cookie from the jar for u's host.
func (c *Client) csrfToken(u *url.URL) string {
	if c.http.Jar == nil {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(u) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

// ensureCSRFCookie primes the csrftoken cookie with a catalog GET when it is
// missing. Serialized so concurrent unsafe requests prime at most once.
func (c *Client) ensureCSRFCookie(ctx context.Context) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return err
	}
	c.csrfMu.Lock()
	defer c.csrfMu.Unlock()
	if c.csrfToken(base) != "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/products/", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
