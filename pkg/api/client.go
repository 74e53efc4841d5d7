package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/helmcode/gcpulse/pkg/model"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL   = "http://localhost:8080/api"
	DefaultUserAgent = "gcpulse-cli"

	requestIDHeader = "X-Request-ID"
)

// Options configures a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
	UserAgent  string
}

// Client is the transport shared by the diagnosis and analysis clients. It
// owns no global state; every instance carries its own base URL, timeout and
// logger. Multipart bodies are replayed on 307/308 redirects only when the
// uploaded file can seek back to its start.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	timeout   time.Duration
	logger    *zap.Logger
	userAgent string
}

// NewClient creates a transport from opts. defaultTimeout applies when
// opts.Timeout is zero.
func NewClient(opts Options, defaultTimeout time.Duration) (*Client, error) {
	raw := opts.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimSuffix(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", raw, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", raw)
	}

	c := &Client{
		baseURL:   base,
		http:      opts.HTTPClient,
		timeout:   opts.Timeout,
		logger:    opts.Logger,
		userAgent: opts.UserAgent,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	return c, nil
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Timeout returns the default per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// call describes one request against the backend.
type call struct {
	method string
	path   string
	query  url.Values

	body          io.Reader
	contentType   string
	contentLength int64 // -1 when unknown, 0 to let NewRequest decide

	// getBody replays the body when a redirect needs it again.
	getBody func() (io.ReadCloser, error)
	// validate runs after a successful JSON decode; its error is logged with
	// the request id like any other failure.
	validate func() error

	timeout time.Duration // zero uses the client default
	binary  bool
}

// send performs the call and returns the response with its body still open.
// The caller must invoke the returned cancel func after consuming the body.
func (c *Client) send(ctx context.Context, cl call) (*http.Response, context.CancelFunc, string, error) {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)

	u := c.baseURL.JoinPath(cl.path)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	reqID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), cl.body)
	if err != nil {
		cancel()
		return nil, nil, reqID, fmt.Errorf("build request: %w", err)
	}
	// Streamed bodies hide their size from NewRequest.
	if cl.body != nil && cl.contentLength != 0 {
		req.ContentLength = cl.contentLength
	}
	if cl.getBody != nil {
		req.GetBody = cl.getBody
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if cl.binary {
		req.Header.Set("Accept", "*/*")
	} else {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(requestIDHeader, reqID)

	c.logger.Debug("Sending request",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.String("request_id", reqID))

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, nil, reqID, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		cancel()
		return nil, nil, reqID, newError(cl.method, cl.path, resp.StatusCode, body)
	}

	return resp, cancel, reqID, nil
}

// doJSON performs the call and decodes a JSON body into out.
func (c *Client) doJSON(ctx context.Context, cl call, out any) error {
	resp, cancel, reqID, err := c.send(ctx, cl)
	if err != nil {
		return c.fail(cl, reqID, err)
	}
	defer cancel()
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.fail(cl, reqID, fmt.Errorf("%s %s: failed to parse response: %w", cl.method, cl.path, err))
	}
	if cl.validate != nil {
		if err := cl.validate(); err != nil {
			return c.fail(cl, reqID, err)
		}
	}
	return nil
}

// doBinary performs the call and returns the body verbatim.
func (c *Client) doBinary(ctx context.Context, cl call) (*model.Download, error) {
	cl.binary = true
	resp, cancel, reqID, err := c.send(ctx, cl)
	if err != nil {
		return nil, c.fail(cl, reqID, err)
	}
	defer cancel()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.fail(cl, reqID, fmt.Errorf("%s %s: read body: %w", cl.method, cl.path, err))
	}
	return &model.Download{
		Filename:    attachmentName(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}

// fail logs err and hands it back untouched.
func (c *Client) fail(cl call, reqID string, err error) error {
	c.logger.Error("API request failed",
		zap.String("method", cl.method),
		zap.String("path", cl.path),
		zap.String("request_id", reqID),
		zap.Error(err))
	return err
}

func attachmentName(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
