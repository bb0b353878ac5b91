package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/matzehuels/ogforge/pkg/observability"
)

// maxBodyBytes caps how much of a response body is read into memory.
const maxBodyBytes = 32 << 20

// DefaultTimeout bounds origin, font and asset fetches.
const DefaultTimeout = 10 * time.Second

// Response is a fully-read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Location is set for 3xx responses, which are never followed.
	Location string
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Redirect reports whether the status is 3xx.
func (r *Response) Redirect() bool { return r.StatusCode >= 300 && r.StatusCode < 400 }

// Client issues GET requests with a fixed timeout.
type Client struct {
	http      *http.Client
	UserAgent string
}

// NewClient returns a client whose requests time out after timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		UserAgent: "ogforge",
	}
}

// NewClientWith wraps an existing *http.Client (tests, custom transports).
// Redirect handling is left as configured on hc.
func NewClientWith(hc *http.Client) *Client {
	return &Client{http: hc, UserAgent: "ogforge"}
}

// Fetch performs a GET and reads the whole body.
// Network failures and 5xx/429 responses are returned as [RetryableError];
// other non-2xx statuses come back as a Response with a nil error.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, req)
}

// PostJSON sends body as JSON and returns the response with the same error
// semantics as [Client.Fetch].
func (c *Client) PostJSON(ctx context.Context, url string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.do(ctx, req)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*Response, error) {
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	url := req.URL.String()

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, req.Method, req.URL.Host, req.URL.Path)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, Retryable(fmt.Errorf("%s %s: %w", req.Method, url, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		hooks.OnError(ctx, req.Method, req.URL.Host, req.URL.Path, err)
		return nil, Retryable(fmt.Errorf("read %s: %w", url, err))
	}
	hooks.OnResponse(ctx, req.Method, req.URL.Host, req.URL.Path, resp.StatusCode, time.Since(start))

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Location:   resp.Header.Get("Location"),
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return out, Retryable(fmt.Errorf("%s %s: status %d", req.Method, url, resp.StatusCode))
	}
	return out, nil
}

// FetchWithRetry is Fetch wrapped in [Retry]. The last response is returned
// alongside the error so callers can report the final status.
func (c *Client) FetchWithRetry(ctx context.Context, url string, attempts int, delay time.Duration) (*Response, error) {
	var resp *Response
	err := Retry(ctx, attempts, delay, func() error {
		var err error
		resp, err = c.Fetch(ctx, url)
		return err
	})
	return resp, err
}
