// Package httputil provides the outgoing HTTP plumbing shared by the origin
// payload fetcher, the font loader, and the emoji icon client.
//
// # Fetching
//
// [Client.Fetch] performs a GET with a fixed per-request timeout, reports the
// request through the registered observability HTTP hooks, and never follows
// redirects: a 3xx comes back as a [Response] whose Location the caller can
// report. Transient failures (network errors, 5xx, 429) are wrapped in
// [RetryableError].
//
//	c := httputil.NewClient(10 * time.Second)
//	resp, err := c.Fetch(ctx, "https://example.com/blog/hello")
//
// # Retry
//
// [Retry] wraps an operation with exponential backoff and only retries errors
// marked retryable:
//
//	err := httputil.Retry(ctx, 3, 200*time.Millisecond, func() error {
//	    resp, err = c.Fetch(ctx, url)
//	    return err
//	})
package httputil
