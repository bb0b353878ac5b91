package islands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/matzehuels/ogforge/pkg/httputil"
)

const (
	// DefaultAttempts is how often a failing render server is retried.
	DefaultAttempts = 3
	// DefaultRetryDelay is the initial backoff between attempts.
	DefaultRetryDelay = 200 * time.Millisecond
)

// HTTPRenderer posts {component, props} to an external render server and
// reads {html, error} back.
type HTTPRenderer struct {
	Endpoint string
	Attempts int
	client   *httputil.Client
}

var _ Renderer = (*HTTPRenderer)(nil)

// NewHTTPRenderer returns a renderer for endpoint. A nil client uses the
// default timeout.
func NewHTTPRenderer(endpoint string, client *httputil.Client) *HTTPRenderer {
	if client == nil {
		client = httputil.NewClient(httputil.DefaultTimeout)
	}
	return &HTTPRenderer{Endpoint: endpoint, Attempts: DefaultAttempts, client: client}
}

type renderRequest struct {
	Component string         `json:"component"`
	Props     map[string]any `json:"props"`
}

type renderResult struct {
	HTML  string `json:"html"`
	Error *struct {
		Message string `json:"message"`
		Stack   string `json:"stack"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

func (r *HTTPRenderer) Render(ctx context.Context, component string, props map[string]any) (string, error) {
	if props == nil {
		props = map[string]any{}
	}
	var resp *httputil.Response
	err := httputil.Retry(ctx, max(r.Attempts, 1), DefaultRetryDelay, func() error {
		var err error
		resp, err = r.client.PostJSON(ctx, r.Endpoint, renderRequest{Component: component, Props: props})
		return err
	})
	if err != nil {
		return "", fmt.Errorf("render %s: %w", component, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return "", fmt.Errorf("%w: %s", ErrComponentNotFound, component)
	}
	if !resp.OK() {
		return "", fmt.Errorf("render %s: status %d", component, resp.StatusCode)
	}

	var result renderResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return "", fmt.Errorf("render %s: decode response: %w", component, err)
	}
	if result.Error != nil {
		var sb strings.Builder
		sb.WriteString(result.Error.Message)
		for i, e := range result.Error.Errors {
			fmt.Fprintf(&sb, "\n  %d. %s", i+1, e.Message)
		}
		return "", fmt.Errorf("render %s: %s", component, sb.String())
	}
	return result.HTML, nil
}
