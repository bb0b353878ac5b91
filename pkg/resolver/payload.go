package resolver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
	"github.com/matzehuels/ogforge/pkg/options"
)

// Script ids of the embedded-page contract.
const (
	OptionsScriptID   = "og-image-options"
	OverridesScriptID = "og-image-overrides"
	// FallbackFile is fetched below the page when the marker is missing.
	FallbackFile = "og-image.json"
)

// ErrNoMarker is returned when a page carries no options script.
var ErrNoMarker = errors.New("page has no og-image-options script")

// Extract reads the options script of an HTML page and merges the optional
// overrides script over it.
func Extract(doc []byte) (options.Raw, error) {
	root, err := html.Parse(bytes.NewReader(doc))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	scripts := map[string]string{}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Script {
			if id := attr(n, "id"); id == OptionsScriptID || id == OverridesScriptID {
				if _, seen := scripts[id]; !seen {
					scripts[id] = text(n)
				}
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)

	body, ok := scripts[OptionsScriptID]
	if !ok {
		return nil, ErrNoMarker
	}
	payload, err := parseScript(OptionsScriptID, body)
	if err != nil {
		return nil, err
	}
	if body, ok := scripts[OverridesScriptID]; ok {
		overrides, err := parseScript(OverridesScriptID, body)
		if err != nil {
			return nil, err
		}
		payload = options.Merge(overrides, payload)
	}
	return payload, nil
}

func parseScript(id, body string) (options.Raw, error) {
	body = strings.TrimSpace(body)
	if body == "" || body == "null" {
		return options.Raw{}, nil
	}
	raw, err := options.ParseJSON([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("script #%s: %w", id, err)
	}
	return raw, nil
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func text(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// fetchPayload loads the page at basePath from the origin and extracts its
// payload, trying <base>/og-image.json when the page has no marker.
func (r *Resolver) fetchPayload(ctx context.Context, basePath string) (options.Raw, error) {
	origin := strings.TrimSuffix(r.cfg.OriginURL(), "/")
	pageURL := origin + basePath

	doc, err := r.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	payload, err := Extract(doc)
	if err == nil {
		return payload, nil
	}
	if !errors.Is(err, ErrNoMarker) {
		return nil, ogerrors.Wrap(ogerrors.ErrCodeUpstream, err, "bad payload in %s", pageURL)
	}

	fallbackURL := strings.TrimSuffix(pageURL, "/") + "/" + FallbackFile
	data, ferr := r.fetch(ctx, fallbackURL)
	if ferr != nil {
		r.logger.Debug("payload fallback failed", "url", fallbackURL, "error", ferr)
		return nil, ogerrors.Wrap(ogerrors.ErrCodeUpstream, ErrNoMarker, "no options in %s and no %s", pageURL, FallbackFile)
	}
	raw, err := options.ParseJSON(data)
	if err != nil {
		return nil, ogerrors.Wrap(ogerrors.ErrCodeUpstream, err, "bad %s", fallbackURL)
	}
	return raw, nil
}

// fetch GETs url and maps every non-2xx outcome to an upstream error that
// names the status or the redirect target.
func (r *Resolver) fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := r.client.Fetch(ctx, url)
	switch {
	case resp != nil && resp.Redirect():
		return nil, ogerrors.Upstream("%s redirected (%d) to %s", url, resp.StatusCode, resp.Location)
	case resp != nil && !resp.OK():
		return nil, ogerrors.Upstream("%s returned status %d", url, resp.StatusCode)
	case err != nil:
		return nil, ogerrors.Wrap(ogerrors.ErrCodeUpstream, err, "fetch %s", url)
	}
	return resp.Body, nil
}
