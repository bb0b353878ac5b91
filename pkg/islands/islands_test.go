package islands

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func TestHTTPRenderer(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req renderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch req.Component {
		case "Flaky":
			if calls.Add(1) == 1 {
				http.Error(w, "warming up", http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"html":"<div>ok</div>"}`))
		case "Card":
			_ = json.NewEncoder(w).Encode(map[string]string{"html": "<h1>" + req.Props["title"].(string) + "</h1>"})
		case "Broken":
			_, _ = w.Write([]byte(`{"error":{"message":"boom","errors":[{"message":"detail"}]}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	r := NewHTTPRenderer(srv.URL, nil)
	ctx := context.Background()

	tests := []struct {
		component string
		props     map[string]any
		want      string
		wantErr   string
		notFound  bool
	}{
		{component: "Card", props: map[string]any{"title": "Hi"}, want: "<h1>Hi</h1>"},
		{component: "Flaky", want: "<div>ok</div>"},
		{component: "Broken", wantErr: "boom"},
		{component: "Missing", notFound: true},
	}
	for _, tt := range tests {
		t.Run(tt.component, func(t *testing.T) {
			got, err := r.Render(ctx, tt.component, tt.props)
			switch {
			case tt.notFound:
				if !errors.Is(err, ErrComponentNotFound) {
					t.Errorf("err = %v, want ErrComponentNotFound", err)
				}
			case tt.wantErr != "":
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("err = %v, want %q", err, tt.wantErr)
				}
			default:
				if err != nil || got != tt.want {
					t.Errorf("Render() = %q, %v; want %q", got, err, tt.want)
				}
			}
		})
	}
}

func TestTemplateRenderer(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Post.html"), []byte(`<h1>{{ .title }}</h1>`), 0o644); err != nil {
		t.Fatal(err)
	}
	r := NewTemplateRenderer(dir, false)
	ctx := context.Background()

	got, err := r.Render(ctx, "Post", map[string]any{"title": "<Hello>"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "<h1>&lt;Hello&gt;</h1>" {
		t.Errorf("Render(Post) = %q", got)
	}

	fallback, err := r.Render(ctx, "Fallback", map[string]any{"title": "Bundled", "description": strings.Repeat("x", 200)})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(fallback, "Bundled") || !strings.Contains(fallback, "…") {
		t.Errorf("Render(Fallback) = %q", fallback)
	}

	for _, name := range []string{"Nope", "../etc/passwd"} {
		if _, err := r.Render(ctx, name, nil); !errors.Is(err, ErrComponentNotFound) {
			t.Errorf("Render(%q) err = %v, want ErrComponentNotFound", name, err)
		}
	}

	comps := r.Components()
	if len(comps) != 2 {
		t.Errorf("Components() = %v", comps)
	}

	before := r.ComponentHash("Post")
	if before == "" || r.ComponentHash("Nope") != "" {
		t.Fatalf("ComponentHash = %q", before)
	}
	if err := os.WriteFile(filepath.Join(dir, "Post.html"), []byte(`<h2>{{ .title }}</h2>`), 0o644); err != nil {
		t.Fatal(err)
	}
	if r.ComponentHash("Post") == before {
		t.Error("hash should follow the template source")
	}
}

func TestChain(t *testing.T) {
	missing := RendererFunc(func(context.Context, string, map[string]any) (string, error) {
		return "", ErrComponentNotFound
	})
	fixed := RendererFunc(func(_ context.Context, c string, _ map[string]any) (string, error) {
		return "<p>" + c + "</p>", nil
	})
	got, err := Chain(missing, fixed).Render(context.Background(), "X", nil)
	if err != nil || got != "<p>X</p>" {
		t.Errorf("Chain() = %q, %v", got, err)
	}
	if _, err := Chain(missing).Render(context.Background(), "X", nil); !errors.Is(err, ErrComponentNotFound) {
		t.Errorf("empty chain err = %v", err)
	}
}
