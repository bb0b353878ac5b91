package render

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ogerrors "github.com/matzehuels/ogforge/pkg/errors"
)

type stubRenderer struct{ name string }

func (s stubRenderer) Name() string               { return s.name }
func (s stubRenderer) SupportedFormats() []string { return []string{"png", "svg"} }
func (s stubRenderer) CreateImage(context.Context, *Context) ([]byte, error) {
	return []byte("img"), nil
}
func (s stubRenderer) Debug(_ context.Context, rc *Context) (*Diagnostics, error) {
	return NewDiagnostics(rc), nil
}

func TestLazy_SharedConstruction(t *testing.T) {
	var builds atomic.Int32
	l := NewLazy(func(context.Context) (int, error) {
		builds.Add(1)
		time.Sleep(10 * time.Millisecond)
		return 42, nil
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := l.Get(context.Background()); err != nil || v != 42 {
				t.Errorf("Get() = %d, %v", v, err)
			}
		}()
	}
	wg.Wait()

	if builds.Load() != 1 {
		t.Errorf("constructed %d times, want 1", builds.Load())
	}
}

func TestLazy_RetryAfterErrorAndReset(t *testing.T) {
	calls := 0
	l := NewLazy(func(context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("boom")
		}
		return "handle", nil
	})
	ctx := context.Background()

	if _, err := l.Get(ctx); err == nil {
		t.Fatal("first Get should fail")
	}
	if v, err := l.Get(ctx); err != nil || v != "handle" {
		t.Fatalf("second Get = %q, %v", v, err)
	}
	if old, ok := l.Reset(); !ok || old != "handle" {
		t.Errorf("Reset() = %q, %v", old, ok)
	}
	if _, ok := l.Peek(); ok {
		t.Error("Peek after Reset should be empty")
	}
	_, _ = l.Get(ctx)
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestLazy_ResetIf(t *testing.T) {
	n := 0
	l := NewLazy(func(context.Context) (int, error) {
		n++
		return n, nil
	})
	ctx := context.Background()
	v, _ := l.Get(ctx)
	if l.ResetIf(func(cur int) bool { return cur != v }) {
		t.Error("ResetIf dropped a value that did not match")
	}
	if !l.ResetIf(func(cur int) bool { return cur == v }) {
		t.Error("ResetIf kept a matching value")
	}
	if v2, _ := l.Get(ctx); v2 != 2 {
		t.Errorf("Get after ResetIf = %d, want 2", v2)
	}
}

func TestLazy_OnReadySeesStoredValue(t *testing.T) {
	n := 0
	var l *Lazy[int]
	var reset []bool
	l = NewLazy(func(context.Context) (int, error) {
		n++
		return n, nil
	}).OnReady(func(v int) {
		// A handle that dies right after construction must be droppable.
		reset = append(reset, l.ResetIf(func(cur int) bool { return cur == v }))
	})
	ctx := context.Background()

	if v, err := l.Get(ctx); err != nil || v != 1 {
		t.Fatalf("Get() = %d, %v", v, err)
	}
	if _, ok := l.Peek(); ok {
		t.Error("value reset by OnReady is still stored")
	}
	if v, _ := l.Get(ctx); v != 2 {
		t.Errorf("Get after reset = %d, want 2", v)
	}
	if len(reset) != 2 || !reset[0] || !reset[1] {
		t.Errorf("ResetIf results = %v, want true for every construction", reset)
	}
}

func TestRegistryAndFormats(t *testing.T) {
	reg := NewRegistry(stubRenderer{"vector"}, stubRenderer{"raster"})
	if got := reg.Names(); len(got) != 2 || got[0] != "raster" {
		t.Errorf("Names() = %v", got)
	}
	r, ok := reg.Get("vector")
	if !ok {
		t.Fatal("vector should be registered")
	}
	if err := CheckFormat(r, "png"); err != nil {
		t.Errorf("png should be supported: %v", err)
	}
	err := CheckFormat(r, "jpeg")
	if !ogerrors.Is(err, ogerrors.ErrCodeBadRequest) {
		t.Errorf("CheckFormat(jpeg) = %v, want bad request", err)
	}
}

func TestCompatible(t *testing.T) {
	tests := []struct {
		target, renderer string
		want             bool
	}{
		{TargetNode, "browser", true},
		{TargetEdge, "browser", false},
		{TargetEdge, "vector", true},
		{TargetStatic, "browser", true},
		{"unknown", "vector", false},
	}
	for _, tt := range tests {
		if got := Compatible(tt.target, tt.renderer); got != tt.want {
			t.Errorf("Compatible(%q, %q) = %v", tt.target, tt.renderer, got)
		}
	}
}

func TestContextWarnings(t *testing.T) {
	rc := &Context{BasePath: "/blog"}
	rc.Warn(context.Background(), "unsupported svg")
	if got := rc.Warnings(); len(got) != 1 || got[0] != "unsupported svg" {
		t.Errorf("Warnings() = %v", got)
	}
	if rc.NextEmojiID() != 1 || rc.NextEmojiID() != 2 {
		t.Error("emoji ids should be sequential")
	}
	if _, err := rc.Tree(context.Background()); !errors.Is(err, ErrNoBuilder) {
		t.Errorf("Tree() = %v, want ErrNoBuilder", err)
	}
}
