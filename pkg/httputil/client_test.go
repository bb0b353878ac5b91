package httputil

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !resp.OK() || string(resp.Body) != "hello" {
		t.Errorf("got %d %q", resp.StatusCode, resp.Body)
	}
}

func TestFetch_RedirectNotFollowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).Fetch(context.Background(), srv.URL+"/blog")
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}
	if !resp.Redirect() {
		t.Fatalf("status = %d, want 3xx", resp.StatusCode)
	}
	if resp.Location != "/login" {
		t.Errorf("Location = %q, want /login", resp.Location)
	}
}

func TestFetch_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).Fetch(context.Background(), srv.URL)
	if !IsRetryable(err) {
		t.Fatalf("error %v should be retryable", err)
	}
	if resp == nil || resp.StatusCode != http.StatusBadGateway {
		t.Errorf("response should carry the final status")
	}
}

func TestFetchWithRetry_Recovers(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).FetchWithRetry(context.Background(), srv.URL, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("FetchWithRetry() error: %v", err)
	}
	if string(resp.Body) != "ok" || calls.Load() != 2 {
		t.Errorf("body=%q calls=%d", resp.Body, calls.Load())
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	notFound := errors.New("not found")

	calls := 0
	err := Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return notFound
	})
	if !errors.Is(err, notFound) || calls != 1 {
		t.Errorf("non-retryable: err=%v calls=%d", err, calls)
	}

	calls = 0
	err = Retry(ctx, 3, time.Millisecond, func() error {
		calls++
		return Retryable(errors.New("flaky"))
	})
	if err == nil || calls != 3 {
		t.Errorf("exhausted: err=%v calls=%d", err, calls)
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Second, func() error {
		return Retryable(errors.New("flaky"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Retry() = %v, want context.Canceled", err)
	}
}

func TestPostJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	resp, err := NewClient(time.Second).PostJSON(context.Background(), srv.URL, map[string]int{"n": 1})
	if err != nil {
		t.Fatalf("PostJSON() error: %v", err)
	}
	if !resp.OK() || string(resp.Body) != `{"n":1}` {
		t.Errorf("got %d %q", resp.StatusCode, resp.Body)
	}
}
