package cache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// exerciseStorage runs the behaviour every driver must share.
func exerciseStorage(t *testing.T, s Storage) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok=%v err=%v, want miss", ok, err)
	}
	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(data) != "v" {
		t.Fatalf("Get(k) = %q ok=%v err=%v", data, ok, err)
	}
	if has, _ := s.Has(ctx, "k"); !has {
		t.Error("Has(k) = false after Set")
	}
	if err := s.Set(ctx, "k", []byte("w"), 0); err != nil {
		t.Fatalf("overwrite error: %v", err)
	}
	if data, _, _ := s.Get(ctx, "k"); string(data) != "w" {
		t.Errorf("last writer should win, got %q", data)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if has, _ := s.Has(ctx, "k"); has {
		t.Error("Has(k) = true after Remove")
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Errorf("removing a missing key should not fail: %v", err)
	}
}

func TestMemoryStorage(t *testing.T) {
	exerciseStorage(t, NewMemoryStorage())
}

func TestMemoryStorage_Expiry(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStorage()
	_ = m.Set(ctx, "k", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	if _, ok, _ := m.Get(ctx, "k"); ok {
		t.Error("expired entry should be a miss")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be removed lazily, Len = %d", m.Len())
	}
}

func TestFileStorage(t *testing.T) {
	s, err := NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	exerciseStorage(t, s)
}

func TestFileStorage_ExpiredAndCorrupt(t *testing.T) {
	ctx := context.Background()
	s, _ := NewFileStorage(t.TempDir())

	_ = s.Set(ctx, "old", []byte("v"), time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "old"); ok {
		t.Error("expired entry should be a miss")
	}

	_ = s.Set(ctx, "bad", []byte("v"), 0)
	if err := writeFileAtomic(s.path("bad"), []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := s.Get(ctx, "bad"); ok || err != nil {
		t.Errorf("corrupt entry: ok=%v err=%v, want silent miss", ok, err)
	}
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageWithClient(client, "og:image:")
	defer s.Close()

	exerciseStorage(t, s)

	ctx := context.Background()
	_ = s.Set(ctx, "ttl", []byte("v"), time.Minute)
	if !mr.Exists("og:image:ttl") {
		t.Fatal("key should be stored under the prefix")
	}
	mr.FastForward(2 * time.Minute)
	if _, ok, _ := s.Get(ctx, "ttl"); ok {
		t.Error("entry should expire with the redis TTL")
	}

	_ = s.Set(ctx, "a", []byte("1"), 0)
	_ = s.Set(ctx, "b", []byte("2"), 0)
	mr.Set("other:key", "keep")
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if mr.Exists("og:image:a") || !mr.Exists("other:key") {
		t.Error("Clear should only drop keys under the prefix")
	}
}

func TestNullStorage(t *testing.T) {
	ctx := context.Background()
	s := NewNullStorage()
	_ = s.Set(ctx, "k", []byte("v"), time.Hour)
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Error("NullStorage should not store data")
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), StorageConfig{Driver: "etcd"}, TierImage)
	if !errors.Is(err, ErrUnknownDriver) {
		t.Errorf("Open() = %v, want ErrUnknownDriver", err)
	}
}

func TestNewTiers_FS(t *testing.T) {
	dir := t.TempDir()
	tiers, err := NewTiers(context.Background(), TiersConfig{
		Shared: StorageConfig{Driver: DriverFS, Dir: dir},
		Assets: StorageConfig{Driver: DriverMemory},
	})
	if err != nil {
		t.Fatal(err)
	}
	defer tiers.Close()

	ctx := context.Background()
	_ = tiers.Image.Set(ctx, "k", []byte("v"), 0)
	if err := tiers.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := tiers.Image.Has(ctx, "k"); ok {
		t.Error("Clear should empty the image tier")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestShortHash_OrderIndependent(t *testing.T) {
	a := ShortHash(map[string]any{"title": "Hi", "width": 1200}, 10)
	b := ShortHash(map[string]any{"width": 1200, "title": "Hi"}, 10)
	if a != b || len(a) != 10 {
		t.Errorf("ShortHash = %q / %q", a, b)
	}
}

func TestKeyer(t *testing.T) {
	k := NewDefaultKeyer()
	if k.ImageKey("/blog", "https://a.dev", "q1") == k.ImageKey("/blog", "https://b.dev", "q1") {
		t.Error("site URL should be part of the image key")
	}
	if got := k.EmojiKey("noto", "1f600"); got != "emoji:noto:1f600" {
		t.Errorf("EmojiKey = %q", got)
	}
	payload := k.PayloadKey("/blog", "https://a.dev", "q1")
	for _, other := range []string{
		k.PayloadKey("/blog", "https://b.dev", "q1"),
		k.PayloadKey("/blog", "https://a.dev", "q2"),
		k.PayloadKey("/docs", "https://a.dev", "q1"),
	} {
		if other == payload {
			t.Errorf("payload keys collide: %q", payload)
		}
	}
	scoped := NewScopedKeyer(k, "site1:")
	if got := scoped.PayloadKey("/blog", "https://a.dev", "q1"); got != "site1:"+payload {
		t.Errorf("scoped key = %q", got)
	}
}

func TestNewTiers_KeyPrefix(t *testing.T) {
	ctx := context.Background()
	plain, err := NewTiers(ctx, TiersConfig{Shared: StorageConfig{Driver: DriverMemory}, Assets: StorageConfig{Driver: DriverMemory}})
	if err != nil {
		t.Fatal(err)
	}
	defer plain.Close()
	scoped, err := NewTiers(ctx, TiersConfig{Shared: StorageConfig{Driver: DriverMemory}, Assets: StorageConfig{Driver: DriverMemory}, KeyPrefix: "site1:"})
	if err != nil {
		t.Fatal(err)
	}
	defer scoped.Close()

	want := "site1:" + plain.Keyer.ImageKey("/blog", "https://a.dev", "q")
	if got := scoped.Keyer.ImageKey("/blog", "https://a.dev", "q"); got != want {
		t.Errorf("ImageKey = %q, want %q", got, want)
	}
}

func TestImageCache_TTLZeroIsNoStore(t *testing.T) {
	store := NewMemoryStorage()
	c := NewImageCache(store)
	res, err := c.Serve(context.Background(), ImageRequest{Key: "k", TTL: 0, Enabled: true},
		func(context.Context) ([]byte, error) { return []byte("png"), nil })
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(res.Headers["Cache-Control"], "no-store") {
		t.Errorf("Cache-Control = %q, want no-store", res.Headers["Cache-Control"])
	}
	if store.Len() != 0 {
		t.Error("nothing should be written with TTL 0")
	}
}

func TestImageCache_HitAndPurge(t *testing.T) {
	c := NewImageCache(NewMemoryStorage())
	ctx := context.Background()
	renders := 0
	render := func(context.Context) ([]byte, error) {
		renders++
		return []byte{byte(renders)}, nil
	}
	req := ImageRequest{Key: "k", TTL: time.Hour, Enabled: true}

	first, _ := c.Serve(ctx, req, render)
	second, _ := c.Serve(ctx, req, render)
	if renders != 1 || !second.Hit || string(second.Data) != string(first.Data) {
		t.Fatalf("second request should hit: renders=%d hit=%v", renders, second.Hit)
	}
	if first.Headers["Cache-Control"] != "public, s-maxage=3600, stale-while-revalidate" {
		t.Errorf("Cache-Control = %q", first.Headers["Cache-Control"])
	}

	req.Purge = true
	third, _ := c.Serve(ctx, req, render)
	if renders != 2 || third.Hit || third.Data[0] != 2 {
		t.Errorf("purge should regenerate: renders=%d hit=%v", renders, third.Hit)
	}
}

func TestImageCache_RenderError(t *testing.T) {
	c := NewImageCache(NewMemoryStorage())
	boom := errors.New("boom")
	_, err := c.Serve(context.Background(), ImageRequest{Key: "k", TTL: time.Hour, Enabled: true},
		func(context.Context) ([]byte, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("Serve() = %v, want boom", err)
	}
}

func TestNotModified(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	headers := CacheHeaders([]byte("png"), time.Hour, now)

	tests := []struct {
		name   string
		header string
		value  string
		want   bool
	}{
		{"etag match", "If-None-Match", headers["ETag"], true},
		{"strong form matches weak", "If-None-Match", strings.TrimPrefix(headers["ETag"], "W/"), true},
		{"etag mismatch", "If-None-Match", `W/"deadbeef"`, false},
		{"not modified since", "If-Modified-Since", now.Add(time.Minute).Format(http.TimeFormat), true},
		{"modified since", "If-Modified-Since", now.Add(-time.Minute).Format(http.TimeFormat), false},
		{"no conditionals", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(tt.header, tt.value)
			}
			if got := NotModified(r, headers); got != tt.want {
				t.Errorf("NotModified() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildCache(t *testing.T) {
	b, err := NewBuildCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	key := BuildKey("opts", "component", "v1")
	if key == BuildKey("opts", "component", "v2") {
		t.Error("version should invalidate the build key")
	}
	if _, ok, _ := b.Get(key, "png"); ok {
		t.Fatal("empty cache should miss")
	}
	if err := b.Set(key, "png", []byte("img"), 0); err != nil {
		t.Fatal(err)
	}
	data, ok, err := b.Get(key, "png")
	if err != nil || !ok || string(data) != "img" {
		t.Errorf("Get() = %q ok=%v err=%v", data, ok, err)
	}
	if !strings.HasSuffix(b.Path(key, "png"), key+".png") {
		t.Errorf("Path = %q", b.Path(key, "png"))
	}
}
