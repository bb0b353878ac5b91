package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/matzehuels/ogforge/pkg/observability"
)

// Tier names, used for directories, collection names, key prefixes and hooks.
const (
	TierPayload   = "payload"
	TierPrerender = "prerender"
	TierImage     = "image"
	TierFonts     = "fonts"
	TierEmoji     = "emoji"
)

// Driver names accepted by [Open].
const (
	DriverMemory = "memory"
	DriverFS     = "fs"
	DriverRedis  = "redis"
	DriverMongo  = "mongo"
	DriverNull   = "null"
)

// Drivers lists every accepted driver name.
var Drivers = []string{DriverMemory, DriverFS, DriverRedis, DriverMongo, DriverNull}

// ErrUnknownDriver is returned by [Open] for an unrecognised driver name.
var ErrUnknownDriver = errors.New("unknown storage driver")

// =============================================================================
// Default Values - Single Source of Truth
// =============================================================================

const (
	// PayloadTTLRuntime is how long an extracted page payload is reused at runtime.
	PayloadTTLRuntime = 10 * time.Second
	// PayloadTTLPrerender is the payload TTL during a prerender run.
	PayloadTTLPrerender = time.Hour

	// DefaultMongoDatabase is used when no database is configured.
	DefaultMongoDatabase = "ogforge"
)

// StorageConfig selects and configures a storage driver.
type StorageConfig struct {
	Driver        string
	Dir           string // fs root; each tier gets a subdirectory
	RedisURL      string
	MongoURI      string
	MongoDatabase string
	Prefix        string // key prefix for redis
}

// Open creates the storage for one tier.
func Open(ctx context.Context, cfg StorageConfig, tier string) (Storage, error) {
	switch cfg.Driver {
	case DriverMemory, "":
		return NewMemoryStorage(), nil
	case DriverNull:
		return NewNullStorage(), nil
	case DriverFS:
		if cfg.Dir == "" {
			return nil, errors.New("fs storage requires a directory")
		}
		return NewFileStorage(filepath.Join(cfg.Dir, tier))
	case DriverRedis:
		if cfg.RedisURL == "" {
			return nil, errors.New("redis storage requires a url")
		}
		return NewRedisStorage(ctx, cfg.RedisURL, cfg.Prefix+tier+":")
	case DriverMongo:
		if cfg.MongoURI == "" {
			return nil, errors.New("mongo storage requires a uri")
		}
		db := cfg.MongoDatabase
		if db == "" {
			db = DefaultMongoDatabase
		}
		return NewMongoStorage(ctx, cfg.MongoURI, db, tier)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
}

// TiersConfig configures every tier of a process.
type TiersConfig struct {
	// Shared backs the payload and image tiers.
	Shared StorageConfig
	// Assets backs the font and emoji tiers.
	Assets StorageConfig
	// KeyPrefix scopes every key so several sites can share one backend.
	KeyPrefix string
}

// Tiers bundles the storages of one process. Every storage is wrapped so it
// reports hits, misses and writes through the observability cache hooks.
type Tiers struct {
	Payload   Storage
	Prerender Storage
	Image     Storage
	Fonts     Storage
	Emoji     Storage
	Keyer     Keyer
}

// NewTiers opens every tier. The prerender tier is always in memory.
func NewTiers(ctx context.Context, cfg TiersConfig) (*Tiers, error) {
	t := &Tiers{Keyer: NewDefaultKeyer(), Prerender: Instrument(TierPrerender, NewMemoryStorage())}
	if cfg.KeyPrefix != "" {
		t.Keyer = NewScopedKeyer(t.Keyer, cfg.KeyPrefix)
	}
	open := func(dst *Storage, sc StorageConfig, tier string) error {
		s, err := Open(ctx, sc, tier)
		if err != nil {
			return fmt.Errorf("open %s tier: %w", tier, err)
		}
		*dst = Instrument(tier, s)
		return nil
	}
	steps := []struct {
		dst  *Storage
		cfg  StorageConfig
		tier string
	}{
		{&t.Payload, cfg.Shared, TierPayload},
		{&t.Image, cfg.Shared, TierImage},
		{&t.Fonts, cfg.Assets, TierFonts},
		{&t.Emoji, cfg.Assets, TierEmoji},
	}
	for _, s := range steps {
		if err := open(s.dst, s.cfg, s.tier); err != nil {
			t.Close()
			return nil, err
		}
	}
	return t, nil
}

// MemoryTiers returns tiers that all live in memory, for tests and one-shot
// CLI renders.
func MemoryTiers() *Tiers {
	return &Tiers{
		Payload:   Instrument(TierPayload, NewMemoryStorage()),
		Prerender: Instrument(TierPrerender, NewMemoryStorage()),
		Image:     Instrument(TierImage, NewMemoryStorage()),
		Fonts:     Instrument(TierFonts, NewMemoryStorage()),
		Emoji:     Instrument(TierEmoji, NewMemoryStorage()),
		Keyer:     NewDefaultKeyer(),
	}
}

// Clear empties every tier that supports it.
func (t *Tiers) Clear(ctx context.Context) error {
	var errs []error
	for _, s := range t.all() {
		if c, ok := s.(Clearer); ok {
			errs = append(errs, c.Clear(ctx))
		}
	}
	return errors.Join(errs...)
}

// Close closes every opened tier.
func (t *Tiers) Close() error {
	var errs []error
	for _, s := range t.all() {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

func (t *Tiers) all() []Storage {
	var out []Storage
	for _, s := range []Storage{t.Payload, t.Prerender, t.Image, t.Fonts, t.Emoji} {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

// instrumented reports tier activity through observability.Cache().
type instrumented struct {
	tier  string
	inner Storage
}

// Instrument wraps s so reads and writes emit cache hooks under tier.
func Instrument(tier string, s Storage) Storage {
	return &instrumented{tier: tier, inner: s}
}

func (i *instrumented) Has(ctx context.Context, key string) (bool, error) {
	return i.inner.Has(ctx, key)
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, ok, err := i.inner.Get(ctx, key)
	if err == nil {
		if ok {
			observability.Cache().OnCacheHit(ctx, i.tier)
		} else {
			observability.Cache().OnCacheMiss(ctx, i.tier)
		}
	}
	return data, ok, err
}

func (i *instrumented) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	err := i.inner.Set(ctx, key, data, ttl)
	if err == nil {
		observability.Cache().OnCacheSet(ctx, i.tier, len(data))
	}
	return err
}

func (i *instrumented) Remove(ctx context.Context, key string) error {
	return i.inner.Remove(ctx, key)
}

func (i *instrumented) Clear(ctx context.Context) error {
	if c, ok := i.inner.(Clearer); ok {
		return c.Clear(ctx)
	}
	return nil
}

func (i *instrumented) Close() error { return i.inner.Close() }
