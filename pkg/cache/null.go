package cache

import (
	"context"
	"time"
)

// NullStorage is a no-op storage that never stores anything.
// It backs every tier when caching is disabled.
type NullStorage struct{}

// NewNullStorage creates a null storage.
func NewNullStorage() Storage {
	return NullStorage{}
}

func (NullStorage) Has(context.Context, string) (bool, error)                { return false, nil }
func (NullStorage) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullStorage) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullStorage) Remove(context.Context, string) error                     { return nil }
func (NullStorage) Close() error                                             { return nil }
