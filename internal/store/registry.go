package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cartstore/internal/domain"
	"github.com/fjod/go_cart/cartstore/internal/notify"
	"github.com/fjod/go_cart/cartstore/internal/storage"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultMaxSessions bounds the stores a Registry keeps in memory when no
// limit is given.
const DefaultMaxSessions = 10000

// Registry hands out one CartStore per shopper session. Each store sees the
// shared storage through its own "cart:<session>" namespace. The least
// recently used stores are dropped past maxSessions and rebuilt from storage
// on the next request.
type Registry struct {
	cfg Config

	stores *lru.Cache[string, *CartStore]
	sfg    singleflight.Group // one load per session
}

func NewRegistry(cfg Config, maxSessions int) (*Registry, error) {
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(nil)
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}

	stores, err := lru.New[string, *CartStore](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session cache: %w", err)
	}

	return &Registry{
		cfg:    cfg,
		stores: stores,
	}, nil
}

// Get returns the session's store, loading it on first use. A storage read
// failure is returned as ErrLoad and nothing is kept, so the next request
// tries again.
func (r *Registry) Get(ctx context.Context, sessionID string) (*CartStore, error) {
	if s, ok := r.stores.Get(sessionID); ok {
		return s, nil
	}

	v, err, _ := r.sfg.Do(sessionID, func() (interface{}, error) {
		if s, ok := r.stores.Get(sessionID); ok {
			return s, nil
		}

		s, err := Open(ctx, r.sessionConfig(sessionID))
		if err != nil {
			return nil, err
		}

		r.stores.Add(sessionID, s)
		return s, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*CartStore), nil
}

// Cart returns the session's cart. A session with no loaded store is read
// straight from storage and no store is kept for it.
func (r *Registry) Cart(ctx context.Context, sessionID string) (domain.Cart, error) {
	if s, ok := r.stores.Get(sessionID); ok {
		return s.Cart(), nil
	}
	if r.cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}

	cfg := r.sessionConfig(sessionID)
	key := cfg.Key
	if key == "" {
		key = storage.CartKey
	}
	return load(ctx, cfg.Storage, key)
}

// Len is the number of stores currently held.
func (r *Registry) Len() int {
	return r.stores.Len()
}

func (r *Registry) sessionConfig(sessionID string) Config {
	cfg := r.cfg
	cfg.Storage = storage.Namespaced(r.cfg.Storage, fmt.Sprintf("cart:%s", sessionID))
	cfg.Notifier = notify.WithSession(r.cfg.Notifier, sessionID)
	return cfg
}
