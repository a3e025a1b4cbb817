package storage

import (
	"context"
	"errors"
	"fmt"
)

// CartKey is the fixed key the cart blob is stored under.
const CartKey = "@app:cart"

var ErrNotFound = errors.New("key not found")

// Storage is a string-keyed, string-valued durable store.
// Get returns ErrNotFound when the key is absent.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Namespaced returns a view of s in which every key is prefixed with ns.
// Each shopper session gets its own view so the cart key stays fixed.
func Namespaced(s Storage, ns string) Storage {
	if ns == "" || s == nil {
		return s
	}
	return namespaced{inner: s, ns: ns}
}

type namespaced struct {
	inner Storage
	ns    string
}

func (n namespaced) Get(ctx context.Context, key string) (string, error) {
	return n.inner.Get(ctx, n.key(key))
}

func (n namespaced) Set(ctx context.Context, key, value string) error {
	return n.inner.Set(ctx, n.key(key), value)
}

func (n namespaced) key(key string) string {
	return fmt.Sprintf("%s:%s", n.ns, key)
}
