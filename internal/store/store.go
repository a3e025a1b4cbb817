package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fjod/go_cart/cartstore/internal/domain"
	"github.com/fjod/go_cart/cartstore/internal/notify"
	"github.com/fjod/go_cart/cartstore/internal/storage"
)

// ProductCatalog resolves product metadata by id.
type ProductCatalog interface {
	Product(ctx context.Context, productID int64) (*domain.Product, error)
}

// StockService reports the currently available quantity of a product.
type StockService interface {
	Stock(ctx context.Context, productID int64) (*domain.Stock, error)
}

type Config struct {
	Catalog  ProductCatalog
	Stock    StockService
	Storage  storage.Storage
	Notifier notify.Notifier // defaults to a LogNotifier
	Key      string          // defaults to storage.CartKey
}

// CartStore owns one shopper's cart. Every mutation runs its whole
// fetch-validate-persist-commit sequence under mu, so mutations are atomic
// with respect to each other. Storage always holds the committed cart.
type CartStore struct {
	mu sync.Mutex

	stateMu sync.RWMutex
	cart    domain.Cart

	catalog  ProductCatalog
	stock    StockService
	storage  storage.Storage
	notifier notify.Notifier
	key      string

	obsMu     sync.Mutex
	observers []observer
	nextObsID int
}

type observer struct {
	id int
	fn func(domain.Cart)
}

var errProductMismatch = errors.New("catalog returned a different product")

// New builds a store and loads the cart persisted under cfg.Key. A missing or
// unreadable blob yields an empty cart, and so does a failed read.
func New(ctx context.Context, cfg Config) (*CartStore, error) {
	s, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	cart, err := load(ctx, s.storage, s.key)
	if err != nil {
		log.Printf("cart load error, starting empty: %v", err)
		cart = domain.Cart{}
	}
	s.cart = cart
	return s, nil
}

// Open is New for long-lived stores: a failed storage read is returned as
// ErrLoad instead of starting empty, so a later write cannot replace the
// stored cart with one that never saw it.
func Open(ctx context.Context, cfg Config) (*CartStore, error) {
	s, err := newStore(cfg)
	if err != nil {
		return nil, err
	}

	cart, err := load(ctx, s.storage, s.key)
	if err != nil {
		return nil, err
	}
	s.cart = cart
	return s, nil
}

func newStore(cfg Config) (*CartStore, error) {
	if cfg.Catalog == nil || cfg.Stock == nil || cfg.Storage == nil {
		return nil, errors.New("catalog, stock and storage are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.NewLogNotifier(nil)
	}
	if cfg.Key == "" {
		cfg.Key = storage.CartKey
	}

	return &CartStore{
		catalog:  cfg.Catalog,
		stock:    cfg.Stock,
		storage:  cfg.Storage,
		notifier: cfg.Notifier,
		key:      cfg.Key,
	}, nil
}

// load reads the stored cart. Only a failed read is an error; an absent or
// undecodable blob is an empty cart.
func load(ctx context.Context, st storage.Storage, key string) (domain.Cart, error) {
	raw, err := st.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Cart{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoad, err)
	}

	cart, err := Decode(raw)
	if err != nil {
		log.Printf("stored cart is unreadable, starting empty: %v", err)
		return domain.Cart{}, nil
	}
	return cart, nil
}

// Decode parses a persisted cart. Entries with a quantity below 1 and repeated
// product ids are dropped.
func Decode(raw string) (domain.Cart, error) {
	var entries []domain.CartEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}

	cart := make(domain.Cart, 0, len(entries))
	for _, entry := range entries {
		if entry.Quantity < 1 || cart.Find(entry.ProductID) >= 0 {
			continue
		}
		cart = append(cart, entry)
	}
	return cart, nil
}

// Encode serializes a cart in the persisted layout.
func Encode(cart domain.Cart) (string, error) {
	if cart == nil {
		cart = domain.Cart{}
	}
	data, err := json.Marshal(cart)
	if err != nil {
		return "", fmt.Errorf("encode cart: %w", err)
	}
	return string(data), nil
}

// Cart returns a copy of the current cart.
func (s *CartStore) Cart() domain.Cart {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.cart.Clone()
}

// AddProduct puts one unit of productID in the cart. A product already in the
// cart goes through SetQuantity with its quantity plus one.
func (s *CartStore) AddProduct(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stock, err := s.stock.Stock(ctx, productID)
	if err != nil {
		return s.fail(ctx, OpAdd, productID, upstream(err))
	}

	next := s.Cart()
	if i := next.Find(productID); i >= 0 {
		return s.setQuantity(ctx, productID, next[i].Quantity+1)
	}

	if stock.Amount < 1 {
		return s.fail(ctx, OpAdd, productID, ErrStockExhausted)
	}

	product, err := s.catalog.Product(ctx, productID)
	if err != nil {
		return s.fail(ctx, OpAdd, productID, upstream(err))
	}
	if product.ID != productID {
		return s.fail(ctx, OpAdd, productID, upstream(errProductMismatch))
	}

	next = append(next, domain.NewEntry(*product, 1))
	return s.commit(ctx, OpAdd, productID, next)
}

// RemoveProduct drops the entry for productID.
func (s *CartStore) RemoveProduct(ctx context.Context, productID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Cart()
	i := next.Find(productID)
	if i < 0 {
		return s.fail(ctx, OpRemove, productID, ErrEntryNotFound)
	}

	next = append(next[:i], next[i+1:]...)
	return s.commit(ctx, OpRemove, productID, next)
}

// SetQuantity sets the quantity of an entry already in the cart.
//
// The request is rejected when the product has one unit or less in stock, even
// if amount is 1. Removal goes through RemoveProduct; amounts below 1 are
// rejected with ErrInvalidQuantity.
func (s *CartStore) SetQuantity(ctx context.Context, productID int64, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.setQuantity(ctx, productID, amount)
}

func (s *CartStore) setQuantity(ctx context.Context, productID int64, amount int) error {
	if amount < 1 {
		return s.fail(ctx, OpSetQuantity, productID, ErrInvalidQuantity)
	}

	next := s.Cart()
	i := next.Find(productID)
	if i < 0 {
		return s.fail(ctx, OpSetQuantity, productID, ErrEntryNotFound)
	}

	stock, err := s.stock.Stock(ctx, productID)
	if err != nil {
		return s.fail(ctx, OpSetQuantity, productID, upstream(err))
	}
	if stock.Amount <= 1 || amount > stock.Amount {
		return s.fail(ctx, OpSetQuantity, productID, ErrStockExhausted)
	}

	next[i].Quantity = amount
	return s.commit(ctx, OpSetQuantity, productID, next)
}

// Clear empties the cart.
func (s *CartStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(ctx, OpClear, 0, domain.Cart{})
}

// Subscribe registers fn to receive every committed cart. fn runs while the
// mutation that produced the cart still holds the store, so it may read the
// store but must not mutate it.
func (s *CartStore) Subscribe(fn func(domain.Cart)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObsID
	s.nextObsID++
	s.observers = append(s.observers, observer{id: id, fn: fn})
	s.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.obsMu.Lock()
			defer s.obsMu.Unlock()
			for i, o := range s.observers {
				if o.id == id {
					s.observers = append(s.observers[:i], s.observers[i+1:]...)
					return
				}
			}
		})
	}
}

// commit persists next and only then makes it the current cart.
func (s *CartStore) commit(ctx context.Context, op string, productID int64, next domain.Cart) error {
	raw, err := Encode(next)
	if err != nil {
		return s.fail(ctx, op, productID, fmt.Errorf("%w: %w", ErrPersist, err))
	}
	if err := s.storage.Set(ctx, s.key, raw); err != nil {
		return s.fail(ctx, op, productID, fmt.Errorf("%w: %w", ErrPersist, err))
	}

	s.stateMu.Lock()
	s.cart = next
	s.stateMu.Unlock()

	s.publish(next)
	return nil
}

func (s *CartStore) publish(cart domain.Cart) {
	s.obsMu.Lock()
	observers := make([]observer, len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()

	for _, o := range observers {
		o.fn(cart.Clone())
	}
}

func (s *CartStore) fail(ctx context.Context, op string, productID int64, err error) error {
	if errors.Is(err, ErrUpstream) || errors.Is(err, ErrPersist) {
		log.Printf("cart %s error: %v", op, err)
	}

	opErr := newOpError(op, productID, err)
	s.notifier.Notify(ctx, notify.Notification{
		Op:        op,
		ProductID: productID,
		Message:   opErr.Message,
		Cause:     err.Error(),
		At:        time.Now().UTC(),
	})
	return opErr
}
