package catalog

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/cartstore/internal/domain"
)

// MemoryCatalog serves products and stock levels from memory. It backs the
// service when no remote catalog is configured.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[int64]domain.Product
	stocks   map[int64]int // productID -> available amount
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		products: make(map[int64]domain.Product),
		stocks:   make(map[int64]int),
	}
}

// SetProduct registers or replaces a product together with its stock level
func (m *MemoryCatalog) SetProduct(p domain.Product, amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.products[p.ID] = p
	m.stocks[p.ID] = amount
}

// SetStock sets the stock level for a product
func (m *MemoryCatalog) SetStock(productID int64, amount int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stocks[productID] = amount
}

func (m *MemoryCatalog) Product(_ context.Context, productID int64) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, exists := m.products[productID]
	if !exists {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryCatalog) Stock(_ context.Context, productID int64) (*domain.Stock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	amount, exists := m.stocks[productID]
	if !exists {
		return nil, ErrNotFound
	}
	return &domain.Stock{ProductID: productID, Amount: amount}, nil
}
