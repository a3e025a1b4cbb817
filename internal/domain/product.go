package domain

// Product is catalog metadata for a single product.
type Product struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Price float64 `json:"price"`
	Image string  `json:"image"`
}

// Stock is the available quantity of a product at the time it was fetched.
// It is never persisted.
type Stock struct {
	ProductID int64 `json:"id"`
	Amount    int   `json:"amount"`
}

// NewEntry builds a cart entry for p with the given quantity.
func NewEntry(p Product, quantity int) CartEntry {
	return CartEntry{
		ProductID: p.ID,
		Name:      p.Title,
		Price:     p.Price,
		ImageURL:  p.Image,
		Quantity:  quantity,
	}
}
