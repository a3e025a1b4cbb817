package domain

// CartEntry is one line item in the shopper's cart. The JSON layout is the one
// persisted under the cart storage key.
type CartEntry struct {
	ProductID int64   `json:"id"`
	Name      string  `json:"title"`
	Price     float64 `json:"price"`
	ImageURL  string  `json:"image"`
	Quantity  int     `json:"amount"`
}

// Cart is an ordered list of entries, unique by ProductID.
type Cart []CartEntry

// Find returns the index of the entry for productID, or -1.
func (c Cart) Find(productID int64) int {
	for i, entry := range c {
		if entry.ProductID == productID {
			return i
		}
	}
	return -1
}

// Clone returns a copy that shares no backing array with c.
func (c Cart) Clone() Cart {
	if c == nil {
		return Cart{}
	}
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

// Total is the sum of price * quantity over all entries.
func (c Cart) Total() float64 {
	var total float64
	for _, entry := range c {
		total += entry.Price * float64(entry.Quantity)
	}
	return total
}

// Count is the number of distinct products in the cart.
func (c Cart) Count() int {
	return len(c)
}

// Units is the number of units across all entries.
func (c Cart) Units() int {
	units := 0
	for _, entry := range c {
		units += entry.Quantity
	}
	return units
}
