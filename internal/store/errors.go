package store

import (
	"errors"
	"fmt"
)

var (
	ErrStockExhausted  = errors.New("requested quantity is out of stock")
	ErrEntryNotFound   = errors.New("product is not in the cart")
	ErrUpstream        = errors.New("catalog lookup failed")
	ErrPersist         = errors.New("failed to persist cart")
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrLoad            = errors.New("failed to read stored cart")
)

// Operation names, also used as the notification op.
const (
	OpAdd         = "add"
	OpRemove      = "remove"
	OpSetQuantity = "set_quantity"
	OpClear       = "clear"
)

// User-facing notification messages.
const (
	MsgOutOfStock        = "Requested quantity is out of stock"
	MsgAddFailed         = "Failed to add product"
	MsgRemoveFailed      = "Failed to remove product"
	MsgSetQuantityFailed = "Failed to update product quantity"
	MsgClearFailed       = "Failed to clear cart"
)

var failureMessages = map[string]string{
	OpAdd:         MsgAddFailed,
	OpRemove:      MsgRemoveFailed,
	OpSetQuantity: MsgSetQuantityFailed,
	OpClear:       MsgClearFailed,
}

// OpError is returned by every failed cart operation. Message is the text the
// shopper was notified with.
type OpError struct {
	Op        string
	ProductID int64
	Message   string
	Err       error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s product %d: %v", e.Op, e.ProductID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func newOpError(op string, productID int64, err error) *OpError {
	msg := failureMessages[op]
	if errors.Is(err, ErrStockExhausted) {
		msg = MsgOutOfStock
	}
	return &OpError{
		Op:        op,
		ProductID: productID,
		Message:   msg,
		Err:       err,
	}
}

func upstream(err error) error {
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
