package catalog

import "errors"

// Common errors returned by catalog lookups
var (
	ErrNotFound         = errors.New("product not found")
	ErrMalformed        = errors.New("malformed catalog response")
	ErrUnexpectedStatus = errors.New("unexpected catalog status")
)
