package domain

import "errors"

var (
	// ErrProductNotFound is returned when a barcode is absent from the catalog
	ErrProductNotFound = errors.New("product not found in catalog")

	// ErrCatalogTransport is returned when the catalog API cannot be reached or answers with an error
	ErrCatalogTransport = errors.New("catalog request failed")

	// ErrStore is returned when the document store is unavailable or rejects a write
	ErrStore = errors.New("record store failure")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid request parameters")

	// ErrCacheMiss is returned when data is not found in cache
	ErrCacheMiss = errors.New("cache miss")

	// ErrLockHeld is returned when a distributed lock is owned by someone else
	ErrLockHeld = errors.New("lock already held")
)
