package storage

import "errors"

// ErrPersistence marks a failed durable write. Adapters wrap it into the
// returned error chain so callers can distinguish a broken durability
// contract from ordinary lookup failures
var ErrPersistence = errors.New("persistence failure")
