// Package storage supplies the byte-oriented blob store the session layer
// persists through. The core never interprets keys; callers own the naming.
package storage

import "errors"

// ErrNotFound is returned when a key has no stored bytes.
var ErrNotFound = errors.New("blob not found")

// BlobStore loads and stores opaque byte blobs by key.
type BlobStore interface {
	Load(key string) ([]byte, error)
	Store(key string, data []byte) error
	Delete(key string) error
}
