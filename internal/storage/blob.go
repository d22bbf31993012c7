// Package storage holds question illustration assets referenced by
// catalog questions via their ImageKey.
package storage

import (
	"errors"
	"io"
)

var ErrBadKey = errors.New("storage: invalid key")

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
}
