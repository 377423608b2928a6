// Package index defines the contract shared by every index under benchmark.
package index

import "github.com/cockroachdb/errors"

// ErrNotFound is returned by Get for keys that are not stored.
var ErrNotFound = errors.New("key not found")

// Index is the common interface for all implementations.
type Index interface {
	Insert(key int64, value []byte) error
	// Get returns ErrNotFound for absent keys.
	Get(key int64) ([]byte, error)
	// Delete of an absent key is a no-op.
	Delete(key int64) error
	// Range iterates over the keys in [start, end] in ascending order.
	Range(start, end int64) (Iterator, error)
	Close() error
}
