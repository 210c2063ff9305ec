// Package db defines the key-value storage contract used by the outcome
// journal. Implementations live in subpackages.
package db

// KVStore is a byte-oriented key-value store with ordered iteration.
type KVStore interface {
	Reader
	Writer
	Delete(key []byte) error
	NewBatch() Batch
	Close() error
}

type Reader interface {
	Get(key []byte) ([]byte, error)
	// NewIterator walks keys in [start, end). nil bounds are open.
	NewIterator(start, end []byte) (Iterator, error)
}

type Writer interface {
	Put(key []byte, value []byte) error
}

// Batch groups writes that are applied atomically on Commit.
type Batch interface {
	Writer
	Delete(key []byte) error
	Commit() error
	Close() error
}

// Iterator provides sequential access over a range of key-value pairs.
// Iterators must be closed after use.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Valid() bool
	Close() error
}
