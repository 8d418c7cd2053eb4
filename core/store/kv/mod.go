// Package kv defines the abstraction for a key/value database.
//
// The package also implements a default database implementation that is using
// bbolt as the engine (https://github.com/etcd-io/bbolt). The facility uses it
// to archive the finalized results and to store the values committed by the
// built-in operation types.
package kv

import "golang.org/x/xerrors"

// ErrBucketNotFound is wrapped by the error of a read-only transaction on a
// bucket that does not exist.
var ErrBucketNotFound = xerrors.New("bucket not found")

// Bucket is a general interface to operate on a database bucket.
type Bucket interface {
	// Get reads the key from the bucket and returns the value, or nil if the
	// key does not exist. The value is only valid during the transaction.
	Get(key []byte) []byte

	// Set assigns the value to the provided key.
	Set(key, value []byte) error

	// Delete deletes the key from the bucket.
	Delete(key []byte) error

	// ForEach iterates over all the items in the bucket in the order of the
	// keys. The iteration stops when the callback returns an error.
	ForEach(func(k, v []byte) error) error
}

// DB is a general interface to operate over a key/value database.
type DB interface {
	// View executes the read-only transaction on the bucket. It returns an
	// error if the bucket does not exist.
	View(bucket []byte, fn func(Bucket) error) error

	// Update executes the writable transaction on the bucket, which is created
	// if it does not exist yet.
	Update(bucket []byte, fn func(Bucket) error) error

	// Close closes the database and frees the resources.
	Close() error
}
