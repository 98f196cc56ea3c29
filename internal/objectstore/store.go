// Package objectstore defines the Store interface for S3-compatible storage.
//
// The collector uses the store for one purpose: keeping the per-partition
// box-score artifacts in a bucket in sync with the local output directory.
// The interface is small and designed around conditional writes so the sync
// engine can detect concurrent external modification instead of silently
// overwriting it:
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.PutWithOptions(ctx, key, reader, size, "text/csv", objectstore.PutOptions{
//	    IfMatch: meta.ETag,
//	})
//	if errors.Is(err, objectstore.ErrPreconditionFailed) {
//	    // Remote changed since it was last observed.
//	}
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned when a conditional write fails
	// (if-match or if-none-match check).
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Get", "Delete")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	// Key is the object's key (path) in the bucket.
	Key string

	// Size is the object's size in bytes.
	Size int64

	// ContentType is the MIME type of the object.
	ContentType string

	// ETag is the entity tag assigned by the store.
	ETag string

	// LastModified is the Unix timestamp (milliseconds) when the object was last modified.
	LastModified int64

	// Metadata contains user-defined key-value metadata.
	Metadata map[string]string
}

// PutOptions configures a Put operation.
type PutOptions struct {
	// Metadata is optional user-defined key-value pairs stored with the object.
	// Keys are case-insensitive and may be prefixed by the storage provider.
	Metadata map[string]string

	// IfNoneMatch when set to "*" causes the Put to fail with
	// ErrPreconditionFailed if an object already exists at the key.
	// This enables atomic create operations.
	IfNoneMatch string

	// IfMatch, when non-empty, causes the Put to fail with
	// ErrPreconditionFailed unless the existing object's ETag matches.
	// This enables conflict-detecting overwrites.
	IfMatch string
}

// Store is the interface for object storage operations.
//
// All methods accept a context for cancellation and deadline propagation.
// Implementations should return wrapped errors using [ObjectError] where
// appropriate.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Put stores an object at the given key.
	//
	// The reader is consumed until EOF or error. The size parameter must match
	// the total bytes that will be read; some storage providers require this upfront.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error

	// PutWithOptions stores an object with additional options.
	//
	// Supports conditional writes via opts.IfNoneMatch / opts.IfMatch and
	// user-defined metadata via opts.Metadata.
	PutWithOptions(ctx context.Context, key string, reader io.Reader, size int64, contentType string, opts PutOptions) error

	// Get retrieves an entire object.
	//
	// The caller must close the returned ReadCloser when done.
	// Returns ErrNotFound if the object doesn't exist.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	//
	// Returns ErrNotFound if the object doesn't exist.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object.
	//
	// Delete is idempotent: deleting a non-existent object succeeds silently.
	// This matches S3 behavior and enables safe retries.
	Delete(ctx context.Context, key string) error

	// List returns objects matching the given prefix.
	//
	// Results are returned in lexicographic order by key. For large result
	// sets, implementations may paginate internally but return all results.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources associated with the store.
	//
	// After Close returns, all other methods will return errors.
	Close() error
}
