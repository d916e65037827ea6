// Package blobstore provides per-device namespaced object storage for
// device images.
package blobstore

import "context"

// Store is the object-storage contract consumed by the imagery adapter
// and the ingest path. Objects are named "{deviceID}/{object}".
type Store interface {
	// List returns object names under prefix in the store's listing order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Download returns the raw bytes of one object.
	Download(ctx context.Context, name string) ([]byte, error)

	// Delete removes one object.
	Delete(ctx context.Context, name string) error

	// Upload stores data under name with a content type and returns a
	// retrievable URL.
	Upload(ctx context.Context, name string, data []byte, contentType string) (string, error)
}
