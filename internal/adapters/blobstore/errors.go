package blobstore

import "errors"

// Sentinel kinds for blob store errors.
var (
	ErrNotConfigured = errors.New("blob store is not configured")
	ErrObjectMissing = errors.New("object not found")
)
