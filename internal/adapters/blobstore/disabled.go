package blobstore

import "context"

// Disabled is a Store placeholder used when no object storage is
// configured. Every operation fails with ErrNotConfigured.
type Disabled struct{}

// NewDisabled returns a Store that rejects every operation.
func NewDisabled() *Disabled {
	return &Disabled{}
}

func (Disabled) List(context.Context, string) ([]string, error) {
	return nil, ErrNotConfigured
}

func (Disabled) Download(context.Context, string) ([]byte, error) {
	return nil, ErrNotConfigured
}

func (Disabled) Delete(context.Context, string) error {
	return ErrNotConfigured
}

func (Disabled) Upload(context.Context, string, []byte, string) (string, error) {
	return "", ErrNotConfigured
}
