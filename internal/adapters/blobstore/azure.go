package blobstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// maxDownloadRetries bounds per-request retry behavior inside the SDK.
const maxDownloadRetries = 3

// AzureStore implements Store over an Azure Blob container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore connects to the container identified by the connection
// string. The container must already exist.
func NewAzureStore(connectionString, container string) (*AzureStore, error) {
	if connectionString == "" {
		return nil, ErrNotConfigured
	}
	client, err := azblob.NewClientFromConnectionString(connectionString, &azblob.ClientOptions{
		ClientOptions: policy.ClientOptions{
			Retry: policy.RetryOptions{MaxRetries: maxDownloadRetries},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("connect blob store: %w", err)
	}
	return &AzureStore{client: client, container: container}, nil
}

// List returns object names under prefix in the service's listing order.
// The order is not re-sorted here; callers rely on the store's ordering.
func (s *AzureStore) List(ctx context.Context, prefix string) ([]string, error) {
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	var names []string
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %q: %w", prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				names = append(names, *item.Name)
			}
		}
	}
	return names, nil
}

func (s *AzureStore) Download(ctx context.Context, name string) ([]byte, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		return nil, fmt.Errorf("download %q: %w", name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", name, err)
	}
	return data, nil
}

func (s *AzureStore) Delete(ctx context.Context, name string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	return nil
}

func (s *AzureStore) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload %q: %w", name, err)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(s.client.URL(), "/"), s.container, name), nil
}
