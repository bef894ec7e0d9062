package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
)

// AzureStore uploads into one blob container.
type AzureStore struct {
	client    *azblob.Client
	container string
}

// NewAzureStore authenticates with a shared key against the account's public endpoint.
func NewAzureStore(accountName, accountKey, container string) (*AzureStore, error) {
	if accountName == "" || accountKey == "" {
		return nil, errors.New("azure storage account name and key are required")
	}
	return NewAzureStoreWithURL(fmt.Sprintf("https://%s.blob.core.windows.net/", accountName), accountName, accountKey, container)
}

// NewAzureStoreWithURL targets an explicit service URL, such as an Azurite emulator.
func NewAzureStoreWithURL(serviceURL, accountName, accountKey, container string) (*AzureStore, error) {
	if container == "" {
		return nil, errors.New("azure storage container is required")
	}
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("invalid azure credentials: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("create azure client: %w", err)
	}
	return &AzureStore{client: client, container: container}, nil
}

// Upload writes data as a block blob and returns its URL.
func (s *AzureStore) Upload(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	_, err := s.client.UploadBuffer(ctx, s.container, name, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return s.blobURL(name), nil
}

func (s *AzureStore) blobURL(name string) string {
	return strings.TrimSuffix(s.client.URL(), "/") + "/" + s.container + "/" + name
}
