package storage

import (
	"context"
	"fmt"
	"iter"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// AzureConfig represents the configuration for Azure Blob Storage
type AzureConfig struct {
	ConnectionString string
	Container        string
	CreateContainer  bool
}

// AzureStorage implements ObjectStore on a single Azure Blob container
type AzureStorage struct {
	client       *azblob.Client
	container    string
	containerURL string
}

// NewAzureStorage creates the blob client from the connection descriptor. An unusable descriptor is
// a configuration error and the caller is expected to refuse to start.
func NewAzureStorage(ctx context.Context, config AzureConfig) (*AzureStorage, error) {
	if config.Container == "" {
		return nil, fmt.Errorf("azure container name is empty")
	}

	client, err := azblob.NewClientFromConnectionString(config.ConnectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	if config.CreateContainer {
		if _, err := client.CreateContainer(ctx, config.Container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("failed to create container %s: %w", config.Container, err)
		}
		log.Info().Str("container", config.Container).Msg("Blob container ready")
	}

	containerURL, err := stripQuery(client.ServiceClient().NewContainerClient(config.Container).URL())
	if err != nil {
		return nil, fmt.Errorf("invalid container URL: %w", err)
	}

	return &AzureStorage{
		client:       client,
		container:    config.Container,
		containerURL: containerURL,
	}, nil
}

// Put uploads data as a block blob
func (a *AzureStorage) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := a.client.UploadBuffer(ctx, a.container, key, data, &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{
			BlobContentType: lo.ToPtr(contentType),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload blob %s to container %s: %w", key, a.container, err)
	}
	return nil
}

// List pages through the flat blob listing under prefix
func (a *AzureStorage) List(ctx context.Context, prefix string) iter.Seq2[ObjectInfo, error] {
	return func(yield func(ObjectInfo, error) bool) {
		pager := a.client.NewListBlobsFlatPager(a.container, &azblob.ListBlobsFlatOptions{
			Prefix: lo.ToPtr(prefix),
		})
		for pager.More() {
			page, err := pager.NextPage(ctx)
			if err != nil {
				yield(ObjectInfo{}, fmt.Errorf("failed to list blobs with prefix %s: %w", prefix, err))
				return
			}
			if page.Segment == nil {
				continue
			}
			for _, item := range page.Segment.BlobItems {
				if !yield(azureObjectInfo(item), nil) {
					return
				}
			}
		}
	}
}

// Exists issues a properties request for key
func (a *AzureStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.ServiceClient().NewContainerClient(a.container).NewBlobClient(key).GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to get properties of blob %s: %w", key, err)
}

// Delete removes key from the container
func (a *AzureStorage) Delete(ctx context.Context, key string) error {
	if _, err := a.client.DeleteBlob(ctx, a.container, key, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return ErrObjectNotFound
		}
		return fmt.Errorf("failed to delete blob %s from container %s: %w", key, a.container, err)
	}
	return nil
}

// ContainerURL returns the container endpoint without any query string
func (a *AzureStorage) ContainerURL() string {
	return a.containerURL
}

// Ping reads the container properties
func (a *AzureStorage) Ping(ctx context.Context) error {
	if _, err := a.client.ServiceClient().NewContainerClient(a.container).GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("failed to reach container %s: %w", a.container, err)
	}
	return nil
}

func azureObjectInfo(item *container.BlobItem) ObjectInfo {
	info := ObjectInfo{Key: lo.FromPtr(item.Name)}
	if p := item.Properties; p != nil {
		info.ContentType = lo.FromPtr(p.ContentType)
		info.Size = lo.FromPtr(p.ContentLength)
		info.CreatedAt = lo.FromPtr(p.CreationTime)
		if info.CreatedAt.IsZero() {
			info.CreatedAt = lo.FromPtr(p.LastModified)
		}
	}
	return info
}

// stripQuery drops any SAS token the client URL carries from a SAS connection string.
func stripQuery(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	return u.String(), nil
}
