// Package azure implements blob.Uploader against Azure Blob Storage using
// the official SDK, streaming uploads via a single UploadStream call per
// file — no resumable multipart state, since the spec has no requirement
// to resume a partially-uploaded file across restarts.
package azure

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/pinesagetechnology/filemonitor/internal/apperrors"
	"github.com/pinesagetechnology/filemonitor/internal/blob"
	"github.com/pinesagetechnology/filemonitor/internal/constants"
)

// Backend is an Azure Blob Storage blob.Uploader backend.
type Backend struct {
	client *azblob.Client
}

// New creates a Backend from a storage account connection string.
func New(connectionString string) (*Backend, error) {
	client, err := azblob.NewClientFromConnectionString(connectionString, nil)
	if err != nil {
		return nil, fmt.Errorf("azure: create client: %w", err)
	}
	return &Backend{client: client}, nil
}

// Upload streams r into container/objectName as a block blob. SDK errors
// are classified at this boundary so the processor never needs
// SDK-specific knowledge, per blob.Uploader's contract.
func (b *Backend) Upload(ctx context.Context, container, objectName string, r io.Reader, size int64) error {
	_, err := b.client.UploadStream(ctx, container, objectName, r, &azblob.UploadStreamOptions{
		BlockSize:   constants.UploadChunkSize,
		Concurrency: 1,
	})
	if err == nil {
		return nil
	}
	if blob.IsCredentialError(err) {
		return &apperrors.UploadPermanent{Err: fmt.Errorf("azure upload %s/%s: %w", container, objectName, err)}
	}
	return &apperrors.UploadTransient{Err: fmt.Errorf("azure upload %s/%s: %w", container, objectName, err)}
}

// ListContainers lists every container visible to the configured
// credentials.
func (b *Backend) ListContainers(ctx context.Context) ([]string, error) {
	var names []string
	pager := b.client.NewListContainersPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("azure: list containers: %w", err)
		}
		for _, c := range page.ContainerItems {
			if c.Name != nil {
				names = append(names, *c.Name)
			}
		}
	}
	return names, nil
}

// Probe lists containers as a minimal connectivity/credential check.
func (b *Backend) Probe(ctx context.Context) (string, error) {
	containers, err := b.ListContainers(ctx)
	if err != nil {
		return "", fmt.Errorf("azure: probe failed: %w", err)
	}
	return fmt.Sprintf("azure backend ready, %d container(s) visible", len(containers)), nil
}
