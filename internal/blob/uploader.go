// Package blob defines the capability interface the upload processor uses
// to move a file's bytes into object storage, independent of which cloud
// SDK backs it.
package blob

import (
	"context"
	"io"
)

// Uploader is implemented by each storage backend (internal/blob/azure,
// internal/blob/localstub). Upload errors should already be classified as
// apperrors.UploadTransient or apperrors.UploadPermanent by the backend —
// the processor does not inspect SDK-specific error shapes.
type Uploader interface {
	// Upload streams size bytes from r into container/objectName.
	Upload(ctx context.Context, container, objectName string, r io.Reader, size int64) error

	// ListContainers returns the containers visible to the configured
	// credentials, used by the `probe` CLI command's diagnostic output.
	ListContainers(ctx context.Context) ([]string, error)

	// Probe performs a minimal connectivity check (e.g. listing containers)
	// and returns a human-readable status line plus any error encountered.
	Probe(ctx context.Context) (string, error)
}
