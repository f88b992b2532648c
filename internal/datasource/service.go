// Package datasource provides CRUD operations over FileDataSource rows, the
// operator-declared folders the watcher supervises.
package datasource

import (
	"context"
	"fmt"

	"github.com/pinesagetechnology/filemonitor/internal/models"
	"github.com/pinesagetechnology/filemonitor/internal/pathutil"
	"github.com/pinesagetechnology/filemonitor/internal/store"
	"github.com/pinesagetechnology/filemonitor/internal/validation"
)

// Service is a thin service layer over store.DataSourceRepo, resolving and
// validating operator-supplied paths before they reach the store.
type Service struct {
	repo *store.DataSourceRepo
}

// New creates a Service backed by repo.
func New(repo *store.DataSourceRepo) *Service {
	return &Service{repo: repo}
}

// Add validates and resolves folderPath/archiveFolderPath and creates a new
// enabled FileDataSource row. Re-adding an existing name replaces its
// settings and marks it for a watcher refresh.
func (s *Service) Add(ctx context.Context, name, folderPath, archiveFolderPath, filePattern string) error {
	if name == "" {
		return fmt.Errorf("data source name cannot be empty")
	}
	if err := validation.ValidateDirectoryPath(folderPath); err != nil {
		return fmt.Errorf("invalid folder_path: %w", err)
	}
	resolvedFolder, err := pathutil.ResolveAbsolutePath(folderPath)
	if err != nil {
		return fmt.Errorf("resolve folder_path: %w", err)
	}

	resolvedArchive := ""
	if archiveFolderPath != "" {
		if err := validation.ValidateDirectoryPath(archiveFolderPath); err != nil {
			return fmt.Errorf("invalid archive_folder_path: %w", err)
		}
		resolvedArchive, err = pathutil.ResolveAbsolutePath(archiveFolderPath)
		if err != nil {
			return fmt.Errorf("resolve archive_folder_path: %w", err)
		}
	}

	return s.repo.Upsert(ctx, models.FileDataSource{
		Name:              name,
		FolderPath:        resolvedFolder,
		ArchiveFolderPath: resolvedArchive,
		FilePattern:       filePattern,
		IsEnabled:         true,
	})
}

// Get returns the named FileDataSource.
func (s *Service) Get(ctx context.Context, name string) (models.FileDataSource, bool, error) {
	return s.repo.Get(ctx, name)
}

// ListAll returns every data source ordered by name.
func (s *Service) ListAll(ctx context.Context) ([]models.FileDataSource, error) {
	return s.repo.ListAll(ctx)
}

// Enable marks a data source enabled and due for a watcher refresh.
func (s *Service) Enable(ctx context.Context, name string) error {
	return s.repo.SetEnabled(ctx, name, true)
}

// Disable marks a data source disabled and due for a watcher refresh; the
// supervisor stops its watcher on the next reconciliation tick.
func (s *Service) Disable(ctx context.Context, name string) error {
	return s.repo.SetEnabled(ctx, name, false)
}

// Refresh marks a data source as needing a watcher refresh without
// changing its enabled state, for operator-triggered config reloads.
func (s *Service) Refresh(ctx context.Context, name string) error {
	ds, ok, err := s.repo.Get(ctx, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("data source %q not found", name)
	}
	ds.NeedsRefresh = true
	return s.repo.Upsert(ctx, ds)
}

// ClearNeedsRefresh resets the needs_refresh flag once the supervisor has
// reconciled the watcher for this data source.
func (s *Service) ClearNeedsRefresh(ctx context.Context, name string) error {
	return s.repo.ClearNeedsRefresh(ctx, name)
}

// Remove deletes a data source. In-flight or queued UploadJob rows for it
// are left to drain; only the watcher stops picking up new files.
func (s *Service) Remove(ctx context.Context, name string) error {
	return s.repo.Delete(ctx, name)
}
