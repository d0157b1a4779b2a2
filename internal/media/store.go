package media

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Asset identifies a stored image. ID is the handle used for release, URL
// is what catalog records and order snapshots point at.
type Asset struct {
	ID  string
	URL string
}

// Store is the image resource collaborator. Release is best-effort on the
// product delete path: callers log failures and carry on.
type Store interface {
	Save(ctx context.Context, filename string, r io.Reader) (Asset, error)
	Release(ctx context.Context, id string) error
}

// DiskStore keeps product images on the local filesystem and serves them
// under a configured base URL.
type DiskStore struct {
	dir     string
	baseURL string
}

// NewDiskStore creates the media directory if needed.
func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Save writes the image under a fresh uuid-based name, preserving the
// original extension.
func (s *DiskStore) Save(ctx context.Context, filename string, r io.Reader) (Asset, error) {
	if err := ctx.Err(); err != nil {
		return Asset{}, err
	}

	id := uuid.New().String() + strings.ToLower(filepath.Ext(filename))

	f, err := os.Create(filepath.Join(s.dir, id))
	if err != nil {
		return Asset{}, fmt.Errorf("failed to create media file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return Asset{}, fmt.Errorf("failed to write media file: %w", err)
	}

	return Asset{ID: id, URL: s.baseURL + "/" + id}, nil
}

// Release removes a stored image. Removing an id that is already gone is
// not an error.
func (s *DiskStore) Release(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Reject ids that could escape the media directory.
	if id == "" || filepath.Base(id) != id {
		return fmt.Errorf("invalid media id: %q", id)
	}

	if err := os.Remove(filepath.Join(s.dir, id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove media file: %w", err)
	}
	return nil
}
