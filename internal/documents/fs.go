package documents

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/cv-ranker/internal/models"
)

// FSStore keeps documents as files in a single directory.
type FSStore struct {
	dir string
}

func NewFSStore(dir string) (*FSStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}

	return &FSStore{dir: dir}, nil
}

func (s *FSStore) Put(ctx context.Context, filename string, content []byte) (models.DocumentRef, error) {
	if err := ctx.Err(); err != nil {
		return models.DocumentRef{}, err
	}

	ref := models.DocumentRef{Key: NewKey(filename), Filename: sanitizeFilename(filename)}

	f, err := os.OpenFile(s.path(ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return models.DocumentRef{}, fmt.Errorf("create document %s: %w", ref.Key, err)
	}

	if _, err := f.Write(content); err != nil {
		f.Close()
		os.Remove(s.path(ref))
		return models.DocumentRef{}, fmt.Errorf("write document %s: %w", ref.Key, err)
	}

	if err := f.Close(); err != nil {
		return models.DocumentRef{}, fmt.Errorf("close document %s: %w", ref.Key, err)
	}

	return ref, nil
}

func (s *FSStore) Get(ctx context.Context, ref models.DocumentRef) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref.Key)
	}
	if err != nil {
		return nil, fmt.Errorf("read document %s: %w", ref.Key, err)
	}

	return data, nil
}

func (s *FSStore) Delete(_ context.Context, ref models.DocumentRef) error {
	err := os.Remove(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, ref.Key)
	}
	if err != nil {
		return fmt.Errorf("delete document %s: %w", ref.Key, err)
	}
	return nil
}

func (s *FSStore) path(ref models.DocumentRef) string {
	return filepath.Join(s.dir, filepath.Base(ref.Key))
}
