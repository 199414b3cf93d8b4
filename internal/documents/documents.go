package documents

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/spigell/cv-ranker/internal/models"
)

// ErrNotFound is returned when a document does not exist in the store.
var ErrNotFound = errors.New("document not found")

// Store holds uploaded documents between intake and processing.
// Each document is written once and deleted at most once.
type Store interface {
	Put(ctx context.Context, filename string, content []byte) (models.DocumentRef, error)
	Get(ctx context.Context, ref models.DocumentRef) ([]byte, error)
	Delete(ctx context.Context, ref models.DocumentRef) error
}

// NewKey builds a unique storage key of the form <uuid>_<filename>.
func NewKey(filename string) string {
	return uuid.NewString() + "_" + sanitizeFilename(filename)
}

func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(strings.TrimSpace(filename), "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document"
	}
	return name
}
