package intake

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/documents"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/models"
)

// Intake filters uploads and writes the survivors to the document store.
type Intake struct {
	filters []Filter
	store   documents.Store
	logger  *zap.Logger
}

func New(store documents.Store, filters []Filter, log *zap.Logger) *Intake {
	return &Intake{
		filters: filters,
		store:   store,
		logger:  logger.WithFields(log, zap.String("component", "intake")),
	}
}

// Filters exposes the configured filter chain.
func (in *Intake) Filters() []Filter {
	return in.filters
}

// Stage runs the filter chain and stores every accepted upload. When storing
// fails, documents already written are removed before the error is returned.
func (in *Intake) Stage(ctx context.Context, uploads []Upload) ([]models.DocumentRef, error) {
	accepted, err := Run(ctx, in.logger, in.filters, NewUploads(uploads...))
	if err != nil {
		return nil, fmt.Errorf("filter uploads: %w", err)
	}

	refs := make([]models.DocumentRef, 0, accepted.Len())
	for _, item := range accepted.Items {
		ref, err := in.store.Put(ctx, item.Filename, item.Content)
		if err != nil {
			in.Release(ctx, refs)
			return nil, fmt.Errorf("store %s: %w", item.Filename, err)
		}
		refs = append(refs, ref)
	}

	return refs, nil
}

// Release deletes stored documents that will not be processed.
func (in *Intake) Release(ctx context.Context, refs []models.DocumentRef) {
	for _, ref := range refs {
		if err := in.store.Delete(ctx, ref); err != nil {
			in.logger.Warn("failed to release document", append(logger.JobFields("", ref.Key), zap.Error(err))...)
		}
	}
}
