package intake

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Upload is one document received from a client before it is stored.
type Upload struct {
	Filename string
	Content  []byte
}

// Uploads is the working set passed through the filter steps.
type Uploads struct {
	Items []*Upload
}

func NewUploads(items ...Upload) *Uploads {
	u := &Uploads{Items: make([]*Upload, 0, len(items))}
	for i := range items {
		item := items[i]
		u.Items = append(u.Items, &item)
	}
	return u
}

func (u *Uploads) Len() int {
	if u == nil {
		return 0
	}
	return len(u.Items)
}

// Exclude removes uploads for which drop returns true and returns the removed filenames.
func (u *Uploads) Exclude(drop func(*Upload) bool) []string {
	kept := u.Items[:0]
	var excluded []string
	for _, item := range u.Items {
		if drop(item) {
			excluded = append(excluded, item.Filename)
			continue
		}
		kept = append(kept, item)
	}
	u.Items = kept
	return excluded
}

// Filter represents a single filtering step applied to uploads.
type Filter interface {
	Name() string
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, u *Uploads) (*Uploads, Step, error)
}

// Step describes the result of executing a filtering step.
type Step struct {
	Initial int
	Dropped int
	Left    int
}

// Status represents runtime information about a filter.
type Status struct {
	Name    string            `json:"name"`
	Enabled bool              `json:"enabled"`
	Reason  string            `json:"reason,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

type statusProvider interface {
	Status() Status
}

// DisableByName marks a filter with the provided name as disabled while keeping it in the list.
func DisableByName(steps []Filter, name, reason string) {
	for _, step := range steps {
		if step.Name() == name {
			step.Disable(reason)
		}
	}
}

// Run executes the supplied filters sequentially.
func Run(ctx context.Context, logger *zap.Logger, steps []Filter, u *Uploads) (*Uploads, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	for _, step := range steps {
		if !step.IsEnabled() {
			logger.Debug("filter disabled", zap.String("name", step.Name()))
			continue
		}

		next, info, err := step.Apply(ctx, u)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", step.Name(), err)
		}

		logger.Info("filter step",
			zap.String("name", step.Name()),
			zap.Int("initial", info.Initial),
			zap.Int("dropped", info.Dropped),
			zap.Int("left", info.Left),
		)

		u = next
	}

	return u, nil
}

// Describe returns status entries for the provided filters.
func Describe(steps []Filter) []Status {
	statuses := make([]Status, 0, len(steps))
	for _, step := range steps {
		if reporter, ok := step.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}

		statuses = append(statuses, Status{
			Name:    step.Name(),
			Enabled: step.IsEnabled(),
		})
	}
	return statuses
}
