package intake

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/spigell/cv-ranker/internal/extract"
)

const (
	SupportedTypeFilter = "supported_type"
	NonEmptyFilter      = "non_empty"
	MaxSizeFilter       = "max_size"
	DuplicateFilter     = "duplicate_content"
)

// Config selects and tunes the default filter chain.
type Config struct {
	MaxFileSize    int64 `mapstructure:"max-file-size"`
	DropDuplicates bool  `mapstructure:"drop-duplicates"`
}

// DefaultFilters builds the filter chain applied to every submission.
func DefaultFilters(cfg Config) []Filter {
	steps := []Filter{
		NewSupportedType(),
		NewNonEmpty(),
		NewMaxSize(cfg.MaxFileSize),
		NewDuplicate(),
	}
	if !cfg.DropDuplicates {
		DisableByName(steps, DuplicateFilter, "drop-duplicates is not set")
	}
	return steps
}

type toggle struct {
	disabled bool
	reason   string
}

func (t *toggle) Disable(reason string) {
	t.disabled = true
	t.reason = reason
}

func (t *toggle) IsEnabled() bool { return !t.disabled }

type supportedTypeFilter struct{ toggle }

// NewSupportedType creates a filter that drops uploads that are not PDF files.
func NewSupportedType() Filter {
	return &supportedTypeFilter{}
}

func (f *supportedTypeFilter) Name() string { return SupportedTypeFilter }

func (f *supportedTypeFilter) Apply(_ context.Context, u *Uploads) (*Uploads, Step, error) {
	initial := u.Len()
	excluded := u.Exclude(func(item *Upload) bool {
		return !extract.IsSupported(item.Filename)
	})
	return u, Step{Initial: initial, Dropped: len(excluded), Left: u.Len()}, nil
}

type nonEmptyFilter struct{ toggle }

// NewNonEmpty creates a filter that drops zero-length uploads.
func NewNonEmpty() Filter {
	return &nonEmptyFilter{}
}

func (f *nonEmptyFilter) Name() string { return NonEmptyFilter }

func (f *nonEmptyFilter) Apply(_ context.Context, u *Uploads) (*Uploads, Step, error) {
	initial := u.Len()
	excluded := u.Exclude(func(item *Upload) bool {
		return len(item.Content) == 0
	})
	return u, Step{Initial: initial, Dropped: len(excluded), Left: u.Len()}, nil
}

type maxSizeFilter struct {
	toggle
	limit int64
}

// NewMaxSize creates a filter that drops uploads larger than limit bytes.
// A non-positive limit disables the filter.
func NewMaxSize(limit int64) Filter {
	f := &maxSizeFilter{limit: limit}
	if limit <= 0 {
		f.Disable("no size limit configured")
	}
	return f
}

func (f *maxSizeFilter) Name() string { return MaxSizeFilter }

func (f *maxSizeFilter) Apply(_ context.Context, u *Uploads) (*Uploads, Step, error) {
	initial := u.Len()
	excluded := u.Exclude(func(item *Upload) bool {
		return int64(len(item.Content)) > f.limit
	})
	return u, Step{Initial: initial, Dropped: len(excluded), Left: u.Len()}, nil
}

func (f *maxSizeFilter) Status() Status {
	return Status{
		Name:    f.Name(),
		Enabled: f.IsEnabled(),
		Reason:  f.reason,
		Details: map[string]string{"limit_bytes": strconv.FormatInt(f.limit, 10)},
	}
}

type duplicateFilter struct{ toggle }

// NewDuplicate creates a filter that keeps only the first of several uploads with identical content.
func NewDuplicate() Filter {
	return &duplicateFilter{}
}

func (f *duplicateFilter) Name() string { return DuplicateFilter }

func (f *duplicateFilter) Apply(_ context.Context, u *Uploads) (*Uploads, Step, error) {
	initial := u.Len()
	seen := make(map[string]struct{}, initial)
	excluded := u.Exclude(func(item *Upload) bool {
		sum := sha256.Sum256(item.Content)
		key := hex.EncodeToString(sum[:])
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
		return false
	})
	return u, Step{Initial: initial, Dropped: len(excluded), Left: u.Len()}, nil
}

func (f *duplicateFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
