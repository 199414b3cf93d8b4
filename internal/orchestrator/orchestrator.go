package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/cv-ranker/internal/extract"
	"github.com/spigell/cv-ranker/internal/jobstore"
	"github.com/spigell/cv-ranker/internal/logger"
	"github.com/spigell/cv-ranker/internal/metrics"
	"github.com/spigell/cv-ranker/internal/models"
	"github.com/spigell/cv-ranker/internal/tracing"
)

const (
	defaultConcurrency = 4
	minDocuments       = 2
	noProfilesReason   = "no candidate profiles were produced"
)

var (
	// ErrInvalidBatch is returned by Submit when the batch cannot be processed.
	ErrInvalidBatch = errors.New("invalid batch")
	// ErrShuttingDown is returned by Submit after Shutdown was called.
	ErrShuttingDown = errors.New("orchestrator is shutting down")
)

// Processor turns one document into a profile. It must always return a profile.
type Processor interface {
	Process(ctx context.Context, ref models.DocumentRef, jobDescription string) models.CandidateProfile
}

type Aggregator interface {
	Aggregate(ctx context.Context, jobID string, profiles []models.CandidateProfile, jobDescription string) (models.ConsolidatedReport, error)
}

type Config struct {
	Concurrency int `mapstructure:"concurrency"`
}

type Deps struct {
	Store      jobstore.Store
	Processor  Processor
	Aggregator Aggregator
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Orchestrator fans a batch out to per-document workers on a bounded pool
// and fans the results back in to a single aggregation per job.
type Orchestrator struct {
	store      jobstore.Store
	processor  Processor
	aggregator Aggregator
	logger     *zap.Logger
	metrics    *metrics.Metrics
	sem        chan struct{}
	newID      func() string

	mu      sync.Mutex
	batches map[string]*batch
	closed  bool
	running sync.WaitGroup
}

// batch is the countdown latch of one job. Each slot is written by exactly
// one item before it decrements remaining.
type batch struct {
	id             string
	jobDescription string
	refs           []models.DocumentRef
	outcomes       []*models.CandidateProfile
	remaining      atomic.Int64
	aggregated     atomic.Bool
	done           chan struct{}
	doneOnce       sync.Once
}

func newBatch(id, jobDescription string, refs []models.DocumentRef) *batch {
	b := &batch{
		id:             id,
		jobDescription: jobDescription,
		refs:           refs,
		outcomes:       make([]*models.CandidateProfile, len(refs)),
		done:           make(chan struct{}),
	}
	b.remaining.Store(int64(len(refs)))
	return b
}

func New(cfg Config, deps Deps) *Orchestrator {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	return &Orchestrator{
		store:      deps.Store,
		processor:  deps.Processor,
		aggregator: deps.Aggregator,
		logger:     logger.WithFields(deps.Logger, zap.String("component", "orchestrator")),
		metrics:    deps.Metrics,
		sem:        make(chan struct{}, concurrency),
		newID:      uuid.NewString,
		batches:    make(map[string]*batch),
	}
}

// Submit validates the batch, records a PENDING job and starts processing in
// the background. It returns as soon as the job exists.
func (o *Orchestrator) Submit(ctx context.Context, docs []models.DocumentRef, jobDescription string) (string, error) {
	accepted, err := validate(docs, jobDescription)
	if err != nil {
		o.metrics.Inc(metrics.BatchesRejected)
		o.logger.Info("batch rejected", zap.Int("documents", len(docs)), zap.Error(err))
		return "", err
	}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return "", ErrShuttingDown
	}
	o.running.Add(1)
	o.mu.Unlock()

	id := o.newID()
	if _, err := o.store.Create(ctx, id); err != nil {
		o.running.Done()
		return "", fmt.Errorf("create job: %w", err)
	}

	b := newBatch(id, jobDescription, accepted)

	o.mu.Lock()
	o.batches[id] = b
	o.mu.Unlock()

	o.metrics.Inc(metrics.BatchesSubmitted)
	o.logger.Info("batch submitted",
		append(logger.JobFields(id, ""),
			zap.Int("documents", len(accepted)),
			zap.Int("dropped", len(docs)-len(accepted)),
		)...,
	)

	go o.run(context.WithoutCancel(ctx), b)

	return id, nil
}

func validate(docs []models.DocumentRef, jobDescription string) ([]models.DocumentRef, error) {
	if strings.TrimSpace(jobDescription) == "" {
		return nil, fmt.Errorf("%w: job description is empty", ErrInvalidBatch)
	}
	if len(docs) < minDocuments {
		return nil, fmt.Errorf("%w: at least %d documents are required, got %d", ErrInvalidBatch, minDocuments, len(docs))
	}

	accepted := make([]models.DocumentRef, 0, len(docs))
	for _, ref := range docs {
		if extract.IsSupported(ref.Filename) {
			accepted = append(accepted, ref)
		}
	}

	switch {
	case len(accepted) == 0:
		return nil, fmt.Errorf("%w: no supported documents, only PDF files are accepted", ErrInvalidBatch)
	case len(accepted) < minDocuments:
		return nil, fmt.Errorf("%w: at least %d PDF documents are required, got %d", ErrInvalidBatch, minDocuments, len(accepted))
	}

	return accepted, nil
}

func (o *Orchestrator) run(ctx context.Context, b *batch) {
	defer o.running.Done()

	ctx, span := tracing.StartSpan(ctx, "orchestrator.batch", tracing.JobID(b.id))
	defer span.End()

	log := o.logger.With(logger.JobFields(b.id, "")...)

	if err := o.store.SetRunning(ctx, b.id); err != nil {
		log.Warn("failed to mark job running", zap.Error(err))
	}

	var items sync.WaitGroup
	for i, ref := range b.refs {
		o.sem <- struct{}{}
		items.Add(1)

		go func(slot int, ref models.DocumentRef) {
			defer items.Done()

			profile := o.process(ctx, log, b, ref)
			<-o.sem

			o.countDown(ctx, log, b, slot, profile)
		}(i, ref)
	}

	items.Wait()
}

func (o *Orchestrator) process(ctx context.Context, log *zap.Logger, b *batch, ref models.DocumentRef) (profile models.CandidateProfile) {
	ctx, span := tracing.StartSpan(ctx, "orchestrator.item", tracing.JobID(b.id), tracing.Document(ref.Key))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			log.Error("document processor panicked", zap.String(logger.FieldDocument, ref.Key), zap.Any("panic", r))
			profile = models.DegradedProfile(fmt.Sprintf("processor panic: %v", r))
		}
	}()

	return o.processor.Process(ctx, ref, b.jobDescription)
}

// countDown records the outcome of one item. The item that brings the latch
// to zero performs the fan-in.
func (o *Orchestrator) countDown(ctx context.Context, log *zap.Logger, b *batch, slot int, profile models.CandidateProfile) {
	b.outcomes[slot] = &profile

	left := b.remaining.Add(-1)
	log.Debug("item finished", zap.Int("slot", slot), zap.Int64("remaining", left))
	if left != 0 {
		return
	}

	if err := o.finish(ctx, log, b); err != nil {
		log.Error("batch completion failed", zap.Error(err))
	}
}

// finish folds a batch whose latch reached zero. Only the first call for a
// batch aggregates.
func (o *Orchestrator) finish(ctx context.Context, log *zap.Logger, b *batch) error {
	if !b.aggregated.CompareAndSwap(false, true) {
		o.metrics.Inc(metrics.DuplicateCompletion)
		log.Info("duplicate completion ignored")
		return nil
	}
	defer o.release(b)

	return o.fold(ctx, log, b.id, b.outcomes, b.jobDescription)
}

// Complete folds the outcomes of a job into its final state. A job with a
// batch still in flight is folded by its own workers, so the call is ignored.
// Terminal jobs are left untouched. A nil outcome marks a document that
// produced nothing.
func (o *Orchestrator) Complete(ctx context.Context, jobID string, outcomes []*models.CandidateProfile, jobDescription string) error {
	log := o.logger.With(logger.JobFields(jobID, "")...)

	if b := o.lookup(jobID); b != nil {
		o.metrics.Inc(metrics.DuplicateCompletion)
		log.Info("completion ignored, batch still in flight",
			zap.Int("outcomes", len(outcomes)),
			zap.Int("documents", len(b.refs)),
		)
		return nil
	}

	if job, found, err := o.store.Get(ctx, jobID); err == nil && found && job.State.Terminal() {
		o.metrics.Inc(metrics.DuplicateCompletion)
		log.Info("duplicate completion ignored", zap.String("state", string(job.State)))
		return nil
	}

	return o.fold(ctx, log, jobID, outcomes, jobDescription)
}

func (o *Orchestrator) fold(ctx context.Context, log *zap.Logger, jobID string, outcomes []*models.CandidateProfile, jobDescription string) error {
	profiles := make([]models.CandidateProfile, 0, len(outcomes))
	for _, outcome := range outcomes {
		if outcome != nil {
			profiles = append(profiles, *outcome)
		}
	}

	if len(profiles) == 0 {
		return o.fail(ctx, log, jobID, noProfilesReason)
	}
	if missing := len(outcomes) - len(profiles); missing > 0 {
		log.Warn("some documents produced no profile", zap.Int("missing", missing))
	}

	if _, err := o.aggregator.Aggregate(ctx, jobID, profiles, jobDescription); err != nil {
		if ferr := o.fail(ctx, log, jobID, "aggregation failed: "+err.Error()); ferr != nil {
			log.Error("failed to record aggregation failure", zap.Error(ferr))
		}
		return fmt.Errorf("aggregate job %s: %w", jobID, err)
	}

	return nil
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, jobID, reason string) error {
	won, err := o.store.Fail(ctx, jobID, reason)
	if err != nil {
		return fmt.Errorf("mark job %s failed: %w", jobID, err)
	}
	if won {
		o.metrics.Inc(metrics.JobsFailed)
		log.Warn("job failed", zap.String("reason", reason))
	}
	return nil
}

func (o *Orchestrator) lookup(jobID string) *batch {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.batches[jobID]
}

func (o *Orchestrator) release(b *batch) {
	o.mu.Lock()
	delete(o.batches, b.id)
	o.mu.Unlock()

	b.doneOnce.Do(func() { close(b.done) })
}

// Wait blocks until the job's batch has been folded or ctx is done. Jobs
// without an in-flight batch return immediately.
func (o *Orchestrator) Wait(ctx context.Context, jobID string) error {
	b := o.lookup(jobID)
	if b == nil {
		return nil
	}

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the current state of a job. Unknown identifiers are
// reported as PENDING.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (models.Job, error) {
	job, found, err := o.store.Get(ctx, jobID)
	if err != nil {
		return models.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if !found {
		return models.Job{ID: jobID, State: models.JobPending}, nil
	}
	return job, nil
}

// Shutdown stops accepting submissions and waits for in-flight batches.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
