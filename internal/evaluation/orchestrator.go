// Package evaluation runs skill evaluation jobs: it lists a subject's source
// units, infers skills per unit, aggregates them and atomically replaces the
// subject's stored skill set, tracking progress on the job record.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/muhammadolammi/skillmatchworker/internal/aggregate"
	"github.com/muhammadolammi/skillmatchworker/internal/logger"
	"github.com/muhammadolammi/skillmatchworker/internal/models"
	"github.com/muhammadolammi/skillmatchworker/internal/retry"
	"github.com/muhammadolammi/skillmatchworker/internal/textvec"
)

var errCancelled = errors.New("cancelled")

type Options struct {
	MaxSourceUnits       int
	MaxCommits           int
	MaxTreeEntries       int
	BundleCommitMessages int
	BundleDependencies   int
	UnitConcurrency      int
	// LiveJobTTL bounds how long a queued or running job blocks new
	// submissions and how long a running job may go untouched before another
	// worker may take it over.
	LiveJobTTL time.Duration
	// SettleAttempts and SettleBackoff bound the retries of the terminal
	// error write. A job left running is only recovered by TTL takeover.
	SettleAttempts int
	SettleBackoff  time.Duration
}

func DefaultOptions() Options {
	return Options{
		MaxSourceUnits:       25,
		MaxCommits:           100,
		MaxTreeEntries:       2000,
		BundleCommitMessages: 30,
		BundleDependencies:   40,
		UnitConcurrency:      4,
		LiveJobTTL:           30 * time.Minute,
		SettleAttempts:       3,
		SettleBackoff:        retry.DefaultBackoff,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxSourceUnits <= 0 {
		o.MaxSourceUnits = d.MaxSourceUnits
	}
	if o.MaxCommits <= 0 {
		o.MaxCommits = d.MaxCommits
	}
	if o.MaxTreeEntries <= 0 {
		o.MaxTreeEntries = d.MaxTreeEntries
	}
	if o.BundleCommitMessages <= 0 {
		o.BundleCommitMessages = d.BundleCommitMessages
	}
	if o.BundleDependencies <= 0 {
		o.BundleDependencies = d.BundleDependencies
	}
	if o.UnitConcurrency <= 0 {
		o.UnitConcurrency = d.UnitConcurrency
	}
	if o.LiveJobTTL <= 0 {
		o.LiveJobTTL = d.LiveJobTTL
	}
	if o.SettleAttempts <= 0 {
		o.SettleAttempts = d.SettleAttempts
	}
	if o.SettleBackoff <= 0 {
		o.SettleBackoff = d.SettleBackoff
	}
	return o
}

// Deps are the orchestrator's collaborators. Notifier, Vocabulary, Logger and
// Now are optional.
type Deps struct {
	Store      Store
	Signals    SignalSource
	Inferer    SkillInferer
	Dispatcher Dispatcher
	Notifier   Notifier
	Vocabulary *textvec.VocabularyCache
	Logger     *zap.Logger
	Now        func() time.Time
}

type Orchestrator struct {
	store      Store
	signals    SignalSource
	inferer    SkillInferer
	dispatcher Dispatcher
	notifier   Notifier
	vocab      *textvec.VocabularyCache
	logger     *zap.Logger
	now        func() time.Time
	opts       Options
}

func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Store == nil:
		return nil, errors.New("evaluation: store is required")
	case deps.Signals == nil:
		return nil, errors.New("evaluation: signal source is required")
	case deps.Inferer == nil:
		return nil, errors.New("evaluation: skill inferer is required")
	}

	o := &Orchestrator{
		store:      deps.Store,
		signals:    deps.Signals,
		inferer:    deps.Inferer,
		dispatcher: deps.Dispatcher,
		notifier:   deps.Notifier,
		vocab:      deps.Vocabulary,
		logger:     logger.OrNop(deps.Logger),
		now:        deps.Now,
		opts:       opts.withDefaults(),
	}
	if o.vocab == nil {
		o.vocab = textvec.NewVocabularyCache(deps.Store)
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o, nil
}

// SetDispatcher wires a dispatcher that itself needs the orchestrator.
func (o *Orchestrator) SetDispatcher(d Dispatcher) {
	o.dispatcher = d
}

type SubmitRequest struct {
	Handle string
	// Force skips coalescing onto a live job for the same subject.
	Force bool
}

type Submission struct {
	JobID     uuid.UUID `json:"job_id"`
	SubjectID uuid.UUID `json:"subject_id"`
	Handle    string    `json:"handle"`
	// Coalesced is set when the submission joined an existing live job.
	Coalesced bool `json:"coalesced"`
}

// Submit records a queued job and hands it to the dispatcher. The returned
// job id can be polled with GetJob.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (Submission, error) {
	handle, err := ParseHandle(req.Handle)
	if err != nil {
		return Submission{}, err
	}
	if o.dispatcher == nil {
		return Submission{}, errors.New("evaluation: no dispatcher configured")
	}

	now := o.now()
	subject, err := o.store.EnsureSubject(ctx, handle, now)
	if err != nil {
		return Submission{}, &PersistenceError{Op: "ensure subject", Err: err}
	}

	if !req.Force {
		live, err := o.store.LiveJobForSubject(ctx, subject.ID, now.Add(-o.opts.LiveJobTTL))
		switch {
		case err == nil:
			o.logger.Info("coalesced onto live job",
				zap.String(logger.FieldHandle, handle),
				zap.String(logger.FieldJobID, live.ID.String()),
			)
			return Submission{JobID: live.ID, SubjectID: subject.ID, Handle: handle, Coalesced: true}, nil
		case !errors.Is(err, models.ErrNotFound):
			return Submission{}, &PersistenceError{Op: "look up live job", Err: err}
		}
	}

	job := models.Job{
		ID:        uuid.New(),
		SubjectID: subject.ID,
		Status:    models.JobQueued,
		CreatedAt: now,
	}
	if err := o.store.CreateJob(ctx, job); err != nil {
		return Submission{}, &PersistenceError{Op: "create job", Err: err}
	}
	if err := o.store.SetSubjectEvaluation(ctx, subject.ID, models.EvaluationRunning, ""); err != nil {
		return Submission{}, &PersistenceError{Op: "mark subject running", Err: err}
	}

	log := logger.ForJob(o.logger, job.ID.String(), handle)

	if err := o.dispatcher.Dispatch(ctx, job.ID); err != nil {
		log.Error("dispatch failed", zap.Error(err))
		o.fail(context.WithoutCancel(ctx), log, job, subject, fmt.Errorf("dispatch job: %w", err))
		return Submission{}, fmt.Errorf("dispatch job: %w", err)
	}

	o.notify(ctx, log, job, handle, "evaluation queued")
	log.Info("job submitted", zap.Bool("forced", req.Force))
	return Submission{JobID: job.ID, SubjectID: subject.ID, Handle: handle}, nil
}

// GetJob is the read-only status query used by pollers.
func (o *Orchestrator) GetJob(ctx context.Context, id uuid.UUID) (models.Job, error) {
	job, err := o.store.GetJob(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		return models.Job{}, ErrJobNotFound
	}
	if err != nil {
		return models.Job{}, &PersistenceError{Op: "get job", Err: err}
	}
	return job, nil
}

// Run drives one job from queued to a terminal state. Per-unit failures are
// skipped; a failed unit listing, aggregation write or cancellation ends the
// job in error. Run returns the job-fatal error, if any.
func (o *Orchestrator) Run(ctx context.Context, jobID uuid.UUID) error {
	job, err := o.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.Status.Terminal() {
		o.logger.Debug("job already finished", zap.String(logger.FieldJobID, jobID.String()))
		return nil
	}

	subject, err := o.store.SubjectByID(ctx, job.SubjectID)
	if errors.Is(err, models.ErrNotFound) {
		return ErrSubjectNotFound
	}
	if err != nil {
		return &PersistenceError{Op: "get subject", Err: err}
	}
	log := logger.ForJob(o.logger, job.ID.String(), subject.Handle)

	now := o.now()
	owned, err := o.store.StartJob(ctx, job.ID, now, now.Add(-o.opts.LiveJobTTL))
	if err != nil {
		return &PersistenceError{Op: "start job", Err: err}
	}
	if !owned {
		log.Info("job is owned by another worker, skipping")
		return nil
	}
	job.Status = models.JobRunning
	job.Progress = max(job.Progress, progressStarted)
	o.notify(ctx, log, job, subject.Handle, "evaluation started")
	log.Info("evaluation started")

	if err := o.evaluate(ctx, log, job, subject); err != nil {
		// Terminal writes must land even when ctx is already done.
		o.fail(context.WithoutCancel(ctx), log, job, subject, err)
		return err
	}

	completed, err := o.store.CompleteJob(ctx, job.ID, o.now())
	if err != nil {
		perr := &PersistenceError{Op: "complete job", Err: err}
		o.fail(context.WithoutCancel(ctx), log, job, subject, perr)
		return perr
	}
	if completed {
		job.Status, job.Progress = models.JobSuccess, progressDone
		o.notify(ctx, log, job, subject.Handle, "evaluation completed")
	}
	log.Info("evaluation completed")
	return nil
}

type unitOutcome struct {
	ok       bool
	skills   models.UnitSkills
	evidence aggregate.UnitEvidence
}

func (o *Orchestrator) evaluate(ctx context.Context, log *zap.Logger, job models.Job, subject models.Subject) error {
	units, err := o.signals.ListSourceUnits(ctx, subject.Handle, o.opts.MaxSourceUnits)
	if err != nil {
		if ctx.Err() != nil {
			return errCancelled
		}
		return &UpstreamFetchError{Op: "list source units", Err: err}
	}
	if len(units) > o.opts.MaxSourceUnits {
		units = units[:o.opts.MaxSourceUnits]
	}
	log.Info("listed source units", zap.Int("count", len(units)))

	if len(units) == 0 {
		// Evidence disappeared: clear whatever an earlier run stored.
		if err := o.store.ReplaceSubjectSkills(ctx, subject.ID, nil, nil, o.now()); err != nil {
			return &PersistenceError{Op: "clear subject skills", Err: err}
		}
		return nil
	}

	tracker := newProgressTracker(len(units), job.Progress, func(p int) {
		if err := o.store.AdvanceJobProgress(ctx, job.ID, p); err != nil {
			log.Warn("progress update failed", zap.Int("progress", p), zap.Error(err))
			return
		}
		update := job
		update.Progress = p
		o.notify(ctx, log, update, subject.Handle, "")
	})

	outcomes := make([]unitOutcome, len(units))
	var g errgroup.Group
	g.SetLimit(o.opts.UnitConcurrency)
	for i, unit := range units {
		g.Go(func() error {
			defer tracker.unitDone()
			if ctx.Err() != nil {
				return nil
			}
			outcomes[i] = o.processUnit(ctx, log, unit)
			return nil
		})
	}
	_ = g.Wait()

	if ctx.Err() != nil {
		return errCancelled
	}

	// Listing order, not completion order, keeps aggregation deterministic.
	var (
		evidence  = make([]aggregate.UnitEvidence, 0, len(outcomes))
		unitSkill = make([]models.UnitSkills, 0, len(outcomes))
	)
	for _, out := range outcomes {
		if !out.ok {
			continue
		}
		evidence = append(evidence, out.evidence)
		unitSkill = append(unitSkill, out.skills)
	}
	log.Info("units processed", zap.Int("usable", len(evidence)), zap.Int("skipped", len(units)-len(evidence)))

	aggregator := aggregate.New()
	aggregator.Now = o.now
	skills := aggregator.Aggregate(evidence)

	vocab, err := o.vocab.Current(ctx)
	if err != nil {
		return &PersistenceError{Op: "load vocabulary", Err: err}
	}
	for i := range skills {
		skills[i].Vector = textvec.VectorizeText(skills[i].Skill, vocab)
		skills[i].VocabularyGeneration = vocab.Generation
	}

	if err := o.store.ReplaceSubjectSkills(ctx, subject.ID, unitSkill, skills, o.now()); err != nil {
		return &PersistenceError{Op: "replace subject skills", Err: err}
	}
	log.Info("stored aggregated skills", zap.Int("skills", len(skills)), zap.Int64("vocabulary_generation", vocab.Generation))
	return nil
}

// processUnit never fails the job: fetch errors skip the unit and inference
// errors leave it with zero skills.
func (o *Orchestrator) processUnit(ctx context.Context, log *zap.Logger, unit models.SourceUnit) unitOutcome {
	log = log.With(zap.String(logger.FieldUnit, unit.FullName))

	var commits []models.Commit
	if unit.TracksActivity {
		c, err := o.signals.FetchCommitHistory(ctx, unit, o.opts.MaxCommits)
		if err != nil {
			log.Warn("skipping unit", zap.Error(&UpstreamFetchError{Op: "fetch commits", Unit: unit.FullName, Err: err}))
			return unitOutcome{}
		}
		if len(c) > o.opts.MaxCommits {
			c = c[:o.opts.MaxCommits]
		}
		commits = c
	}

	var (
		tree []models.FileEntry
		deps []models.Dependency
		text string
	)
	switch unit.Kind {
	case models.UnitKindDocument:
		reader, ok := o.signals.(DocumentReader)
		if !ok {
			log.Warn("skipping document unit, source cannot read documents")
			return unitOutcome{}
		}
		t, err := reader.FetchDocumentText(ctx, unit)
		if err != nil {
			log.Warn("skipping unit", zap.Error(&UpstreamFetchError{Op: "fetch document", Unit: unit.FullName, Err: err}))
			return unitOutcome{}
		}
		text = t
	default:
		t, err := o.signals.FetchFileTree(ctx, unit, o.opts.MaxTreeEntries)
		if err != nil {
			log.Warn("skipping unit", zap.Error(&UpstreamFetchError{Op: "fetch file tree", Unit: unit.FullName, Err: err}))
			return unitOutcome{}
		}
		if len(t) > o.opts.MaxTreeEntries {
			t = t[:o.opts.MaxTreeEntries]
		}
		tree = t

		d, err := o.signals.FetchDependencyManifests(ctx, unit, tree)
		if err != nil {
			log.Warn("skipping unit", zap.Error(&UpstreamFetchError{Op: "fetch manifests", Unit: unit.FullName, Err: err}))
			return unitOutcome{}
		}
		deps = d
	}

	bundle := BuildBundle(unit, deps, commits, tree, o.opts.BundleCommitMessages, o.opts.BundleDependencies)
	bundle.DocumentText = text

	skills, err := o.inferer.InferSkills(ctx, bundle)
	if err != nil {
		log.Warn("inference failed, unit contributes no skills", zap.Error(&InferenceError{Unit: unit.FullName, Err: err}))
		skills = nil
	}
	log.Debug("unit processed", zap.Int("commits", len(commits)), zap.Int("dependencies", len(deps)), zap.Int("skills", len(skills)))

	return unitOutcome{
		ok:     true,
		skills: models.UnitSkills{Unit: unit, Skills: skills},
		evidence: aggregate.UnitEvidence{
			UnitID:             unit.ID,
			Skills:             skills,
			CommitTimestampsMs: commitTimestamps(commits),
			ActivityKnown:      unit.TracksActivity,
		},
	}
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, job models.Job, subject models.Subject, cause error) {
	msg := shortMessage(cause)
	log.Error("evaluation failed", zap.Error(cause))

	failed, err := retry.Do(ctx, o.opts.SettleAttempts, o.opts.SettleBackoff, func(ctx context.Context) (bool, error) {
		return o.store.FailJob(ctx, job.ID, msg, o.now())
	})
	if err != nil {
		log.Error("could not mark job failed", zap.Error(err))
		return
	}
	if !failed {
		return
	}
	if err := o.store.SetSubjectEvaluation(ctx, subject.ID, models.EvaluationError, msg); err != nil {
		log.Error("could not mark subject failed", zap.Error(err))
	}
	job.Status = models.JobError
	o.notify(ctx, log, job, subject.Handle, msg)
}

func (o *Orchestrator) notify(ctx context.Context, log *zap.Logger, job models.Job, handle, message string) {
	if o.notifier == nil {
		return
	}
	err := o.notifier.Notify(ctx, Update{
		JobID:     job.ID,
		SubjectID: job.SubjectID,
		Handle:    handle,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   message,
		Timestamp: o.now(),
	})
	if err != nil {
		log.Warn("failed to publish update", zap.Error(err))
	}
}
