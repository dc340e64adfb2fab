package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonathan/cover-letter-studio/internal/logger"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

// State is the orchestrator's position in the pipeline.
type State int

const (
	StateIdle State = iota
	StateInitializing
	StateSavingJob
	StateFetchingProfile
	StateGenerating
	StateSavingLetter
	StateRefreshingJob
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateSavingJob:
		return "saving_job"
	case StateFetchingProfile:
		return "fetching_profile"
	case StateGenerating:
		return "generating"
	case StateSavingLetter:
		return "saving_letter"
	case StateRefreshingJob:
		return "refreshing_job"
	case StateSucceeded:
		return "idle_success"
	case StateFailed:
		return "idle_failed"
	default:
		return "idle"
	}
}

// Running reports whether s is between Initializing and RefreshingJob.
func (s State) Running() bool {
	return s >= StateInitializing && s <= StateRefreshingJob
}

// Status messages shown while a run progresses.
const (
	msgSavingJob       = "Gemmer jobopslaget..."
	msgFetchingProfile = "Henter din profil..."
	msgGenerating      = "Genererer ansøgning..."
	msgSavingLetter    = "Gemmer ansøgningen..."
	msgRefreshing      = "Opdaterer jobopslaget..."
	msgDone            = "Ansøgningen er klar"
)

// Options configures an Orchestrator.
type Options struct {
	// Deadline bounds a whole run. Defaults to DefaultDeadline.
	Deadline time.Duration
	Logger   *logger.Logger
}

// RunOptions are per-run parameters.
type RunOptions struct {
	// ExistingJobID makes the run update that job instead of inserting one.
	ExistingJobID string
	// OnAttempt, when set, receives the run's attempt token before the
	// tracker records any update for it.
	OnAttempt func(token uint64)
}

// Result is the outcome of a successful run. Letter.JobID always equals Job.ID.
type Result struct {
	Job    *types.JobRecord       `json:"job"`
	Letter *types.GeneratedLetter `json:"letter"`
}

// Orchestrator sequences the gateway calls of a run. At most one attempt is
// live per Orchestrator; starting a run supersedes the previous one.
type Orchestrator struct {
	gateway    Gateway
	tracker    *progress.Tracker
	classifier *Classifier
	controller Controller
	deadline   time.Duration
	log        *logger.Logger

	mu    sync.Mutex
	state State
}

// New creates an orchestrator reporting progress to tracker.
func New(gateway Gateway, tracker *progress.Tracker, opts Options) *Orchestrator {
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultDeadline
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if tracker == nil {
		tracker = progress.NewTracker("", opts.Logger)
	}
	return &Orchestrator{
		gateway:    gateway,
		tracker:    tracker,
		classifier: NewClassifier(opts.Deadline),
		deadline:   opts.Deadline,
		log:        opts.Logger.With("component", "orchestrator"),
	}
}

// Tracker returns the phase tracker fed by this orchestrator.
func (o *Orchestrator) Tracker() *progress.Tracker {
	return o.tracker
}

// State returns the current pipeline state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Cancel aborts the live run, if any. The aborted run returns a silent error.
func (o *Orchestrator) Cancel() bool {
	return o.controller.Cancel()
}

// Run executes the pipeline for ownerID. Every failure is returned as a
// *ClassifiedError; a Silent one means the run was cancelled or superseded.
func (o *Orchestrator) Run(ctx context.Context, ownerID string, input types.JobInput, opts RunOptions) (*Result, error) {
	ownerID = strings.TrimSpace(ownerID)
	existingJobID := strings.TrimSpace(opts.ExistingJobID)

	if ownerID == "" {
		return nil, o.reject(&Error{
			Kind:    KindValidationRejected,
			Op:      "run",
			Message: "Du skal være logget ind for at generere en ansøgning.",
			Fields:  []string{"owner"},
		})
	}
	if err := input.Validate(); err != nil {
		var verr *types.InputValidationError
		fields := []string(nil)
		if errors.As(err, &verr) {
			fields = verr.Fields
		}
		return nil, o.reject(&Error{Kind: KindValidationRejected, Op: "run", Fields: fields, Cause: err})
	}
	input = input.Normalize()

	attempt := o.begin(ctx, opts.OnAttempt)
	defer attempt.Done()
	token := attempt.Token
	log := o.log.With("attempt", token, "owner_id", ownerID)
	log.Info("generation run started", "existing_job_id", existingJobID)

	// SavingJob
	jobID, err := await(attempt, func(ctx context.Context) (string, error) {
		return o.gateway.SaveJob(ctx, input, ownerID, existingJobID)
	})
	if err == nil && strings.TrimSpace(jobID) == "" {
		err = &Error{Kind: KindUpstreamUnavailable, Op: "save job", Message: "no job id returned"}
	}
	if err != nil {
		return nil, o.fail(attempt, log, progress.PhaseJobSave, err, existingJobID)
	}
	log = log.With("job_id", jobID)
	if !o.step(token, StateFetchingProfile, progress.PhaseUserFetch, 30, msgFetchingProfile) {
		return nil, o.superseded(attempt, log, progress.PhaseUserFetch, jobID)
	}

	// FetchingProfile
	profile, err := await(attempt, func(ctx context.Context) (*types.ApplicantProfile, error) {
		return o.gateway.FetchProfile(ctx, ownerID)
	})
	if err != nil {
		return nil, o.fail(attempt, log, progress.PhaseUserFetch, err, jobID)
	}
	if profile == nil {
		profile = &types.ApplicantProfile{OwnerID: ownerID}
	}
	if !o.step(token, StateGenerating, progress.PhaseGeneration, 50, msgGenerating) {
		return nil, o.superseded(attempt, log, progress.PhaseGeneration, jobID)
	}

	// Generating
	content, err := await(attempt, func(ctx context.Context) (string, error) {
		return o.gateway.GenerateLetterContent(ctx, input, profile)
	})
	if err == nil && strings.TrimSpace(content) == "" {
		err = &Error{Kind: KindGenerationRejected, Op: "generate letter", Message: "empty content"}
	}
	if err != nil {
		return nil, o.fail(attempt, log, progress.PhaseGeneration, err, jobID)
	}
	if !o.step(token, StateSavingLetter, progress.PhaseLetterSave, 80, msgSavingLetter) {
		return nil, o.superseded(attempt, log, progress.PhaseLetterSave, jobID)
	}

	// SavingLetter
	letter, err := await(attempt, func(ctx context.Context) (*types.GeneratedLetter, error) {
		return o.gateway.SaveLetter(ctx, ownerID, jobID, content)
	})
	if err == nil && letter == nil {
		err = &Error{Kind: KindUpstreamUnavailable, Op: "save letter", Message: "no letter returned"}
	}
	if err != nil {
		return nil, o.fail(attempt, log, progress.PhaseLetterSave, err, jobID)
	}
	if !o.step(token, StateRefreshingJob, progress.PhaseLetterSave, 95, msgRefreshing) {
		return nil, o.superseded(attempt, log, progress.PhaseLetterSave, jobID)
	}

	// RefreshingJob: a failed refresh falls back to the input data, but an
	// attempt that ended (cancel, supersession or deadline) still fails.
	job, err := await(attempt, func(ctx context.Context) (*types.JobRecord, error) {
		return o.gateway.FetchJob(ctx, jobID)
	})
	if err != nil && attempt.Err() != nil {
		return nil, o.fail(attempt, log, progress.PhaseLetterSave, err, jobID)
	}
	if err != nil || job == nil || job.ID != jobID {
		if err != nil {
			log.Warn("job refresh failed, using input data", "error", err)
		}
		job = types.RecordFromInput(input, jobID, ownerID)
	}
	letter.JobID = job.ID

	ok := o.guard(token, func() {
		o.state = StateSucceeded
		o.tracker.Advance(progress.PhaseLetterSave, 100, msgDone)
	})
	if !ok {
		return nil, o.superseded(attempt, log, progress.PhaseLetterSave, jobID)
	}
	log.Info("generation run succeeded", "letter_id", letter.ID, "elapsed", attempt.Elapsed())
	return &Result{Job: job, Letter: letter}, nil
}

// begin supersedes any live attempt and starts tracking the new one.
func (o *Orchestrator) begin(ctx context.Context, onAttempt func(uint64)) *Attempt {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = StateInitializing
	attempt := o.controller.NewAttempt(ctx)
	if onAttempt != nil {
		onAttempt(attempt.Token)
	}
	attempt.StartDeadline(o.deadline)
	o.tracker.Begin(attempt.Token)

	o.state = StateSavingJob
	o.tracker.Advance(progress.PhaseJobSave, 10, msgSavingJob)
	return attempt
}

// guard runs fn under the state lock if token is still current.
func (o *Orchestrator) guard(token uint64, fn func()) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.controller.IsCurrent(token) {
		return false
	}
	fn()
	return true
}

func (o *Orchestrator) step(token uint64, next State, phase progress.Phase, pct int, msg string) bool {
	return o.guard(token, func() {
		o.state = next
		o.tracker.Advance(phase, pct, msg)
	})
}

// reject handles failures before an attempt exists. A live run is left alone.
func (o *Orchestrator) reject(err error) *ClassifiedError {
	classified := o.classifier.Classify(err, progress.PhaseNone, 0)
	o.mu.Lock()
	if !o.state.Running() {
		o.state = StateFailed
	}
	o.mu.Unlock()
	o.log.Info("generation run rejected", "kind", classified.Kind.String(), "fields", classified.Fields)
	return classified
}

// fail classifies err and, if the attempt is still current, moves to the
// failed (or, for caller cancellation, idle) state.
func (o *Orchestrator) fail(a *Attempt, log *logger.Logger, phase progress.Phase, err error, jobID string) *ClassifiedError {
	classified := o.classifier.Classify(err, phase, a.Elapsed())
	classified.JobID = jobID

	applied := o.guard(a.Token, func() {
		if classified.Silent {
			o.state = StateIdle
		} else {
			o.state = StateFailed
		}
		o.tracker.Reset()
	})
	if !applied {
		classified.Silent = true
	}

	if classified.Silent {
		log.Info("generation run aborted", "phase", phase.String(), "cause", err)
	} else {
		log.Warn("generation run failed",
			"phase", phase.String(),
			"kind", classified.Kind.String(),
			"elapsed", a.Elapsed(),
			"error", err,
		)
	}
	return classified
}

func (o *Orchestrator) superseded(a *Attempt, log *logger.Logger, phase progress.Phase, jobID string) *ClassifiedError {
	return o.fail(a, log, phase, ErrSuperseded, jobID)
}
