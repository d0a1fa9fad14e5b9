// Package pipeline runs the recently-played extract-load chain: fetch from
// Spotify, archive to object storage, retrieve the latest archive, and load
// it into PostgreSQL.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/staging"
)

// Step names, in chain order.
const (
	StepFetch    = "download_spotify_data"
	StepArchive  = "load_data_into_s3"
	StepRetrieve = "download_data_from_s3"
	StepLoad     = "load_data_into_rds"
)

// ErrUnknownStep is returned by RunStep for a name not in the chain.
var ErrUnknownStep = errors.New("unknown step")

// Run identifies one execution of the chain.
type Run struct {
	ID      uuid.UUID
	Now     time.Time
	RunDate string
}

// Step is one named unit of the chain.
type Step struct {
	Name string
	Run  func(ctx context.Context, run *Run) error
}

// StepResult records how a step went.
type StepResult struct {
	Name      string        `json:"name"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Error     string        `json:"error,omitempty"`
}

// RunResult records a whole run.
type RunResult struct {
	ID         uuid.UUID    `json:"id"`
	RunDate    string       `json:"run_date"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Steps      []StepResult `json:"steps"`
	Error      string       `json:"error,omitempty"`

	Err error `json:"-"`
}

// Succeeded reports whether every step completed.
func (r *RunResult) Succeeded() bool {
	return r.Err == nil
}

// Runner executes steps in order and stops at the first failure.
// Runs are not serialized: a manual run may overlap a scheduled one.
type Runner struct {
	steps []Step
	now   func() time.Time
	loc   *time.Location
	log   *zap.SugaredLogger

	mu   sync.Mutex
	last *RunResult
}

// Option configures a Runner.
type Option func(*Runner)

// WithClock sets the time source used for run dates.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithLocation sets the zone run dates are computed in.
func WithLocation(loc *time.Location) Option {
	return func(r *Runner) {
		r.loc = loc
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(r *Runner) {
		r.log = log
	}
}

// NewRunner creates a Runner over steps.
func NewRunner(steps []Step, opts ...Option) *Runner {
	r := &Runner{
		steps: steps,
		now:   time.Now,
		loc:   time.Local,
		log:   zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// StepNames returns the step names in order.
func (r *Runner) StepNames() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name
	}
	return names
}

// Run executes every step in order. The returned error, if any, is also
// stored in the result and names the failed step.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	return r.execute(ctx, r.steps)
}

// RunStep executes the single step called name.
func (r *Runner) RunStep(ctx context.Context, name string) (*RunResult, error) {
	for _, s := range r.steps {
		if s.Name == name {
			return r.execute(ctx, []Step{s})
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownStep, name)
}

// Last returns the most recently finished run.
func (r *Runner) Last() (RunResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.last == nil {
		return RunResult{}, false
	}
	return *r.last, true
}

func (r *Runner) execute(ctx context.Context, steps []Step) (*RunResult, error) {
	now := r.now().In(r.loc)
	run := &Run{
		ID:      uuid.New(),
		Now:     now,
		RunDate: staging.RunDate(now),
	}
	result := &RunResult{
		ID:        run.ID,
		RunDate:   run.RunDate,
		StartedAt: time.Now(),
	}
	log := r.log.With("run_id", run.ID.String(), "run_date", run.RunDate)
	log.Infow("run started", "steps", len(steps))

	for _, s := range steps {
		sr := StepResult{Name: s.Name, StartedAt: time.Now()}
		err := s.Run(ctx, run)
		sr.Duration = time.Since(sr.StartedAt)
		stepDuration.WithLabelValues(s.Name).Observe(sr.Duration.Seconds())

		if err != nil {
			stepRuns.WithLabelValues(s.Name, "failed").Inc()
			sr.Error = err.Error()
			result.Steps = append(result.Steps, sr)
			result.Err = fmt.Errorf("step %s: %w", s.Name, err)
			result.Error = result.Err.Error()
			log.Errorw("step failed", "step", s.Name, "kind", Kind(err), "error", err)
			break
		}

		stepRuns.WithLabelValues(s.Name, "success").Inc()
		result.Steps = append(result.Steps, sr)
		log.Infow("step finished", "step", s.Name, "duration", sr.Duration)
	}

	result.FinishedAt = time.Now()
	r.mu.Lock()
	r.last = result
	r.mu.Unlock()

	if result.Err != nil {
		return result, result.Err
	}
	log.Infow("run finished", "duration", result.FinishedAt.Sub(result.StartedAt))
	return result, nil
}
