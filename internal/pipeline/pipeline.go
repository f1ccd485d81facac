package pipeline

import (
	"context"
	"errors"
	"log/slog"
)

// State is the position of a run in the scrape state machine.
type State int

const (
	// StateInit is the state before any step ran.
	StateInit State = iota
	// StateFetchingRoot fetches the root page.
	StateFetchingRoot
	// StateDiscoveringLinks ranks the root page's links.
	StateDiscoveringLinks
	// StateFetchingChildren fetches the selected sub-pages.
	StateFetchingChildren
	// StateExtracting reduces pages and asks the provider for decision-makers.
	StateExtracting
	// StateAggregating merges the per-page records.
	StateAggregating
	// StateDone is the terminal success state.
	StateDone
	// StateErrored is the terminal state after a fatal error.
	StateErrored
)

var stateNames = [...]string{
	StateInit:             "init",
	StateFetchingRoot:     "fetching_root",
	StateDiscoveringLinks: "discovering_links",
	StateFetchingChildren: "fetching_children",
	StateExtracting:       "extracting",
	StateAggregating:      "aggregating",
	StateDone:             "done",
	StateErrored:          "errored",
}

// String returns the state name.
func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateErrored
}

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, each receiving the run state left by the
// previous ones.
type Step interface {
	// Do executes the step. Per-page problems are recorded in the run and
	// Do returns nil; a non-nil error aborts the run.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string

	// State returns the state the run is in while the step executes.
	State() State
}

// Finalizer is implemented by steps that must run even after ctx is done,
// so that pages completed before the deadline are still reported.
type Finalizer interface {
	Step
	AfterDeadline() bool
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all pipeline steps in sequence.
//
// Context cancellation is checked before each step. Once ctx is done only
// steps implementing Finalizer still run; if the cause was a deadline the
// result is marked as timed out. A step error moves the run to
// StateErrored and is returned as is.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			if errors.Is(err, context.DeadlineExceeded) && !run.Result.TimedOut {
				p.logger.Warn("deadline expired, returning partial results",
					"url", run.Result.RootURL,
					"step", step.Name(),
				)
				run.Result.TimedOut = true
			}
			if f, ok := step.(Finalizer); !ok || !f.AfterDeadline() {
				p.logger.Debug("skipping step", "step", step.Name(), "reason", err)
				continue
			}
		}

		run.State = step.State()
		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", run.Result.RootURL,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", run.Result.RootURL,
				"error", err,
			)
			run.State = StateErrored
			return err
		}

		run.Performed = append(run.Performed, step.Name())
	}

	run.State = StateDone
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
