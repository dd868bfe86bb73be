package pipeline

import (
	"context"
	"log/slog"

	ghlog "github.com/nao1215/ghcrawler/internal/log"
)

// Step is one stage of a pipeline operating on state of type T.
type Step[T any] interface {
	// Do executes the step. A returned error stops the pipeline.
	Do(ctx context.Context, state T) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// StepFunc adapts a function to Step.
type StepFunc[T any] struct {
	StepName string
	Fn       func(ctx context.Context, state T) error
}

// Do implements Step.
func (s StepFunc[T]) Do(ctx context.Context, state T) error {
	return s.Fn(ctx, state)
}

// Name implements Step.
func (s StepFunc[T]) Name() string {
	return s.StepName
}

// Pipeline executes steps in sequence.
type Pipeline[T any] struct {
	steps  []Step[T]
	logger *slog.Logger

	// onStep is called before each step starts.
	onStep func(name string)
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger *slog.Logger
	onStep func(name string)
}

// WithLogger sets the logger used to report step progress.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStepHook registers fn to be called with the name of each step just
// before it runs.
func WithStepHook(fn func(name string)) Option {
	return func(o *options) {
		o.onStep = fn
	}
}

// New creates an empty Pipeline.
func New[T any](opts ...Option) *Pipeline[T] {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = ghlog.Discard()
	}
	return &Pipeline[T]{
		steps:  make([]Step[T], 0),
		logger: o.logger,
		onStep: o.onStep,
	}
}

// AddStep appends a step to the pipeline.
func (p *Pipeline[T]) AddStep(step Step[T]) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline[T]) AddSteps(steps ...Step[T]) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order. It returns the error of the first step
// that fails, or ctx.Err() if ctx is done before a step starts.
func (p *Pipeline[T]) Execute(ctx context.Context, state T) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		if p.onStep != nil {
			p.onStep(step.Name())
		}
		p.logger.Debug("executing step", "step", step.Name())

		if err := step.Do(ctx, state); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"error", err,
			)
			return err
		}

		p.logger.Debug("step completed", "step", step.Name())
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline[T]) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline[T]) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
