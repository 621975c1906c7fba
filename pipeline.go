package main

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Step is one named stage of the checkout. A nil error is success.
type Step interface {
	Name() string
	Execute(ctx context.Context, s *Session) error
}

type stepFunc struct {
	name string
	fn   func(ctx context.Context, s *Session) error
}

func NewStep(name string, fn func(ctx context.Context, s *Session) error) Step {
	return stepFunc{name: name, fn: fn}
}

func (f stepFunc) Name() string { return f.name }

func (f stepFunc) Execute(ctx context.Context, s *Session) error { return f.fn(ctx, s) }

type PipelineState int

const (
	Pending PipelineState = iota
	Running
	Failed
	Succeeded
)

func (st PipelineState) String() string {
	switch st {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Failed:
		return "failed"
	case Succeeded:
		return "succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(st))
	}
}

// PipelineResult is the terminal outcome of a run. An interrupted run failed
// between steps, so FailedStep is empty.
type PipelineResult struct {
	State       PipelineState
	FailedStep  string
	Interrupted bool
	Err         error
	Completed   []string
	Elapsed     time.Duration
}

func (r PipelineResult) Succeeded() bool {
	return r.State == Succeeded
}

// Pipeline runs its steps once, in order, stopping at the first failure.
type Pipeline struct {
	steps   []Step
	pause   time.Duration
	sleep   SleepFunc
	log     *zap.Logger
	state   PipelineState
	current string
}

type PipelineOption func(*Pipeline)

// WithStepPause inserts a pause between consecutive steps.
func WithStepPause(d time.Duration, sleep SleepFunc) PipelineOption {
	return func(p *Pipeline) {
		p.pause = d
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

func NewPipeline(log *zap.Logger, steps []Step, opts ...PipelineOption) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{
		steps: steps,
		sleep: sleepContext,
		log:   log,
		state: Pending,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pipeline) State() PipelineState {
	return p.state
}

// Current names the step being executed, or the one that failed.
func (p *Pipeline) Current() string {
	return p.current
}

// Run executes the pipeline against s. A pipeline cannot be restarted: a
// second call reports ErrPipelineSpent without touching the session.
func (p *Pipeline) Run(ctx context.Context, s *Session) PipelineResult {
	if p.state != Pending {
		return PipelineResult{State: Failed, FailedStep: p.current, Err: ErrPipelineSpent}
	}

	start := time.Now()
	p.state = Running
	result := PipelineResult{}

	for i, step := range p.steps {
		err := ctx.Err()
		if err == nil && i > 0 && p.pause > 0 {
			err = p.sleep(ctx, p.pause)
		}
		if err != nil {
			s.Logger().Warn("pipeline interrupted",
				zap.String("next_step", step.Name()),
				zap.Strings("completed", result.Completed),
				zap.Error(err))
			p.state = Failed
			result.State = Failed
			result.Interrupted = true
			result.Err = err
			result.Elapsed = time.Since(start)
			return result
		}

		p.current = step.Name()
		log := s.Logger().With(zap.String("step", step.Name()), zap.Int("index", i+1), zap.Int("of", len(p.steps)))
		log.Info("step started")
		stepStart := time.Now()
		err = p.execute(ctx, s, step)
		if restoreErr := s.ensureTopLevel(ctx); restoreErr != nil && err == nil {
			err = fmt.Errorf("restoring top-level context: %w", restoreErr)
		}
		log = log.With(zap.Duration("elapsed", time.Since(stepStart)))

		if err != nil {
			log.Error("step failed", zap.String("kind", Kind(err)), zap.Error(err))
			p.state = Failed
			result.State = Failed
			result.FailedStep = step.Name()
			result.Err = err
			result.Elapsed = time.Since(start)
			return result
		}

		log.Info("step finished")
		p.current = ""
		result.Completed = append(result.Completed, step.Name())
	}

	p.state = Succeeded
	result.State = Succeeded
	result.Elapsed = time.Since(start)
	s.Logger().Info("pipeline succeeded", zap.Strings("steps", result.Completed), zap.Duration("elapsed", result.Elapsed))
	return result
}

// execute runs one step, turning a panic into ErrUnexpected so the pipeline
// can still report which stage broke.
func (p *Pipeline) execute(ctx context.Context, s *Session, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger().Error("step panicked", zap.String("step", step.Name()), zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrUnexpected, r)
		}
	}()
	return step.Execute(ctx, s)
}
