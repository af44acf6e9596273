// Package pipeline drives several Intcode machines wired output-to-input,
// either as a series or as a feedback loop.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/nf/intcode/intcode"
)

// ErrDeadlock is returned when every unfinished stage is waiting for input
// and no value can reach any of them.
var ErrDeadlock = errors.New("pipeline deadlocked")

// StageError reports the stage that stopped a pipeline.
type StageError struct {
	Stage int
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("stage %d: %v", e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Pipeline is a chain of machines in which the output of stage i is the
// input of stage i+1. With feedback the last stage feeds stage 0.
type Pipeline struct {
	stages   []*intcode.Machine
	feedback bool
	logger   *zap.Logger
}

// Option configures a Pipeline in New.
type Option func(*Pipeline) *Pipeline

// Feedback wires the output of the last stage back to the first.
func Feedback(on bool) Option {
	return func(p *Pipeline) *Pipeline {
		p.feedback = on
		return p
	}
}

// Logger sets the logger used to report stage transitions.
func Logger(l *zap.Logger) Option {
	return func(p *Pipeline) *Pipeline {
		p.logger = l
		return p
	}
}

// New returns a pipeline of len(seeds) machines, each loaded with its own
// copy of image, whose first input is the corresponding seed.
func New(image []int64, seeds []int64, opts ...Option) (*Pipeline, error) {
	if len(seeds) == 0 {
		return nil, errors.New("pipeline needs at least one stage")
	}
	p := &Pipeline{logger: zap.NewNop()}
	for i, s := range seeds {
		m, err := intcode.New(image)
		if err != nil {
			return nil, fmt.Errorf("stage %d: %w", i, err)
		}
		m.PushInput(s)
		p.stages = append(p.stages, m)
	}
	for _, opt := range opts {
		p = opt(p)
	}
	p.logger = p.logger.Named("pipeline")
	return p, nil
}

// Stage returns the machine at stage i.
func (p *Pipeline) Stage(i int) *intcode.Machine { return p.stages[i] }

// Len returns the number of stages.
func (p *Pipeline) Len() int { return len(p.stages) }

// Run pushes input to the first stage and polls every stage in turn until
// the last stage halts. It returns the values emitted by the last stage
// that were not fed back into the pipeline, or, with feedback, every value
// the last stage emitted.
func (p *Pipeline) Run(input ...int64) ([]int64, error) {
	p.stages[0].PushInput(input...)
	var (
		last = len(p.stages) - 1
		out  []int64
	)
	for {
		moved := false
		for i, m := range p.stages {
			if m.Status() == intcode.Halted {
				continue
			}
			s, err := m.Run()
			if err != nil {
				return out, &StageError{Stage: i, Err: err}
			}
			vs := m.Output()
			if len(vs) > 0 {
				moved = true
			}
			p.logger.Debug("stage ran",
				zap.Int("stage", i),
				zap.Stringer("status", s),
				zap.Int64s("output", vs))

			switch {
			case i < last:
				p.stages[i+1].PushInput(vs...)
			case p.feedback:
				out = append(out, vs...)
				if p.stages[0].Status() != intcode.Halted {
					p.stages[0].PushInput(vs...)
				}
			default:
				out = append(out, vs...)
			}
		}
		if p.stages[last].Status() == intcode.Halted {
			return out, nil
		}
		if !moved && p.blocked() {
			return out, ErrDeadlock
		}
	}
}

// blocked reports whether no live stage can make progress.
func (p *Pipeline) blocked() bool {
	for _, m := range p.stages {
		if m.Status() != intcode.Halted && m.Pending() > 0 {
			return false
		}
	}
	return true
}

const (
	// linkBuffer is the capacity of the channel feeding each stage.
	linkBuffer = 64

	// runSlice is the number of instructions a stage executes between
	// checks for cancellation.
	runSlice = 1 << 14
)

// RunConcurrent is like Run but executes each stage on its own goroutine,
// passing values between stages over channels. Each machine is only
// touched by its own goroutine. It returns when the last stage halts, a
// stage faults, every unfinished stage is starved of input (ErrDeadlock),
// or ctx is done.
func (p *Pipeline) RunConcurrent(ctx context.Context, input ...int64) ([]int64, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	n := len(p.stages)
	var (
		links = make([]chan int64, n)
		done  = make([]chan bool, n)
		f     = newFlow(n)
	)
	for i := range links {
		links[i] = make(chan int64, linkBuffer)
		done[i] = make(chan bool)
	}
	p.stages[0].PushInput(input...)

	var (
		wg    sync.WaitGroup
		once  sync.Once
		fault error
		out   []int64
	)
	for i, m := range p.stages {
		next := i + 1
		if next == n {
			next = -1
			if p.feedback {
				next = 0
			}
		}

		emit := func(v int64) error {
			if i == n-1 {
				out = append(out, v)
			}
			if next < 0 || !f.send(next) {
				return nil
			}
			select {
			case links[next] <- v:
			case <-done[next]:
				// The receiver has halted; the value is dropped.
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		}

		wg.Add(1)
		go func(i int, m *intcode.Machine) {
			defer wg.Done()
			defer close(done[i])
			err := f.drive(ctx, i, m, links[i], emit)
			switch {
			case err == nil && i == n-1:
				p.logger.Debug("stage halted", zap.Int("stage", i))
				f.stop(i)
				cancel()
			case err == nil:
				p.logger.Debug("stage halted", zap.Int("stage", i))
				f.exit(i)
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				// Reported below from the caller's context.
				f.stop(i)
			default:
				once.Do(func() {
					fault = &StageError{Stage: i, Err: err}
					cancel()
				})
				f.stop(i)
			}
		}(i, m)
	}
	wg.Wait()

	switch {
	case fault != nil:
		return out, fault
	case p.stages[n-1].Status() == intcode.Halted:
		return out, nil
	}
	return out, ctx.Err()
}

// flow tracks the stages of a concurrent run that are waiting for input
// and the values travelling between stages, so that RunConcurrent can
// tell when no stage can ever be resumed.
type flow struct {
	mu      sync.Mutex
	live    int
	waiting []bool
	queued  []int // values sent to each stage but not yet received
	total   int
	dead    []bool
	over    bool // the run is ending for another reason
	stuck   chan bool
}

func newFlow(n int) *flow {
	return &flow{
		live:    n,
		waiting: make([]bool, n),
		queued:  make([]int, n),
		dead:    make([]bool, n),
		stuck:   make(chan bool),
	}
}

// send records a value about to be sent to stage i. It reports false if
// stage i has finished and the value should be dropped.
func (f *flow) send(i int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dead[i] {
		return false
	}
	f.queued[i]++
	f.total++
	return true
}

// wait marks stage i as blocked on input.
func (f *flow) wait(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting[i] = true
	f.check()
}

// received records that blocked stage i has taken a value.
func (f *flow) received(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.waiting[i] = false
	f.queued[i]--
	f.total--
}

// exit marks stage i as halted. Values still queued for it are lost.
func (f *flow) exit(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remove(i)
	f.check()
}

// stop marks stage i as finished and the whole run as ending, after which
// starvation is no longer reported.
func (f *flow) stop(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remove(i)
	f.over = true
}

func (f *flow) remove(i int) {
	f.dead[i] = true
	f.waiting[i] = false
	f.total -= f.queued[i]
	f.queued[i] = 0
	f.live--
}

// check closes stuck when every live stage is waiting and nothing is on
// its way to any of them. f.mu must be held.
func (f *flow) check() {
	if f.over || f.live == 0 || f.total > 0 {
		return
	}
	for i, w := range f.waiting {
		if !w && !f.dead[i] {
			return
		}
	}
	select {
	case <-f.stuck:
	default:
		close(f.stuck)
	}
}

// drive runs stage i's machine m until it halts, feeding it from in
// whenever it blocks.
func (f *flow) drive(ctx context.Context, i int, m *intcode.Machine, in <-chan int64, emit func(int64) error) error {
	for {
		s, err := run(ctx, m)
		if err != nil {
			return err
		}
		for _, v := range m.Output() {
			if err := emit(v); err != nil {
				return err
			}
		}
		if s == intcode.Halted {
			return nil
		}
		f.wait(i)
		select {
		case v := <-in:
			f.received(i)
			m.PushInput(v)
		case <-f.stuck:
			return ErrDeadlock
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// run is like m.Run but gives up once ctx is done.
func run(ctx context.Context, m *intcode.Machine) (intcode.Status, error) {
	for {
		for i := 0; i < runSlice; i++ {
			s, err := m.Step()
			if err != nil || s != intcode.Running {
				return s, err
			}
		}
		if err := ctx.Err(); err != nil {
			return m.Status(), err
		}
	}
}
