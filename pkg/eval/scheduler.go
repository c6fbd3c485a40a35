package eval

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// DefaultTimeout bounds how long Submit waits for one evaluation.
const DefaultTimeout = 5 * time.Second

var (
	ErrSuperseded = errors.New("eval: superseded by a newer request")
	ErrTimeout    = errors.New("eval: timed out")
)

// evalResult passes an evaluation result through a channel.
type evalResult struct {
	res *Result
	err error
}

// Scheduler runs evaluations off the caller's goroutine. Only the most
// recent submission's result is delivered; earlier callers receive
// ErrSuperseded. It is safe for concurrent use.
type Scheduler struct {
	opts    Options
	timeout time.Duration
	run     func(feature.Tree, Options) *Result

	mu         sync.Mutex
	generation uint64
}

// NewScheduler returns a scheduler evaluating with opts. A non-positive
// timeout uses DefaultTimeout.
func NewScheduler(opts Options, timeout time.Duration) *Scheduler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Scheduler{opts: opts, timeout: timeout, run: Run}
}

// Submit evaluates a snapshot of t and waits for the result.
//
//   - a newer Submit started while waiting: ErrSuperseded
//   - the timeout elapsed: ErrTimeout
//   - ctx ended: ctx.Err()
//
// The computation itself is never interrupted; a late result is discarded.
func (s *Scheduler) Submit(ctx context.Context, t feature.Tree) (*Result, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	snapshot := t.Clone()
	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		ch <- evalResult{res: s.run(snapshot, s.opts)}
	}()
	return s.wait(ctx, ch, gen)
}

// wait blocks for ch, discarding the result if a newer request started.
func (s *Scheduler) wait(ctx context.Context, ch <-chan evalResult, gen uint64) (*Result, error) {
	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if !s.current(gen) {
			return nil, ErrSuperseded
		}
		return res.res, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%w after %s", ErrTimeout, s.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scheduler) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.generation
}
