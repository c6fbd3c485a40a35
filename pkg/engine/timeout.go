package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// EvalTimeout is the default limit for a single script run.
const EvalTimeout = 5 * time.Second

var (
	ErrSuperseded = errors.New("engine: evaluation superseded by newer request")
	ErrTimeout    = errors.New("engine: evaluation timed out")
)

// evalResult passes a script result through a channel.
type evalResult struct {
	tree   *feature.Tree
	errors []EvalError
	err    error
}

// waitWithTimeout waits for a result from ch, giving up after timeout. A
// result whose generation is no longer current is discarded.
//
// On timeout the goroutine may still be running; the generation check
// discards its result when it eventually completes.
func waitWithTimeout(
	ch <-chan evalResult,
	gen uint64,
	timeout time.Duration,
	mu *sync.Mutex,
	currentGen *uint64,
) (*feature.Tree, []EvalError, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		mu.Lock()
		current := *currentGen
		mu.Unlock()
		if gen != current {
			return nil, nil, ErrSuperseded
		}
		return res.tree, res.errors, res.err

	case <-timer.C:
		return nil, nil, fmt.Errorf("%w after %s", ErrTimeout, timeout)
	}
}
