// Package engine runs modeling scripts written in a small Lisp and turns
// them into feature trees. It wraps zygomys in a sandboxed environment;
// scripts only declare features, evaluation of the geometry is left to
// package eval.
package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	zygo "github.com/glycerine/zygomys/zygo"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

// EvalError is a non-fatal script error such as a parse error or a failing
// builtin call.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning is a structural finding on the tree a script produced.
type EvalWarning struct {
	Message string
	Feature feature.ID
}

// EvalResult bundles the full output of a script run.
type EvalResult struct {
	Tree     *feature.Tree
	Errors   []EvalError
	Warnings []EvalWarning
}

// Engine runs scripts. It is safe for concurrent use; every run gets a
// fresh sandbox, and only the most recent run's result is delivered.
type Engine struct {
	timeout time.Duration

	mu         sync.Mutex
	generation uint64
}

// NewEngine returns an engine that gives up on a script after timeout. A
// non-positive timeout uses EvalTimeout.
func NewEngine(timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = EvalTimeout
	}
	return &Engine{timeout: timeout}
}

// Evaluate runs source and returns the feature tree it declares.
//
// Return semantics:
//   - On success: returns tree + nil errors + nil error
//   - On parse/eval failure: returns nil tree + eval errors + nil error
//   - On fatal failure (timeout, panic, superseded): returns nil + nil + error
func (e *Engine) Evaluate(source string) (*feature.Tree, []EvalError, error) {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ch := make(chan evalResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()
		t, evalErrs := evaluate(source)
		ch <- evalResult{tree: t, errors: evalErrs}
	}()

	return waitWithTimeout(ch, gen, e.timeout, &e.mu, &e.generation)
}

// Run is Evaluate plus the structural findings of the resulting tree.
func (e *Engine) Run(source string) (EvalResult, error) {
	t, evalErrs, err := e.Evaluate(source)
	if err != nil {
		return EvalResult{}, err
	}
	res := EvalResult{Tree: t, Errors: evalErrs}
	if t == nil {
		return res, nil
	}
	for _, v := range feature.Validate(*t) {
		res.Warnings = append(res.Warnings, EvalWarning{Message: v.Error(), Feature: v.Feature})
	}
	return res, nil
}

// evaluate runs source in a fresh sandbox.
func evaluate(source string) (*feature.Tree, []EvalError) {
	b := newBuilder()
	if strings.TrimSpace(source) == "" {
		return &b.tree, nil
	}

	// The sandbox has no filesystem or system access.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	registerBuiltins(env, b)

	start := time.Now()
	if err := env.LoadString(preprocessSource(source)); err != nil {
		return nil, parseZygomysError(err)
	}
	if _, err := env.Run(); err != nil {
		return nil, parseZygomysError(err)
	}
	logging.Logger().Debug("script evaluated", "features", b.tree.Len(), "elapsed", time.Since(start))
	return &b.tree, nil
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?i)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?i)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalErrors, extracting
// the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
