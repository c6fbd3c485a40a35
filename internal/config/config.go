// Package config loads kernel and CLI settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/eval"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/sketch"
)

// Config holds all settings.
type Config struct {
	Kernel KernelConfig
	Eval   EvalConfig
	Undo   UndoConfig
	Log    LogConfig
}

// KernelConfig selects the boolean backend.
type KernelConfig struct {
	Backend string // "bsp" or "manifold"
}

// EvalConfig holds evaluator tuning.
type EvalConfig struct {
	CircleSegments  int
	FilletSegments  int
	SharpAngle      float64 // degrees
	SolverMaxIter   int
	SolverTolerance float64
	Timeout         time.Duration
}

// UndoConfig bounds the snapshot stack.
type UndoConfig struct {
	Depth int
}

// LogConfig controls slog output.
type LogConfig struct {
	Level string
	JSON  bool
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	return Config{
		Kernel: KernelConfig{
			Backend: strings.ToLower(getenv("IOSCAD_KERNEL", "bsp")),
		},
		Eval: EvalConfig{
			CircleSegments:  getenvInt("IOSCAD_CIRCLE_SEGMENTS", eval.DefaultOptions().CircleSegments),
			FilletSegments:  getenvInt("IOSCAD_FILLET_SEGMENTS", eval.DefaultOptions().FilletSegments),
			SharpAngle:      getenvFloat("IOSCAD_SHARP_ANGLE", eval.DefaultOptions().SharpAngle),
			SolverMaxIter:   getenvInt("IOSCAD_SOLVER_MAX_ITER", sketch.DefaultSolverOptions().MaxIterations),
			SolverTolerance: getenvFloat("IOSCAD_SOLVER_TOLERANCE", sketch.DefaultSolverOptions().Tolerance),
			Timeout:         getenvDuration("IOSCAD_EVAL_TIMEOUT", eval.DefaultTimeout),
		},
		Undo: UndoConfig{
			Depth: getenvInt("IOSCAD_UNDO_DEPTH", 50),
		},
		Log: LogConfig{
			Level: getenv("IOSCAD_LOG_LEVEL", "info"),
			JSON:  getenvBool("IOSCAD_LOG_JSON", false),
		},
	}
}

// EvalOptions maps the evaluator settings onto eval.Options.
func (c Config) EvalOptions() eval.Options {
	opts := eval.DefaultOptions()
	if c.Eval.CircleSegments >= 3 {
		opts.CircleSegments = c.Eval.CircleSegments
	}
	if c.Eval.FilletSegments >= 1 {
		opts.FilletSegments = c.Eval.FilletSegments
	}
	if c.Eval.SharpAngle > 0 && c.Eval.SharpAngle < 180 {
		opts.SharpAngle = c.Eval.SharpAngle
	}
	if c.Eval.SolverMaxIter > 0 {
		opts.Solver.MaxIterations = c.Eval.SolverMaxIter
	}
	if c.Eval.SolverTolerance > 0 {
		opts.Solver.Tolerance = c.Eval.SolverTolerance
	}
	return opts
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
