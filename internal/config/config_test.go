package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"IOSCAD_KERNEL", "IOSCAD_CIRCLE_SEGMENTS", "IOSCAD_FILLET_SEGMENTS",
		"IOSCAD_SHARP_ANGLE", "IOSCAD_SOLVER_MAX_ITER", "IOSCAD_SOLVER_TOLERANCE",
		"IOSCAD_EVAL_TIMEOUT", "IOSCAD_UNDO_DEPTH", "IOSCAD_LOG_LEVEL", "IOSCAD_LOG_JSON",
	} {
		t.Setenv(k, "")
	}

	cfg := Load()
	if cfg.Kernel.Backend != "bsp" {
		t.Errorf("Kernel.Backend = %q, want %q", cfg.Kernel.Backend, "bsp")
	}
	if cfg.Eval.CircleSegments != 32 {
		t.Errorf("Eval.CircleSegments = %d, want 32", cfg.Eval.CircleSegments)
	}
	if cfg.Eval.SolverMaxIter != 100 {
		t.Errorf("Eval.SolverMaxIter = %d, want 100", cfg.Eval.SolverMaxIter)
	}
	if cfg.Eval.Timeout != 5*time.Second {
		t.Errorf("Eval.Timeout = %v, want 5s", cfg.Eval.Timeout)
	}
	if cfg.Undo.Depth != 50 {
		t.Errorf("Undo.Depth = %d, want 50", cfg.Undo.Depth)
	}
	if cfg.Log.Level != "info" || cfg.Log.JSON {
		t.Errorf("Log = %+v, want info/text", cfg.Log)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("IOSCAD_KERNEL", "Manifold")
	t.Setenv("IOSCAD_CIRCLE_SEGMENTS", "64")
	t.Setenv("IOSCAD_SHARP_ANGLE", "45")
	t.Setenv("IOSCAD_EVAL_TIMEOUT", "250ms")
	t.Setenv("IOSCAD_UNDO_DEPTH", "7")
	t.Setenv("IOSCAD_LOG_JSON", "true")

	cfg := Load()
	if cfg.Kernel.Backend != "manifold" {
		t.Errorf("Kernel.Backend = %q, want manifold", cfg.Kernel.Backend)
	}
	if cfg.Eval.CircleSegments != 64 {
		t.Errorf("CircleSegments = %d, want 64", cfg.Eval.CircleSegments)
	}
	if cfg.Eval.Timeout != 250*time.Millisecond {
		t.Errorf("Timeout = %v, want 250ms", cfg.Eval.Timeout)
	}
	if cfg.Undo.Depth != 7 {
		t.Errorf("Undo.Depth = %d, want 7", cfg.Undo.Depth)
	}
	if !cfg.Log.JSON {
		t.Error("Log.JSON = false, want true")
	}

	opts := cfg.EvalOptions()
	if opts.CircleSegments != 64 {
		t.Errorf("EvalOptions().CircleSegments = %d, want 64", opts.CircleSegments)
	}
	if opts.SharpAngle != 45 {
		t.Errorf("EvalOptions().SharpAngle = %v, want 45", opts.SharpAngle)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("IOSCAD_CIRCLE_SEGMENTS", "many")
	t.Setenv("IOSCAD_SOLVER_TOLERANCE", "tiny")
	t.Setenv("IOSCAD_EVAL_TIMEOUT", "soon")

	cfg := Load()
	if cfg.Eval.CircleSegments != 32 {
		t.Errorf("CircleSegments = %d, want fallback 32", cfg.Eval.CircleSegments)
	}
	if cfg.Eval.SolverTolerance != 1e-10 {
		t.Errorf("SolverTolerance = %v, want fallback 1e-10", cfg.Eval.SolverTolerance)
	}
	if cfg.Eval.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want fallback 5s", cfg.Eval.Timeout)
	}
}
