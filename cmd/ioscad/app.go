package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/config"
	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/engine"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/eval"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel/bsp"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/kernel/manifold"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/undo"
)

// colorPalette is a default palette used to assign distinct colors to parts.
var colorPalette = []string{
	"#4A90D9", "#E67E22", "#2ECC71", "#9B59B6",
	"#E74C3C", "#1ABC9C", "#F39C12", "#3498DB",
}

// solidPart names the accumulated solid in the mesh list.
const solidPart = "solid"

// App owns the current feature tree and its history, and turns scripts
// and documents into meshes.
type App struct {
	engine  *engine.Engine
	sched   *eval.Scheduler
	history *undo.Stack

	mu   sync.Mutex
	tree feature.Tree
}

// MeshData is the JSON-serializable mesh format written by the CLI.
type MeshData struct {
	Vertices []float32 `json:"vertices"`
	Normals  []float32 `json:"normals"`
	Indices  []uint32  `json:"indices"`
	PartName string    `json:"partName"`
	Color    string    `json:"color"`
}

// EvalErrorData is a JSON-serializable script or feature error.
type EvalErrorData struct {
	Line    int    `json:"line,omitempty"`
	Col     int    `json:"col,omitempty"`
	Feature string `json:"feature,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// EvalResult is the full result of one evaluation. Meshes starts with the
// accumulated solid, followed by one entry per assembly member.
type EvalResult struct {
	Meshes   []MeshData      `json:"meshes"`
	Errors   []EvalErrorData `json:"errors"`
	Warnings []EvalErrorData `json:"warnings"`

	solid *kernel.Mesh
	tree  feature.Tree
}

func newResult() EvalResult {
	return EvalResult{
		Meshes:   []MeshData{},
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
		solid:    &kernel.Mesh{},
	}
}

// NewApp creates an App from cfg, selecting the boolean backend it names.
func NewApp(cfg config.Config) (*App, error) {
	k, err := newKernel(cfg.Kernel.Backend)
	if err != nil {
		return nil, err
	}
	opts := cfg.EvalOptions()
	opts.Kernel = k
	return &App{
		engine:  engine.NewEngine(cfg.Eval.Timeout),
		sched:   eval.NewScheduler(opts, cfg.Eval.Timeout),
		history: undo.New(cfg.Undo.Depth),
	}, nil
}

func newKernel(backend string) (kernel.Kernel, error) {
	switch backend {
	case "", "bsp":
		return bsp.New(), nil
	case "manifold":
		return manifold.New()
	}
	return nil, fmt.Errorf("unknown kernel backend %q", backend)
}

// Tree returns a copy of the current feature tree.
func (a *App) Tree() feature.Tree {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tree.Clone()
}

// Evaluate runs Lisp source and, when the script succeeds, makes the tree
// it built current and evaluates it.
func (a *App) Evaluate(ctx context.Context, source string) EvalResult {
	result := newResult()

	t, evalErrs, err := a.engine.Evaluate(source)
	if err != nil {
		logging.Logger().Error("script failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	if len(evalErrs) > 0 {
		for _, e := range evalErrs {
			result.Errors = append(result.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return result
	}

	a.commit(*t)
	return a.render(ctx, *t, result)
}

// EvaluateDocument decodes a feature document, makes it current and
// evaluates it.
func (a *App) EvaluateDocument(ctx context.Context, doc []byte) EvalResult {
	result := newResult()
	t, err := feature.Decode(doc)
	if err != nil {
		result.Errors = append(result.Errors, EvalErrorData{Message: err.Error()})
		return result
	}
	a.commit(t)
	return a.render(ctx, t, result)
}

// Undo restores the previous tree and evaluates it.
func (a *App) Undo(ctx context.Context) (EvalResult, error) {
	return a.step(ctx, a.history.Undo)
}

// Redo reapplies the last undone tree and evaluates it.
func (a *App) Redo(ctx context.Context) (EvalResult, error) {
	return a.step(ctx, a.history.Redo)
}

func (a *App) step(ctx context.Context, fn func(feature.Tree) (feature.Tree, error)) (EvalResult, error) {
	a.mu.Lock()
	t, err := fn(a.tree)
	if err != nil {
		a.mu.Unlock()
		return newResult(), err
	}
	a.tree = t
	a.mu.Unlock()
	return a.render(ctx, t, newResult()), nil
}

// commit records the current tree for undo and replaces it with t.
func (a *App) commit(t feature.Tree) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Push(a.tree)
	a.tree = t.Clone()
}

// render evaluates t through the scheduler and converts the output.
func (a *App) render(ctx context.Context, t feature.Tree, result EvalResult) EvalResult {
	result.tree = t

	for _, v := range feature.Validate(t) {
		if v.Severity == feature.SeverityWarning {
			result.Warnings = append(result.Warnings, EvalErrorData{
				Feature: v.Feature.String(),
				Kind:    v.Code.String(),
				Message: v.Message,
			})
		}
	}

	res, err := a.sched.Submit(ctx, t)
	if err != nil {
		logging.Logger().Error("evaluation failed", "err", err)
		result.Errors = append(result.Errors, EvalErrorData{Message: "evaluation failed: " + err.Error()})
		return result
	}
	result.Errors = append(result.Errors, featureErrors(res.Errors)...)
	result.Warnings = append(result.Warnings, featureErrors(res.Warnings)...)

	result.solid = res.Mesh
	if !res.Mesh.IsEmpty() {
		result.Meshes = append(result.Meshes, meshData(res.Mesh, solidPart, colorPalette[0]))
	}
	for i, part := range parts(t, res) {
		color := colorPalette[(i+1)%len(colorPalette)]
		result.Meshes = append(result.Meshes, meshData(part.mesh, part.name, color))
	}
	return result
}

type part struct {
	name string
	mesh *kernel.Mesh
}

// parts lists the evaluated members of every active assembly in tree
// order. A member shared by two assemblies appears once per assembly.
func parts(t feature.Tree, res *eval.Result) []part {
	var out []part
	for _, f := range t.Active() {
		members, ok := res.Assemblies[f.ID]
		if !ok {
			continue
		}
		out = append(out, lo.FilterMap(members, func(id feature.ID, _ int) (part, bool) {
			m, ok := res.Meshes[id]
			if !ok || m.IsEmpty() {
				return part{}, false
			}
			return part{name: displayName(t, id), mesh: m}, true
		})...)
	}
	return out
}

func displayName(t feature.Tree, id feature.ID) string {
	if f, ok := t.Lookup(id); ok && f.Name != "" {
		return f.Name
	}
	return id.String()
}

func meshData(m *kernel.Mesh, name, color string) MeshData {
	v, n, idx := m.Flat()
	return MeshData{Vertices: v, Normals: n, Indices: idx, PartName: name, Color: color}
}

func featureErrors(errs []eval.FeatureError) []EvalErrorData {
	return lo.Map(errs, func(e eval.FeatureError, _ int) EvalErrorData {
		return EvalErrorData{Feature: e.Feature.String(), Kind: e.Kind.String(), Message: e.Message}
	})
}
