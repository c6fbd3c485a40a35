// Command ioscad evaluates feature documents and modeling scripts and
// writes the resulting geometry.
//
//	ioscad eval    [-format json|obj] [-o out] doc.json
//	ioscad script  [-format json|obj|tree] [-o out] model.lisp
//	ioscad history model.obj
//
// A path of "-" reads standard input. Settings come from IOSCAD_*
// environment variables.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/config"
	"github.com/lotzabananas/Open-IOSCAD-sub000/internal/logging"
	"github.com/lotzabananas/Open-IOSCAD-sub000/pkg/feature"
)

const usage = `usage:
  ioscad eval    [-format json|obj] [-o out] doc.json
  ioscad script  [-format json|obj|tree] [-o out] model.lisp
  ioscad history model.obj
`

// errFailed marks a run that produced output but reported errors.
var errFailed = errors.New("evaluation reported errors")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))

	if err := run(ctx, cfg, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		if !errors.Is(err, errFailed) {
			fmt.Fprintf(os.Stderr, "ioscad: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet(cmd, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "json", "output format")
	out := fs.String("o", "-", "output path")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%s: %w", cmd, err)
	}
	if fs.NArg() != 1 {
		return errors.New(usage)
	}
	input, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	switch cmd {
	case "history":
		t, err := feature.ExtractHistory(input)
		if err != nil {
			return err
		}
		doc, err := feature.Encode(t)
		if err != nil {
			return err
		}
		return writeOutput(*out, stdout, func(w io.Writer) error {
			_, err := fmt.Fprintf(w, "%s\n", doc)
			return err
		})
	case "eval", "script":
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}

	app, err := NewApp(cfg)
	if err != nil {
		return err
	}
	var result EvalResult
	if cmd == "eval" {
		result = app.EvaluateDocument(ctx, input)
	} else {
		result = app.Evaluate(ctx, string(input))
	}

	err = writeOutput(*out, stdout, func(w io.Writer) error {
		return emit(w, *format, result)
	})
	if err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return errFailed
	}
	return nil
}

// emit writes result in the requested format.
func emit(w io.Writer, format string, result EvalResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case "obj":
		return writeOBJ(w, result.solid, result.tree)
	case "tree":
		doc, err := feature.Encode(result.tree)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "%s\n", doc)
		return err
	}
	return fmt.Errorf("unknown format %q", format)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func writeOutput(path string, stdout io.Writer, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
