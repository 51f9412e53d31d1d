// Command godisc discretises a model file and prints a report of the
// discretised model.
//
// Usage:
//
//	godisc [options] MODEL.hcl
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/njchilds90/godisc/internal/config"
	"github.com/njchilds90/godisc/internal/ctxlog"
	"github.com/njchilds90/godisc/internal/hclmodel"
	"github.com/njchilds90/godisc/internal/report"
)

// exitError carries the process exit code of a failed run.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	if err := run(context.Background(), os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "godisc:", err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

func run(ctx context.Context, stdout, stderr io.Writer, args []string) error {
	fs := flag.NewFlagSet("godisc", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, `
godisc - discretise a model file and report the state vector layout.

Usage:
  godisc [options] MODEL.hcl

Options:
`)
		fs.PrintDefaults()
	}

	configPath := fs.String("config", "", "Path to a YAML configuration file.")
	logLevel := fs.String("log-level", "", "Override the log level. Options: 'debug', 'info', 'warn', 'error'.")
	logFormat := fs.String("log-format", "", "Override the log format. Options: 'text' or 'json'.")
	format := fs.String("format", "", "Override the report format. Options: 'yaml' or 'json'.")
	copyModel := fs.Bool("copy", false, "Discretise a copy of the model instead of the model itself.")
	noCheck := fs.Bool("no-check", false, "Skip the shape and bounds checks of the discretised model.")
	keepIndependent := fs.Bool("keep-independent", false, "Keep rate equations that nothing depends on in the state vector.")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return &exitError{code: 2, err: err}
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return &exitError{code: 2, err: errors.New("expected exactly one model file")}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	if *format != "" {
		cfg.Output.Format = *format
	}
	if err := config.Validate(cfg); err != nil {
		return &exitError{code: 2, err: err}
	}

	opts := cfg.Discretisation.Options()
	if *copyModel {
		opts.Inplace = false
	}
	if *noCheck {
		opts.CheckModel = false
	}
	if *keepIndependent {
		opts.RemoveIndependentVariables = false
	}

	ctx = ctxlog.WithLogger(ctx, cfg.Log.NewLogger(stderr))
	logger := ctxlog.FromContext(ctx)

	spec, err := hclmodel.Load(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	disc, err := spec.Discretisation()
	if err != nil {
		return err
	}
	m, err := disc.ProcessModel(ctx, spec.Model, opts)
	if err != nil {
		return fmt.Errorf("discretise %s: %w", spec.Model.Name, err)
	}
	logger.Debug("Model discretised.", "model", m.Name, "states", m.Discretised().Size())

	summary, err := report.Build(m)
	if err != nil {
		return err
	}
	return report.Encode(stdout, summary, cfg.Output.Format)
}
