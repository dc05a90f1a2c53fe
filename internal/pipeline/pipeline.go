// Package pipeline glues the compiler and VM together for a single
// source string, printing diagnostics to a caller-supplied writer and
// classifying failures as compile-time or runtime.
package pipeline

import (
	"fmt"
	"io"

	"vela-lang/internal/chunk"
	"vela-lang/internal/compiler"
	"vela-lang/internal/vm"
)

// Kind distinguishes why a pipeline run failed.
type Kind int

const (
	KindCompile Kind = iota
	KindRuntime
)

// Error wraps either a *compiler.Error or a *vm.RuntimeError with which
// stage produced it, so callers can dispatch with errors.As without
// caring about the pipeline's internal wiring.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Compile compiles source, printing any compile error to diag.
func Compile(source string, diag io.Writer) (*chunk.Chunk, error) {
	ch, err := compiler.Compile(source)
	if err != nil {
		fmt.Fprintln(diag, err.Error())
		return nil, &Error{Kind: KindCompile, Err: err}
	}
	return ch, nil
}

// Execute runs a compiled chunk, writing Print output and any runtime
// error to w.
func Execute(ch *chunk.Chunk, w io.Writer) error {
	machine := vm.New(ch, w)
	if err := machine.Interpret(); err != nil {
		fmt.Fprintln(w, err.Error())
		return &Error{Kind: KindRuntime, Err: err}
	}
	return nil
}

// Run compiles and executes source in one step. Print output and
// diagnostics both go to w.
func Run(source string, w io.Writer) error {
	ch, err := Compile(source, w)
	if err != nil {
		return err
	}
	return Execute(ch, w)
}
