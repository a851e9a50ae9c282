// Package errors implements Seni's error taxonomy: Parse, Compile, Runtime
// and Serialisation errors, each carrying source location and (for runtime
// errors) a call-stack snapshot, adapted from the teacher's SentraError.
package errors

import (
	"fmt"
	"strings"

	pkgerrors "github.com/pkg/errors"
)

// Kind is the top-level error taxonomy from spec.md §7.
type Kind string

const (
	Parse         Kind = "ParseError"
	Compile       Kind = "CompileError"
	Runtime       Kind = "RuntimeError"
	Serialisation Kind = "SerialisationError"
)

// Location pinpoints an error's origin in source or in a wire stream.
type Location struct {
	File   string
	Line   int
	Column int
}

// Frame is a single call-stack entry attached to a fatal runtime error.
type Frame struct {
	Function string
	IP       int
}

// SeniError is the error type returned by every fallible core operation.
type SeniError struct {
	Kind     Kind
	Message  string
	Location Location
	Stack    []Frame
	Source   string
}

func New(kind Kind, message string) *SeniError {
	return &SeniError{Kind: kind, Message: message}
}

func Newf(kind Kind, format string, args ...interface{}) *SeniError {
	return New(kind, fmt.Sprintf(format, args...))
}

func (e *SeniError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s: %s", e.Kind, e.Message))
	if e.Location.File != "" {
		sb.WriteString(fmt.Sprintf(" (at %s:%d:%d)", e.Location.File, e.Location.Line, e.Location.Column))
	}
	if e.Source != "" {
		sb.WriteString(fmt.Sprintf("\n  %d | %s", e.Location.Line, e.Source))
	}
	for _, f := range e.Stack {
		sb.WriteString(fmt.Sprintf("\n  at %s (ip=%d)", f.Function, f.IP))
	}
	return sb.String()
}

func (e *SeniError) WithLocation(file string, line, col int) *SeniError {
	e.Location = Location{File: file, Line: line, Column: col}
	return e
}

func (e *SeniError) WithSource(src string) *SeniError {
	e.Source = src
	return e
}

func (e *SeniError) WithFrame(function string, ip int) *SeniError {
	e.Stack = append(e.Stack, Frame{Function: function, IP: ip})
	return e
}

// Wrap attaches a stack-carrying pkg/errors context to err, used at host
// API boundaries (store, live-preview server, CLI) where the underlying
// failure did not originate as a *SeniError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return pkgerrors.Wrap(err, message)
}

// Cause unwinds a Wrap chain back to its root cause.
func Cause(err error) error {
	return pkgerrors.Cause(err)
}
