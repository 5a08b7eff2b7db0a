// Package sandbox turns generated source text into an executable program and
// runs it inside an isolated interpreter. Compilation reports every
// diagnostic it finds, and each load gets a fresh interpreter so no state
// leaks between executions.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Backend abstracts the compile/load pipeline so the build layer does not
// depend on a concrete interpreter.
type Backend interface {
	// Compile validates source text and produces a loadable program or a
	// *CompileError carrying all diagnostics.
	Compile(source string) (*Program, error)
	// Load executes the program in a fresh isolated context and returns its
	// entry table.
	Load(ctx context.Context, p *Program) (*Entry, error)
}

// Program is a validated, eval-ready artifact. Source keeps the original
// extracted text (what gets persisted), Wrapped the normalized form handed
// to the interpreter.
type Program struct {
	Source    string
	Wrapped   string
	EntryName string
	Exports   []string
}

// Diagnostic is a single compile message with its source position.
type Diagnostic struct {
	Pos     string `json:"pos"`
	Message string `json:"message"`
}

// CompileError carries the full list of diagnostics from a failed compile,
// never just the first.
type CompileError struct {
	Diagnostics []Diagnostic
}

func (e *CompileError) Error() string {
	if len(e.Diagnostics) == 0 {
		return "compile failed"
	}
	parts := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		if d.Pos == "" {
			parts[i] = d.Message
		} else {
			parts[i] = fmt.Sprintf("%s: %s", d.Pos, d.Message)
		}
	}
	return fmt.Sprintf("compile failed with %d diagnostic(s): %s",
		len(e.Diagnostics), strings.Join(parts, "; "))
}

// NoEntryPointError reports that no invocable declaration could be located
// or bound.
type NoEntryPointError struct {
	Reason string
}

func (e *NoEntryPointError) Error() string {
	return "no entry point: " + e.Reason
}

// Policy controls what generated code may import and how long an execution
// may run.
type Policy struct {
	AllowedImports map[string]bool
	ExecTimeout    time.Duration
}

// DefaultPolicy allows a safe stdlib subset and a short execution budget.
// Filesystem, network, process, and unsafe packages stay out.
func DefaultPolicy() Policy {
	return Policy{
		AllowedImports: map[string]bool{
			"strings":         true,
			"strconv":         true,
			"fmt":             true,
			"errors":          true,
			"math":            true,
			"math/rand":       true,
			"regexp":          true,
			"encoding/json":   true,
			"encoding/base64": true,
			"unicode":         true,
			"unicode/utf8":    true,
			"time":            true,
			"sort":            true,
			"bytes":           true,
			"context":         true,
		},
		ExecTimeout: 5 * time.Second,
	}
}
