package sandbox

import (
	"context"
	"fmt"
	"reflect"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"fnforge/internal/logging"
)

// Engine interprets programs with yaegi. Interpreting instead of shelling
// out to a compiler avoids toolchain availability, dependency resolution,
// and binary compatibility as failure modes; the import policy plus a fresh
// interpreter per load give the isolation.
type Engine struct {
	policy Policy
}

// NewEngine creates an engine with the given policy. A policy without an
// import whitelist gets the default one.
func NewEngine(policy Policy) *Engine {
	if policy.AllowedImports == nil {
		policy.AllowedImports = DefaultPolicy().AllowedImports
	}
	if policy.ExecTimeout == 0 {
		policy.ExecTimeout = DefaultPolicy().ExecTimeout
	}
	return &Engine{policy: policy}
}

// Load evaluates the program in a brand new interpreter and resolves its
// exported bindings. Nothing is shared between loads, so one program's
// globals can never bleed into another run.
func (e *Engine) Load(ctx context.Context, p *Program) (*Entry, error) {
	timer := logging.StartTimer(logging.CategorySandbox, "Load")
	defer timer.Stop()

	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib symbols: %w", err)
	}

	if _, err := i.EvalWithContext(ctx, p.Wrapped); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("program load canceled: %w", ctx.Err())
		}
		// Type errors surface here rather than at parse time; yaegi
		// reports them one at a time.
		return nil, &CompileError{Diagnostics: []Diagnostic{{Message: err.Error()}}}
	}

	fns := make(map[string]reflect.Value, len(p.Exports))
	for _, name := range p.Exports {
		v, err := i.Eval("main." + name)
		if err != nil || !v.IsValid() || v.Kind() != reflect.Func {
			continue
		}
		fns[name] = v
	}

	if _, ok := fns[p.EntryName]; !ok {
		return nil, &NoEntryPointError{
			Reason: fmt.Sprintf("binding %q is undefined or not a function", p.EntryName),
		}
	}

	logging.SandboxDebug("loaded program: entry=%s bindings=%d", p.EntryName, len(fns))
	return &Entry{
		Name:        p.EntryName,
		fns:         fns,
		execTimeout: e.policy.ExecTimeout,
	}, nil
}
