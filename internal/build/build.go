// Package build implements the build state machine: per call it decides
// whether a specification's artifact comes from cached code, a persisted
// version, or a fresh generation, and coordinates the opportunistic save
// afterwards. Concurrent builds of one specification instance share a
// single in-flight generation.
package build

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/singleflight"

	"fnforge/internal/artifact"
	"fnforge/internal/assemble"
	"fnforge/internal/extract"
	"fnforge/internal/fn"
	"fnforge/internal/logging"
	"fnforge/internal/model"
	"fnforge/internal/sandbox"
	"fnforge/internal/store"
)

// State tracks where a build stands.
type State int

const (
	StateUnbuilt State = iota
	StateLoading
	StateGenerating
	StateBuilt
	StateError
)

// String returns the stage name used in logs.
func (s State) String() string {
	switch s {
	case StateUnbuilt:
		return "UNBUILT"
	case StateLoading:
		return "LOADING"
	case StateGenerating:
		return "GENERATING"
	case StateBuilt:
		return "BUILT"
	case StateError:
		return "ERROR"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNoStore is returned when persistence is requested but no store was
// configured.
var ErrNoStore = errors.New("no artifact store configured")

// Builder resolves specifications to callable artifacts. Implements
// fn.Runtime.
type Builder struct {
	assembler *assemble.Assembler
	adapters  model.AdapterResolver
	backend   sandbox.Backend
	store     store.Store // nil disables persistence
	sf        singleflight.Group
}

// New wires a builder. st may be nil; persisted loads then miss and
// saves are deferred.
func New(asm *assemble.Assembler, adapters model.AdapterResolver, backend sandbox.Backend, st store.Store) *Builder {
	return &Builder{assembler: asm, adapters: adapters, backend: backend, store: st}
}

// Resolve produces a callable artifact for spec, generating code at most
// once across concurrent calls on the same instance.
func (b *Builder) Resolve(ctx context.Context, spec *fn.Spec) (*artifact.Artifact, error) {
	v, err, _ := b.sf.Do(spec.BuildKey(), func() (interface{}, error) {
		return b.resolve(ctx, spec, true)
	})
	if err != nil {
		return nil, err
	}
	return v.(*artifact.Artifact), nil
}

// resolve walks the state machine for one build. opportunistic controls
// the post-generation save; Persist passes false and writes exactly once
// itself.
func (b *Builder) resolve(ctx context.Context, spec *fn.Spec, opportunistic bool) (*artifact.Artifact, error) {
	opts := spec.Options()
	code := spec.GeneratedCode()
	state := StateUnbuilt

	if b.store != nil && spec.PersistID() != "" && code == "" && !opts.ForceRegenerate {
		state = transition(state, StateLoading)
		art, err := b.loadPersisted(ctx, spec)
		if err == nil {
			transition(state, StateBuilt)
			return art, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			transition(state, StateError)
			return nil, err
		}
		logging.BuildDebug("No persisted artifact for %q, falling through to generation", spec.PersistID())
	}

	if code != "" && !opts.ForceRegenerate {
		art, err := b.fromCache(ctx, spec, code)
		if err != nil {
			transition(state, StateError)
			return nil, err
		}
		transition(state, StateBuilt)
		return art, nil
	}

	state = transition(state, StateGenerating)
	art, err := b.generate(ctx, spec, opportunistic)
	if err != nil {
		transition(state, StateError)
		return nil, err
	}
	transition(state, StateBuilt)
	return art, nil
}

func transition(from, to State) State {
	logging.BuildDebug("Build state %s -> %s", from, to)
	return to
}

// loadPersisted adopts the newest stored version of the specification's
// persist id. The stored code is compiled and loaded before adoption so a
// corrupt record leaves the specification untouched.
func (b *Builder) loadPersisted(ctx context.Context, spec *fn.Spec) (*artifact.Artifact, error) {
	name := spec.PersistID()
	rec, err := b.loadRecord(ctx, name, "")
	if err != nil {
		return nil, err
	}

	entry, err := b.loadEntry(ctx, rec.Code)
	if err != nil {
		return nil, fmt.Errorf("persisted code for %q no longer loads: %w", name, err)
	}

	spec.AdoptStored(rec.Code, rec.Examples, rec.InputSchema, rec.OutputSchema)
	logging.Build("Loaded persisted function %q (%d bytes of code)", name, len(rec.Code))
	return artifact.New(entry, spec.InputSchema(), spec.OutputSchema()), nil
}

// fromCache rebuilds the artifact from already generated code. No model
// call, no store access.
func (b *Builder) fromCache(ctx context.Context, spec *fn.Spec, code string) (*artifact.Artifact, error) {
	entry, err := b.loadEntry(ctx, code)
	if err != nil {
		return nil, err
	}
	logging.BuildDebug("Reused cached code (%d bytes)", len(code))
	return artifact.New(entry, spec.InputSchema(), spec.OutputSchema()), nil
}

// generate runs the full pipeline: assemble, model call, extract, compile,
// sandbox load. Newly generated code is validated before adoption, so a
// failure at any stage leaves the specification's cached code as it was.
func (b *Builder) generate(ctx context.Context, spec *fn.Spec, opportunistic bool) (*artifact.Artifact, error) {
	timer := logging.StartTimer(logging.CategoryBuild, "generate")
	defer timer.Stop()

	req, err := b.assembler.Request(spec, spec.Vars())
	if err != nil {
		return nil, err
	}
	adapter, err := b.adapters.AdapterFor(ctx, req.Model)
	if err != nil {
		return nil, err
	}

	var reply string
	if req.Model.Chat {
		reply, err = adapter.Chat(ctx, req.Messages, req.Opts)
	} else {
		reply, err = adapter.Complete(ctx, req.Prompt, req.Opts)
	}
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}

	code := extract.Code(reply)
	logging.BuildDebug("Extracted %d bytes of code from a %d byte reply", len(code), len(reply))

	entry, err := b.loadEntry(ctx, code)
	if err != nil {
		return nil, err
	}

	spec.SetGeneratedCode(code)
	spec.SetNeedsSave(true)

	if opportunistic && spec.NeedsSave() {
		b.saveOpportunistically(ctx, spec)
	}

	logging.Build("Generated function %q (%d bytes)", entry.Name, len(code))
	return artifact.New(entry, spec.InputSchema(), spec.OutputSchema()), nil
}

// saveOpportunistically tries the post-generation save. A failure is
// reported but never fails the build; needsSave stays set so a later call
// retries.
func (b *Builder) saveOpportunistically(ctx context.Context, spec *fn.Spec) {
	name := spec.PersistID()
	if name == "" {
		return
	}
	if b.store == nil {
		logging.Get(logging.CategoryBuild).Warn("No store configured, deferring save of %q", name)
		return
	}
	if _, err := b.persistRecord(ctx, spec, name); err != nil {
		logging.Get(logging.CategoryBuild).Warn("Deferred save of %q: %v", name, err)
		return
	}
	spec.SetNeedsSave(false)
}

// Persist writes the specification's artifact under name, generating
// first when no code is cached. One version row per call.
func (b *Builder) Persist(ctx context.Context, spec *fn.Spec, name string) (string, error) {
	if b.store == nil {
		return "", ErrNoStore
	}
	if spec.GeneratedCode() == "" {
		_, err, _ := b.sf.Do(spec.BuildKey(), func() (interface{}, error) {
			return b.resolve(ctx, spec, false)
		})
		if err != nil {
			return "", err
		}
	}

	version, err := b.persistRecord(ctx, spec, name)
	if err != nil {
		return "", err
	}
	spec.SetNeedsSave(false)
	return version, nil
}

func (b *Builder) loadEntry(ctx context.Context, code string) (*sandbox.Entry, error) {
	prog, err := b.backend.Compile(code)
	if err != nil {
		return nil, err
	}
	return b.backend.Load(ctx, prog)
}
