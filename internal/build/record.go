package build

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fnforge/internal/fn"
	"fnforge/internal/logging"
	"fnforge/internal/model"
	"fnforge/internal/schema"
	"fnforge/internal/store"
	"fnforge/internal/template"
)

// KindFunction is the store kind under which function records live.
const KindFunction = "function"

// Record is the persisted form of a built specification. Written once per
// save; the store assigns the version id.
type Record struct {
	Template     string         `json:"template"`
	Examples     []fn.Example   `json:"examples,omitempty"`
	Model        string         `json:"model,omitempty"`
	Code         string         `json:"code"`
	InputSchema  *schema.Schema `json:"input_schema,omitempty"`
	OutputSchema *schema.Schema `json:"output_schema,omitempty"`
	Meta         Meta           `json:"meta"`
}

// Meta carries record bookkeeping.
type Meta struct {
	SavedAt time.Time `json:"saved_at"`
}

func recordFromSpec(spec *fn.Spec) Record {
	rec := Record{
		Examples:     spec.Examples(),
		Model:        modelRefString(spec.ModelRef()),
		Code:         spec.GeneratedCode(),
		InputSchema:  spec.InputSchema(),
		OutputSchema: spec.OutputSchema(),
		Meta:         Meta{SavedAt: time.Now().UTC()},
	}
	if tmpl := spec.Template(); tmpl != nil {
		rec.Template = tmpl.Text()
	}
	return rec
}

// modelRefString snapshots a model reference for storage. Descriptors
// collapse to their registry alias so a later load resolves against the
// then-current registry.
func modelRefString(ref any) string {
	switch r := ref.(type) {
	case nil:
		return ""
	case string:
		return r
	case model.Descriptor:
		if r.Name != "" {
			return r.Name
		}
		return r.Provider + ":" + r.Model
	case *model.Descriptor:
		if r == nil {
			return ""
		}
		return modelRefString(*r)
	default:
		return fmt.Sprint(r)
	}
}

func (b *Builder) persistRecord(ctx context.Context, spec *fn.Spec, name string) (string, error) {
	rec := recordFromSpec(spec)
	raw, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("encode record for %q: %w", name, err)
	}
	version, err := b.store.Save(ctx, KindFunction, name, raw)
	if err != nil {
		return "", err
	}
	logging.Build("Saved function %q version=%s", name, version)
	return version, nil
}

func (b *Builder) loadRecord(ctx context.Context, name, version string) (*Record, error) {
	raw, err := b.store.Load(ctx, KindFunction, name, version)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, &store.PersistenceError{Op: "decode", Kind: KindFunction, Name: name, Err: err}
	}
	return &rec, nil
}

// LoadSpec rebuilds a ready-to-call specification from a stored record.
// An empty version loads the newest.
func (b *Builder) LoadSpec(ctx context.Context, name, version string) (*fn.Spec, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	rec, err := b.loadRecord(ctx, name, version)
	if err != nil {
		return nil, err
	}

	spec := fn.New(template.Parse(rec.Template)).Persist(name).Via(b)
	if rec.Model != "" {
		spec = spec.Using(rec.Model)
	}
	if len(rec.Examples) > 0 {
		spec = spec.WithExamples(rec.Examples...)
	}
	if rec.InputSchema != nil {
		spec = spec.Inputs(rec.InputSchema)
	}
	if rec.OutputSchema != nil {
		spec = spec.Outputs(rec.OutputSchema)
	}
	// Adoption comes last: the fluent calls above drop cached code
	spec.AdoptStored(rec.Code, nil, nil, nil)

	logging.BuildDebug("Loaded spec %q version=%q", name, version)
	return spec, nil
}

// Stored returns the raw record for name without rebuilding a spec.
// An empty version loads the newest.
func (b *Builder) Stored(ctx context.Context, name, version string) (*Record, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	return b.loadRecord(ctx, name, version)
}

// Versions lists the stored versions of name, newest first.
func (b *Builder) Versions(ctx context.Context, name string) ([]store.Version, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	return b.store.ListVersions(ctx, KindFunction, name)
}

// Saved lists the names of all stored functions.
func (b *Builder) Saved(ctx context.Context) ([]string, error) {
	if b.store == nil {
		return nil, ErrNoStore
	}
	return b.store.List(ctx, KindFunction)
}
