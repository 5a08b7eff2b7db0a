// Package library loads function specifications from YAML files under the
// workspace functions directory and keeps them ready to call. A watcher
// reloads files as they change, so edited specifications rebuild on their
// next call instead of reusing stale code.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"fnforge/internal/fn"
	"fnforge/internal/logging"
	"fnforge/internal/schema"
)

// File is the on-disk YAML form of one function specification.
type File struct {
	Name        string         `yaml:"name,omitempty"`
	Description string         `yaml:"description,omitempty"`
	Template    string         `yaml:"template"`
	Model       string         `yaml:"model,omitempty"`
	Persist     string         `yaml:"persist,omitempty"`
	Ephemeral   bool           `yaml:"ephemeral,omitempty"`
	Options     fn.Options     `yaml:"options,omitempty"`
	Input       *schema.Schema `yaml:"input,omitempty"`
	Output      *schema.Schema `yaml:"output,omitempty"`
	Examples    []fn.Example   `yaml:"examples,omitempty"`
	Vars        map[string]any `yaml:"vars,omitempty"`
}

// Library indexes parsed specification files by function name.
type Library struct {
	mu      sync.RWMutex
	dir     string
	runtime fn.Runtime
	specs   map[string]*fn.Spec
	descs   map[string]string
	byPath  map[string]string // file path -> function name
}

// New returns a library over dir. Specs are bound to rt so they can be
// called directly; rt may be nil for parse-only use.
func New(dir string, rt fn.Runtime) *Library {
	return &Library{
		dir:     dir,
		runtime: rt,
		specs:   make(map[string]*fn.Spec),
		descs:   make(map[string]string),
		byPath:  make(map[string]string),
	}
}

// Dir returns the directory the library reads from.
func (l *Library) Dir() string { return l.dir }

// LoadDir parses every .yaml/.yml file in the library directory. Files
// that fail to parse are logged and skipped so one bad file does not take
// the rest of the library down. A missing directory is an empty library.
func (l *Library) LoadDir() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			logging.LibraryDebug("Functions directory %s does not exist yet", l.dir)
			return nil
		}
		return fmt.Errorf("read functions directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() || !isSpecFile(entry.Name()) {
			continue
		}
		path := filepath.Join(l.dir, entry.Name())
		if err := l.Reload(path); err != nil {
			logging.Get(logging.CategoryLibrary).Error("Skipping %s: %v", path, err)
			continue
		}
		loaded++
	}
	logging.Library("Loaded %d function spec(s) from %s", loaded, l.dir)
	return nil
}

// Reload parses one file and replaces its spec. The fresh spec carries no
// generated code, so the next call after an edit regenerates or reloads
// from the store.
func (l *Library) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read spec file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse spec file: %w", err)
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if strings.TrimSpace(f.Template) == "" {
		return fmt.Errorf("spec %q has no template", f.Name)
	}

	spec := l.specFromFile(f)

	l.mu.Lock()
	if old, ok := l.byPath[path]; ok && old != f.Name {
		delete(l.specs, old)
		delete(l.descs, old)
	}
	l.specs[f.Name] = spec
	l.descs[f.Name] = f.Description
	l.byPath[path] = f.Name
	l.mu.Unlock()

	logging.LibraryDebug("Loaded spec %q from %s", f.Name, path)
	return nil
}

// Remove drops the spec loaded from path, if any.
func (l *Library) Remove(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	name, ok := l.byPath[path]
	if !ok {
		return
	}
	delete(l.byPath, path)
	delete(l.specs, name)
	delete(l.descs, name)
	logging.LibraryDebug("Removed spec %q (file %s deleted)", name, path)
}

// Get returns the spec registered under name.
func (l *Library) Get(name string) (*fn.Spec, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	spec, ok := l.specs[name]
	return spec, ok
}

// Describe returns the description from the spec file, empty when none.
func (l *Library) Describe(name string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.descs[name]
}

// List returns the loaded function names, sorted.
func (l *Library) List() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.specs))
	for name := range l.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Library) specFromFile(f File) *fn.Spec {
	spec := fn.Define(f.Template)
	if f.Model != "" {
		spec = spec.Using(f.Model)
	}
	if len(f.Examples) > 0 {
		spec = spec.WithExamples(f.Examples...)
	}
	if f.Input != nil {
		spec = spec.Inputs(f.Input)
	}
	if f.Output != nil {
		spec = spec.Outputs(f.Output)
	}
	if len(f.Vars) > 0 {
		spec = spec.Bind(f.Vars)
	}
	spec = spec.WithOptions(f.Options)
	if !f.Ephemeral {
		persist := f.Persist
		if persist == "" {
			persist = f.Name
		}
		spec = spec.Persist(persist)
	}
	if l.runtime != nil {
		spec = spec.Via(l.runtime)
	}
	return spec
}

func isSpecFile(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}
