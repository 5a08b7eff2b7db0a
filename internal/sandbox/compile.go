package sandbox

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/scanner"
	"go/token"
	"regexp"
	"strings"

	"fnforge/internal/logging"
)

var packageClause = regexp.MustCompile(`(?m)^[ \t]*package[ \t]+(\w+)`)

// wrap normalizes source into a main-package file. Bare declarations get a
// package clause prepended; a clause with another name is rewritten, since
// models frequently emit arbitrary package names.
func wrap(source string) string {
	m := packageClause.FindStringSubmatch(source)
	if m == nil {
		return "package main\n\n" + source
	}
	if m[1] == "main" {
		return source
	}
	return strings.Replace(source, m[0], "package main", 1)
}

// parseProgram runs the parser in AllErrors mode and converts the scanner's
// error list into diagnostics, so a failing compile reports every message.
func parseProgram(wrapped string) (*ast.File, *token.FileSet, []Diagnostic) {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "artifact.go", wrapped, parser.AllErrors)
	if err == nil {
		return file, fset, nil
	}

	var diags []Diagnostic
	if list, ok := err.(scanner.ErrorList); ok {
		for _, e := range list {
			diags = append(diags, Diagnostic{Pos: e.Pos.String(), Message: e.Msg})
		}
	} else {
		diags = append(diags, Diagnostic{Message: err.Error()})
	}
	return nil, nil, diags
}

func checkImports(file *ast.File, fset *token.FileSet, allowed map[string]bool) []Diagnostic {
	var diags []Diagnostic
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if !allowed[path] {
			diags = append(diags, Diagnostic{
				Pos:     fset.Position(imp.Pos()).String(),
				Message: fmt.Sprintf("forbidden import %q", path),
			})
		}
	}
	return diags
}

// scanEntry locates the entry declaration in source order: the first named
// function declaration wins, then the first var/const bound to a function
// literal. main and init never qualify.
func scanEntry(file *ast.File) (string, []string) {
	var entry string
	var exports []string
	var funcBindings []string

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil {
				continue
			}
			name := d.Name.Name
			if name == "main" || name == "init" {
				continue
			}
			if entry == "" {
				entry = name
			}
			exports = append(exports, name)
		case *ast.GenDecl:
			if d.Tok != token.VAR && d.Tok != token.CONST {
				continue
			}
			for _, spec := range d.Specs {
				vs, ok := spec.(*ast.ValueSpec)
				if !ok {
					continue
				}
				for i, ident := range vs.Names {
					if i >= len(vs.Values) {
						continue
					}
					if _, isFunc := vs.Values[i].(*ast.FuncLit); isFunc {
						funcBindings = append(funcBindings, ident.Name)
						exports = append(exports, ident.Name)
					}
				}
			}
		}
	}

	if entry == "" && len(funcBindings) > 0 {
		entry = funcBindings[0]
	}
	return entry, exports
}

// Compile implements the compile half of Backend for the yaegi engine:
// normalize, parse with full diagnostics, enforce the import policy, and
// locate the entry point. The returned Program is inert until loaded.
func (e *Engine) Compile(source string) (*Program, error) {
	timer := logging.StartTimer(logging.CategorySandbox, "Compile")
	defer timer.Stop()

	wrapped := wrap(source)

	file, fset, diags := parseProgram(wrapped)
	if len(diags) > 0 {
		logging.SandboxDebug("parse failed with %d diagnostic(s)", len(diags))
		return nil, &CompileError{Diagnostics: diags}
	}

	if diags := checkImports(file, fset, e.policy.AllowedImports); len(diags) > 0 {
		logging.SandboxDebug("import policy rejected %d import(s)", len(diags))
		return nil, &CompileError{Diagnostics: diags}
	}

	entry, exports := scanEntry(file)
	if entry == "" {
		return nil, &NoEntryPointError{
			Reason: "no function declaration or function-valued binding found",
		}
	}
	logging.SandboxDebug("compiled program: entry=%s exports=%d", entry, len(exports))

	return &Program{
		Source:    source,
		Wrapped:   wrapped,
		EntryName: entry,
		Exports:   exports,
	}, nil
}
