// Package template implements the prompt template used by function
// specifications: ordered literal text and named slots. Each slot renders
// from the full variable bag, so a custom renderer can combine several
// variables into one fragment.
package template

import (
	"fmt"
	"strings"
)

// RenderFunc produces the text for one slot from the call's variable bag.
type RenderFunc func(vars map[string]any) string

// Slot is a named placeholder inside a template.
type Slot struct {
	Name   string
	Render RenderFunc
}

type segment struct {
	text string
	slot *Slot
}

// Template is an immutable sequence of literals and slots.
type Template struct {
	segments []segment
	source   string
}

// Parse builds a template from text. Placeholders use {name} with identifier
// names; backslash escapes a literal brace. Anything that does not scan as a
// placeholder stays literal text.
func Parse(text string) *Template {
	t := &Template{source: text}
	var lit strings.Builder
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\\' && i+1 < len(runes) {
			next := runes[i+1]
			if next == '{' || next == '}' || next == '\\' {
				lit.WriteRune(next)
				i++
				continue
			}
		}
		if r == '{' {
			name, end := scanName(runes, i+1)
			if name != "" && end < len(runes) && runes[end] == '}' {
				if lit.Len() > 0 {
					t.segments = append(t.segments, segment{text: lit.String()})
					lit.Reset()
				}
				t.segments = append(t.segments, segment{slot: &Slot{Name: name}})
				i = end
				continue
			}
		}
		lit.WriteRune(r)
	}
	if lit.Len() > 0 {
		t.segments = append(t.segments, segment{text: lit.String()})
	}
	return t
}

func scanName(runes []rune, start int) (string, int) {
	i := start
	for i < len(runes) && isNameRune(runes[i], i == start) {
		i++
	}
	if i == start {
		return "", start
	}
	return string(runes[start:i]), i
}

func isNameRune(r rune, first bool) bool {
	if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
		return true
	}
	return !first && r >= '0' && r <= '9'
}

// Lit returns a template holding only literal text.
func Lit(text string) *Template {
	return &Template{segments: []segment{{text: text}}, source: escape(text)}
}

// Var returns a template holding a single named slot with the default
// renderer.
func Var(name string) *Template {
	return &Template{
		segments: []segment{{slot: &Slot{Name: name}}},
		source:   "{" + name + "}",
	}
}

// VarFunc returns a single-slot template with a custom renderer. The
// renderer receives the whole variable bag.
func VarFunc(name string, render RenderFunc) *Template {
	return &Template{
		segments: []segment{{slot: &Slot{Name: name, Render: render}}},
		source:   "{" + name + "}",
	}
}

// Join concatenates templates in order.
func Join(parts ...*Template) *Template {
	out := &Template{}
	var src strings.Builder
	for _, p := range parts {
		if p == nil {
			continue
		}
		out.segments = append(out.segments, p.segments...)
		src.WriteString(p.source)
	}
	out.source = src.String()
	return out
}

// Render substitutes the variable bag into the template. A slot with no
// custom renderer formats vars[name]; when the bag has no value for the
// name the placeholder text is kept, so a template rendered with an empty
// bag still reads as written.
func (t *Template) Render(vars map[string]any) string {
	var b strings.Builder
	for _, seg := range t.segments {
		if seg.slot == nil {
			b.WriteString(seg.text)
			continue
		}
		if seg.slot.Render != nil {
			b.WriteString(seg.slot.Render(vars))
			continue
		}
		if v, ok := vars[seg.slot.Name]; ok {
			b.WriteString(fmt.Sprint(v))
		} else {
			b.WriteString("{" + seg.slot.Name + "}")
		}
	}
	return b.String()
}

// Text returns the template in source form, placeholders intact. Stored
// artifacts snapshot this form.
func (t *Template) Text() string { return t.source }

// SlotNames lists slot names in order of first appearance.
func (t *Template) SlotNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, seg := range t.segments {
		if seg.slot != nil && !seen[seg.slot.Name] {
			seen[seg.slot.Name] = true
			names = append(names, seg.slot.Name)
		}
	}
	return names
}

func escape(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `{`, `\{`, `}`, `\}`)
	return r.Replace(text)
}
