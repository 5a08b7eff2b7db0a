// Package assemble turns a function specification into a generation
// request: rendered template text, schema hints, few-shot conditioning,
// and a resolved model descriptor. Chat backends get an ordered message
// list; completion backends get a single prompt string.
package assemble

import (
	"encoding/json"
	"fmt"
	"strings"

	"fnforge/internal/fn"
	"fnforge/internal/logging"
	"fnforge/internal/model"
	"fnforge/internal/schema"
)

// systemInstruction pins chat backends to bare source output. The
// extractor tolerates fenced blocks anyway, so a fence in the reply is
// acceptable rather than an error.
const systemInstruction = `You are a Go code generator.
Respond with source code only: no commentary, no explanations, no usage
examples.

Requirements:
- Exactly one top-level function declaration; unexported helpers may follow it
- Standard library imports only (strings, strconv, fmt, errors, math, regexp, encoding/json, sort, bytes, time, unicode)
- Return errors instead of calling panic()
- No file, network, or process access`

// GenRequest is a ready-to-send generation request. Messages is set for
// chat descriptors, Prompt for completion descriptors.
type GenRequest struct {
	Messages []model.Message
	Prompt   string
	Model    model.Descriptor
	Opts     model.CallOptions
}

// Assembler builds generation requests against a model registry.
type Assembler struct {
	registry *model.Registry
}

// New returns an assembler resolving aliases through registry. A nil
// registry still assembles requests for specifications that carry a
// concrete descriptor.
func New(registry *model.Registry) *Assembler {
	return &Assembler{registry: registry}
}

// Request assembles the generation request for spec, rendering its
// template against vars.
func (a *Assembler) Request(spec *fn.Spec, vars map[string]any) (*GenRequest, error) {
	d, err := a.resolveModel(spec.ModelRef())
	if err != nil {
		return nil, err
	}
	tmpl := spec.Template()
	if tmpl == nil {
		return nil, fmt.Errorf("specification has no template")
	}

	body := tmpl.Render(vars)
	body = appendSchemaHints(body, spec.InputSchema(), spec.OutputSchema())

	opts := spec.Options()
	req := &GenRequest{
		Model: d,
		Opts:  model.CallOptions{Temperature: opts.Temperature, MaxTokens: opts.MaxTokens},
	}

	examples := spec.Examples()
	if d.Chat {
		req.Messages = chatMessages(body, examples)
		logging.AssembleDebug("Assembled chat request: model=%s messages=%d examples=%d",
			d.Name, len(req.Messages), len(examples))
	} else {
		req.Prompt = completionPrompt(body, examples)
		logging.AssembleDebug("Assembled completion request: model=%s prompt=%d bytes examples=%d",
			d.Name, len(req.Prompt), len(examples))
	}
	return req, nil
}

// resolveModel maps a specification's model reference to a descriptor.
// nil falls back to the registry default, a string resolves as an alias,
// a Descriptor passes through untouched.
func (a *Assembler) resolveModel(ref any) (model.Descriptor, error) {
	switch r := ref.(type) {
	case nil:
		return a.defaultModel()
	case string:
		if r == "" {
			return a.defaultModel()
		}
		if a.registry == nil {
			return model.Descriptor{}, &model.NotFoundError{Alias: r}
		}
		return a.registry.Resolve(r)
	case model.Descriptor:
		return r, nil
	case *model.Descriptor:
		if r == nil {
			return a.defaultModel()
		}
		return *r, nil
	default:
		return model.Descriptor{}, fmt.Errorf("unsupported model reference type %T", ref)
	}
}

func (a *Assembler) defaultModel() (model.Descriptor, error) {
	if a.registry == nil {
		return model.Descriptor{}, model.ErrNoModel
	}
	return a.registry.Default()
}

func chatMessages(body string, examples []fn.Example) []model.Message {
	msgs := make([]model.Message, 0, 2+2*len(examples))
	msgs = append(msgs, model.Message{Role: model.RoleSystem, Content: systemInstruction})
	for _, ex := range examples {
		msgs = append(msgs,
			model.Message{Role: model.RoleUser, Content: exampleText(ex.Input)},
			model.Message{Role: model.RoleAssistant, Content: exampleText(ex.Output)},
		)
	}
	return append(msgs, model.Message{Role: model.RoleUser, Content: body})
}

func completionPrompt(body string, examples []fn.Example) string {
	if len(examples) == 0 {
		return body
	}
	var b strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&b, "Input: %s\nOutput: %s\n\n", exampleText(ex.Input), exampleText(ex.Output))
	}
	b.WriteString(body)
	return b.String()
}

func appendSchemaHints(body string, in, out *schema.Schema) string {
	if in == nil && out == nil {
		return body
	}
	var b strings.Builder
	b.WriteString(body)
	if in != nil {
		b.WriteString("\n\nThe input must be " + describeWithArticle(in) + ".")
	}
	if out != nil {
		if in == nil {
			b.WriteString("\n")
		}
		b.WriteString("\nThe output must be " + describeWithArticle(out) + ".")
	}
	return b.String()
}

func describeWithArticle(s *schema.Schema) string {
	d := s.Describe()
	switch {
	case strings.HasPrefix(d, "one of"), d == "any value":
		return d
	case strings.HasPrefix(d, "object"), strings.HasPrefix(d, "integer"),
		strings.HasPrefix(d, "array"):
		return "an " + d
	default:
		return "a " + d
	}
}

// exampleText serializes one example side for a prompt: strings pass
// through, everything else renders as JSON.
func exampleText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
