package assemble

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"fnforge/internal/fn"
	"fnforge/internal/model"
	"fnforge/internal/schema"
)

func testRegistry(t *testing.T) *model.Registry {
	t.Helper()
	reg := model.NewRegistry()
	reg.Register(model.Descriptor{Name: "chatty", Provider: "anthropic", Model: "claude-x", Chat: true})
	reg.Register(model.Descriptor{Name: "plain", Provider: "openai", Model: "davinci"})
	return reg
}

func TestRequestChatLayout(t *testing.T) {
	a := New(testRegistry(t))
	spec := fn.Define("double the {thing}").
		Using("chatty").
		WithExamples(
			fn.Example{Input: 2, Output: 4},
			fn.Example{Input: "7", Output: "14"},
		)

	req, err := a.Request(spec, map[string]any{"thing": "input number"})
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if req.Prompt != "" {
		t.Errorf("chat request carries a prompt: %q", req.Prompt)
	}

	want := []model.Message{
		{Role: model.RoleSystem, Content: systemInstruction},
		{Role: model.RoleUser, Content: "2"},
		{Role: model.RoleAssistant, Content: "4"},
		{Role: model.RoleUser, Content: "7"},
		{Role: model.RoleAssistant, Content: "14"},
		{Role: model.RoleUser, Content: "double the input number"},
	}
	if diff := cmp.Diff(want, req.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if req.Model.Name != "chatty" {
		t.Errorf("model = %q, want chatty", req.Model.Name)
	}
}

func TestRequestCompletionLayout(t *testing.T) {
	a := New(testRegistry(t))
	spec := fn.Define("reverse the input").
		Using("plain").
		WithExamples(fn.Example{Input: "abc", Output: "cba"})

	req, err := a.Request(spec, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if len(req.Messages) != 0 {
		t.Errorf("completion request carries messages: %v", req.Messages)
	}

	want := "Input: abc\nOutput: cba\n\nreverse the input"
	if req.Prompt != want {
		t.Errorf("prompt = %q, want %q", req.Prompt, want)
	}
}

func TestSchemaHints(t *testing.T) {
	a := New(testRegistry(t))
	spec := fn.Define("double the input").
		Using("plain").
		Inputs(schema.Object(map[string]*schema.Schema{"num": schema.Number()})).
		Outputs(schema.Number())

	req, err := a.Request(spec, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if !strings.Contains(req.Prompt, "The input must be an object with fields {num: number}.") {
		t.Errorf("input hint missing from prompt:\n%s", req.Prompt)
	}
	if !strings.Contains(req.Prompt, "The output must be a number.") {
		t.Errorf("output hint missing from prompt:\n%s", req.Prompt)
	}
}

func TestStructuredExamplesRenderAsJSON(t *testing.T) {
	a := New(testRegistry(t))
	spec := fn.Define("sum the fields").
		Using("chatty").
		WithExamples(fn.Example{
			Input:  map[string]any{"a": 1, "b": 2},
			Output: 3,
		})

	req, err := a.Request(spec, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if req.Messages[1].Content != `{"a":1,"b":2}` {
		t.Errorf("example input = %q, want JSON object", req.Messages[1].Content)
	}
}

func TestModelResolution(t *testing.T) {
	reg := testRegistry(t)
	direct := model.Descriptor{Name: "adhoc", Provider: "openai", Model: "gpt-x", Chat: true}

	tests := []struct {
		name    string
		reg     *model.Registry
		ref     any
		setup   func(*model.Registry)
		want    string
		wantErr error
	}{
		{name: "alias resolves", reg: reg, ref: "plain", want: "plain"},
		{name: "descriptor passes through", reg: reg, ref: direct, want: "adhoc"},
		{name: "nil ref uses default", reg: reg, ref: nil,
			setup: func(r *model.Registry) { r.SetDefault("chatty") }, want: "chatty"},
		{name: "no model anywhere", reg: model.NewRegistry(), ref: nil, wantErr: model.ErrNoModel},
		{name: "nil registry no descriptor", reg: nil, ref: nil, wantErr: model.ErrNoModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setup != nil {
				tt.setup(tt.reg)
			}
			a := New(tt.reg)
			req, err := a.Request(fn.Define("x").Using(tt.ref), nil)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Request returned error: %v", err)
			}
			if req.Model.Name != tt.want {
				t.Errorf("model = %q, want %q", req.Model.Name, tt.want)
			}
		})
	}
}

func TestUnknownAlias(t *testing.T) {
	a := New(testRegistry(t))
	_, err := a.Request(fn.Define("x").Using("missing"), nil)
	var nf *model.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("error = %v, want *model.NotFoundError", err)
	}
	if nf.Alias != "missing" {
		t.Errorf("alias = %q, want missing", nf.Alias)
	}
}

func TestOptionsForwarded(t *testing.T) {
	a := New(testRegistry(t))
	temp := 0.2
	spec := fn.Define("x").
		Using("plain").
		WithOptions(fn.Options{Temperature: &temp, MaxTokens: 512})

	req, err := a.Request(spec, nil)
	if err != nil {
		t.Fatalf("Request returned error: %v", err)
	}
	if req.Opts.Temperature == nil || *req.Opts.Temperature != 0.2 {
		t.Errorf("temperature = %v, want 0.2", req.Opts.Temperature)
	}
	if req.Opts.MaxTokens != 512 {
		t.Errorf("max tokens = %d, want 512", req.Opts.MaxTokens)
	}
}
