// Function lifecycle commands: call, build, save.
package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"fnforge/internal/artifact"
	"fnforge/internal/fn"
	"fnforge/internal/sandbox"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	callVars  []string
	callForce bool
)

// callCmd builds a function if needed and invokes it
var callCmd = &cobra.Command{
	Use:   "call <name> [args...]",
	Short: "Build a function if needed and invoke it",
	Long: `Resolves a function by name, builds it when no code is cached or stored,
and invokes it with the given arguments.

Arguments are parsed as JSON where possible: 5 is a number, true a boolean,
'{"a":1}' an object. Anything else passes through as a string.

Examples:
  forge call double 21
  forge call summarize "the text to shorten" --var tone=formal
  forge call double 21 --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCall,
}

// buildCmd generates and compiles without invoking
var buildCmd = &cobra.Command{
	Use:   "build <name>",
	Short: "Generate and compile a function without invoking it",
	Long: `Runs the generation pipeline for a function: assemble the prompt, call
the model, extract and compile the returned source, load it into the
sandbox. Prints the entry point on success.

With --force the model is called even when usable code already exists.`,
	Args: cobra.ExactArgs(1),
	RunE: runBuild,
}

// saveCmd persists a built function to the versioned store
var saveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Persist a function to the versioned store",
	Long: `Writes the function's generated code, examples, and schemas to the
store as a new version. Builds first when no code exists yet.`,
	Args: cobra.ExactArgs(1),
	RunE: runSave,
}

func init() {
	callCmd.Flags().StringArrayVar(&callVars, "var", nil, "Template variable as key=value (repeatable)")
	callCmd.Flags().BoolVar(&callForce, "force", false, "Regenerate even when code is cached or stored")
	buildCmd.Flags().BoolVar(&callForce, "force", false, "Regenerate even when code is cached or stored")
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name := args[0]
	spec, err := app.resolveSpec(ctx, name)
	if err != nil {
		return err
	}
	spec, err = applyFlags(spec)
	if err != nil {
		return err
	}

	callArgs := make([]any, 0, len(args)-1)
	for _, raw := range args[1:] {
		callArgs = append(callArgs, parseArg(raw))
	}

	logger.Info("Calling function",
		zap.String("name", name),
		zap.Int("args", len(callArgs)))

	started := time.Now()
	result, err := spec.Call(ctx, callArgs...)
	if err != nil {
		return describeError(name, err)
	}

	elapsed := time.Since(started).Round(time.Millisecond)
	fmt.Println(out.Success.Render("✓ "+name) + " " + out.Muted.Render(elapsed.String()))
	fmt.Println(renderResult(result))
	return nil
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name := args[0]
	spec, err := app.resolveSpec(ctx, name)
	if err != nil {
		return err
	}
	spec, err = applyFlags(spec)
	if err != nil {
		return err
	}

	hadCode := spec.GeneratedCode() != ""
	logger.Info("Building function", zap.String("name", name), zap.Bool("cached", hadCode))

	art, err := spec.Build(ctx)
	if err != nil {
		return describeError(name, err)
	}

	source := "generated"
	if hadCode && !callForce {
		source = "already built"
	}
	fmt.Println(out.Success.Render("✓ "+name) + " " + out.Muted.Render(source))
	fmt.Printf("  entry: %s\n", out.Bold.Render(art.Name()))
	if names := art.Names(); len(names) > 1 {
		fmt.Printf("  functions: %s\n", strings.Join(names, ", "))
	}
	if spec.NeedsSave() {
		fmt.Println(out.Warning.Render("  not yet persisted; run: forge save " + name))
	}
	return nil
}

func runSave(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name := args[0]
	spec, err := app.resolveSpec(ctx, name)
	if err != nil {
		return err
	}

	logger.Info("Saving function", zap.String("name", name))
	version, err := spec.Save(ctx, name)
	if err != nil {
		return describeError(name, err)
	}

	fmt.Println(out.Success.Render("✓ saved "+name) + " " + out.Badge.Render(version))
	return nil
}

// applyFlags folds --var and --force into a derived spec. File-level
// variables stay in place unless a flag names the same key.
func applyFlags(spec *fn.Spec) (*fn.Spec, error) {
	vars, err := parseVars(callVars)
	if err != nil {
		return nil, err
	}
	if len(vars) > 0 {
		merged := spec.Vars()
		if merged == nil {
			merged = make(map[string]any, len(vars))
		}
		for k, v := range vars {
			merged[k] = v
		}
		spec = spec.Bind(merged)
	}
	if callForce {
		opts := spec.Options()
		opts.ForceRegenerate = true
		spec = spec.WithOptions(opts)
	}
	return spec, nil
}

// describeError translates pipeline errors into actionable messages.
func describeError(name string, err error) error {
	var (
		inErr   *artifact.InvalidInputError
		outErr  *artifact.InvalidOutputError
		execErr *artifact.ExecutionError
		compErr *sandbox.CompileError
	)
	switch {
	case errors.As(err, &inErr):
		return fmt.Errorf("%s rejected its arguments: %w", name, err)
	case errors.As(err, &outErr):
		return fmt.Errorf("%s produced output that fails its schema: %w", name, err)
	case errors.As(err, &compErr):
		lines := make([]string, 0, len(compErr.Diagnostics)+1)
		lines = append(lines, fmt.Sprintf("generated code for %s does not compile:", name))
		for _, d := range compErr.Diagnostics {
			if d.Pos == "" {
				lines = append(lines, "  "+d.Message)
			} else {
				lines = append(lines, fmt.Sprintf("  %s: %s", d.Pos, d.Message))
			}
		}
		return errors.New(strings.Join(lines, "\n"))
	case errors.As(err, &execErr):
		return fmt.Errorf("%s failed during execution: %w", name, err)
	default:
		return fmt.Errorf("%s: %w", name, err)
	}
}
