// Command forge turns natural language function descriptions into callable,
// sandboxed Go functions. Specs come from YAML files in .forge/functions or
// from the versioned store; generated code is compiled into an embedded
// interpreter and invoked with schema-validated arguments.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fnforge/internal/assemble"
	"fnforge/internal/build"
	"fnforge/internal/config"
	"fnforge/internal/fn"
	"fnforge/internal/library"
	"fnforge/internal/logging"
	"fnforge/internal/model"
	"fnforge/internal/sandbox"
	"fnforge/internal/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose       bool
	workspace     string
	timeout       time.Duration
	modelOverride string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "forge",
	Short: "forge - describe a function, get a callable",
	Long: `forge builds working Go functions from natural language descriptions.

A function spec is a prompt template plus optional examples, schemas, and a
model choice. forge sends the spec to an LLM, extracts the returned source,
compiles it into a sandboxed interpreter, and exposes it as a callable that
validates its inputs and outputs.

Specs live as YAML files under .forge/functions; built functions persist to
the versioned store at .forge/store.db.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Initialize logger
		config := zap.NewProductionConfig()
		if verbose {
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: nearest .forge or go.mod)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&modelOverride, "model", "", "Model alias override for this invocation")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(saveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(versionsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(pruneCmd)
	rootCmd.AddCommand(watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, out.Error.Render("✗ ")+err.Error())
		os.Exit(1)
	}
}

// app wires the full pipeline for one command invocation.
type app struct {
	root    string
	cfg     *config.UserConfig
	store   *store.SQLiteStore
	builder *build.Builder
	library *library.Library
}

func newApp(ctx context.Context) (*app, error) {
	root := workspace
	if root == "" {
		var err error
		root, err = config.FindWorkspaceRoot()
		if err != nil {
			return nil, fmt.Errorf("resolve workspace: %w", err)
		}
	}

	cfg, err := config.Load(filepath.Join(root, ".forge", "config.json"))
	if err != nil {
		return nil, err
	}
	if modelOverride != "" {
		cfg.Model = modelOverride
	}

	if err := logging.Initialize(root); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}

	creds := cfg.Credentials()
	registry := model.DefaultRegistry(creds)
	if cfg.Model != "" {
		if err := registry.SetDefault(cfg.Model); err != nil {
			return nil, fmt.Errorf("model %q: %w (known: %s)", cfg.Model, err, strings.Join(registry.List(), ", "))
		}
	}

	st, err := store.Open(cfg.GetStorePath(root))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	builder := build.New(
		assemble.New(registry),
		model.NewFactory(creds),
		sandbox.NewEngine(cfg.GetSandboxPolicy()),
		st,
	)

	lib := library.New(cfg.GetFunctionsDir(root), builder)
	if err := lib.LoadDir(); err != nil {
		logger.Warn("Spec library unavailable", zap.Error(err))
	}

	logger.Debug("Workspace ready",
		zap.String("root", root),
		zap.String("store", cfg.GetStorePath(root)),
		zap.String("functions", cfg.GetFunctionsDir(root)))

	return &app{root: root, cfg: cfg, store: st, builder: builder, library: lib}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		logger.Warn("Closing store failed", zap.Error(err))
	}
}

// resolveSpec finds a function by name: the YAML library first, then the
// newest stored version.
func (a *app) resolveSpec(ctx context.Context, name string) (*fn.Spec, error) {
	if spec, ok := a.library.Get(name); ok {
		logger.Debug("Resolved from library", zap.String("name", name))
		return spec, nil
	}
	spec, err := a.builder.LoadSpec(ctx, name, "")
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no function %q in the library or store", name)
		}
		return nil, err
	}
	logger.Debug("Resolved from store", zap.String("name", name))
	return spec, nil
}

// commandContext derives the handler context: bounded by --timeout and
// cancelled on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// parseArg interprets one CLI argument: valid JSON decodes to its value
// (numbers, booleans, objects, arrays, quoted strings), anything else
// passes through as a plain string.
func parseArg(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}
	return s
}

// parseVars turns --var key=value pairs into a template variable bag.
func parseVars(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --var %q, want key=value", pair)
		}
		vars[k] = parseArg(v)
	}
	return vars, nil
}

// renderResult formats a call result for the terminal. Composite values
// print as indented JSON.
func renderResult(v any) string {
	switch v.(type) {
	case nil:
		return out.Muted.Render("(no result)")
	case string, bool, float64, int, int64:
		return fmt.Sprintf("%v", v)
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
