// Init command: cold-start a workspace for forge.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"fnforge/internal/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// sampleSpec is written on first init so `forge call double 21` works as
// soon as an API key is configured.
const sampleSpec = `name: double
description: doubles a number
template: double the input number
input:
  kind: number
output:
  kind: number
examples:
  - input: 2
    output: 4
`

// initCmd sets up the .forge directory
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize forge in the current workspace",
	Long: `Creates the .forge/ directory structure:

  .forge/config.json     provider keys, model override, sandbox policy
  .forge/functions/      YAML function specs
  .forge/store.db        versioned store, created on first save

Existing files are left alone. A sample spec is written to the functions
directory when it is empty.`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	root := workspace
	if root == "" {
		var err error
		root, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}
	}

	logger.Info("Initializing workspace", zap.String("root", root))

	configPath := filepath.Join(root, ".forge", "config.json")
	if _, err := os.Stat(configPath); err == nil {
		fmt.Println(out.Muted.Render("• config exists: " + configPath))
	} else if os.IsNotExist(err) {
		if err := config.Default().Save(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Println(out.Success.Render("✓ wrote " + configPath))
	} else {
		return fmt.Errorf("check config: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	fnDir := cfg.GetFunctionsDir(root)
	if err := os.MkdirAll(fnDir, 0755); err != nil {
		return fmt.Errorf("create functions directory: %w", err)
	}

	entries, err := os.ReadDir(fnDir)
	if err != nil {
		return fmt.Errorf("read functions directory: %w", err)
	}
	if len(entries) == 0 {
		samplePath := filepath.Join(fnDir, "double.yaml")
		if err := os.WriteFile(samplePath, []byte(sampleSpec), 0644); err != nil {
			return fmt.Errorf("write sample spec: %w", err)
		}
		fmt.Println(out.Success.Render("✓ wrote " + samplePath))
	} else {
		fmt.Println(out.Muted.Render(fmt.Sprintf("• functions dir has %d file(s): %s", len(entries), fnDir)))
	}

	fmt.Println()
	fmt.Println(out.Title.Render("Workspace ready."))
	if provider, _ := cfg.GetActiveProvider(); provider != "" {
		fmt.Printf("Provider: %s\n", out.Bold.Render(provider))
	} else {
		fmt.Println("Next: add an API key to " + configPath)
		fmt.Println("      or export ANTHROPIC_API_KEY / OPENAI_API_KEY / GEMINI_API_KEY")
	}
	fmt.Println("Try:  forge call double 21")
	return nil
}
