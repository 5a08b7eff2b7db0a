// Store inspection commands: list, versions, show.
package main

import (
	"fmt"
	"sort"

	"fnforge/internal/build"

	"github.com/spf13/cobra"
)

var (
	showVersion string
	pruneKeep   int
)

// listCmd lists known functions
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List library specs and stored functions",
	RunE:  runList,
}

// versionsCmd lists the stored versions of one function
var versionsCmd = &cobra.Command{
	Use:   "versions <name>",
	Short: "List the stored versions of a function, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersions,
}

// showCmd prints a stored function's record
var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a stored function's template, metadata, and code",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// pruneCmd drops old versions of a function
var pruneCmd = &cobra.Command{
	Use:   "prune <name>",
	Short: "Delete old versions of a function, keeping the newest",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrune,
}

func init() {
	showCmd.Flags().StringVar(&showVersion, "version", "", "Version id (default: newest)")
	pruneCmd.Flags().IntVar(&pruneKeep, "keep", 3, "Number of newest versions to keep")
}

func runList(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	libNames := app.library.List()
	stored, err := app.builder.Saved(ctx)
	if err != nil {
		return fmt.Errorf("list stored functions: %w", err)
	}

	if len(libNames) == 0 && len(stored) == 0 {
		fmt.Println(out.Muted.Render("No functions yet."))
		fmt.Printf("Add a YAML spec under %s or define one in code.\n", app.library.Dir())
		return nil
	}

	if len(libNames) > 0 {
		table := newTable("Library specs", "NAME", "DESCRIPTION", "STATE")
		for _, name := range libNames {
			state := "spec only"
			if spec, ok := app.library.Get(name); ok && spec.GeneratedCode() != "" {
				state = "built"
			}
			if hasStored(stored, name) {
				state = "persisted"
			}
			table.AddRow(name, app.library.Describe(name), state)
		}
		fmt.Print(table.View(out))
		fmt.Println()
	}

	storedOnly := make([]string, 0, len(stored))
	for _, name := range stored {
		if !hasLibrary(libNames, name) {
			storedOnly = append(storedOnly, name)
		}
	}
	if len(storedOnly) > 0 {
		sort.Strings(storedOnly)
		table := newTable("Stored functions", "NAME", "VERSIONS", "LATEST SAVE")
		for _, name := range storedOnly {
			versions, err := app.builder.Versions(ctx, name)
			if err != nil {
				logger.Warn("Listing versions failed")
				continue
			}
			latest := ""
			if len(versions) > 0 {
				latest = versions[0].CreatedAt.Format("2006-01-02 15:04:05")
			}
			table.AddRow(name, fmt.Sprintf("%d", len(versions)), latest)
		}
		fmt.Print(table.View(out))
	}
	return nil
}

func runVersions(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name := args[0]
	versions, err := app.builder.Versions(ctx, name)
	if err != nil {
		return fmt.Errorf("versions of %s: %w", name, err)
	}
	if len(versions) == 0 {
		fmt.Println(out.Muted.Render("No stored versions for " + name + "."))
		return nil
	}

	table := newTable(name, "VERSION", "CREATED")
	for _, v := range versions {
		table.AddRow(v.ID, v.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	fmt.Print(table.View(out))
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name := args[0]
	rec, err := app.builder.Stored(ctx, name, showVersion)
	if err != nil {
		return fmt.Errorf("show %s: %w", name, err)
	}

	fmt.Println(out.Title.Render(name))
	fmt.Println(divider())
	if rec.Model != "" {
		fmt.Printf("%s %s\n", out.Muted.Render("model:"), rec.Model)
	}
	fmt.Printf("%s %s\n", out.Muted.Render("saved:"), rec.Meta.SavedAt.Format("2006-01-02 15:04:05 MST"))
	if n := len(rec.Examples); n > 0 {
		fmt.Printf("%s %d\n", out.Muted.Render("examples:"), n)
	}
	if rec.InputSchema != nil {
		fmt.Printf("%s %s\n", out.Muted.Render("input:"), rec.InputSchema.Describe())
	}
	if rec.OutputSchema != nil {
		fmt.Printf("%s %s\n", out.Muted.Render("output:"), rec.OutputSchema.Describe())
	}
	fmt.Println()
	fmt.Println(out.Muted.Render("template:"))
	fmt.Println(out.Body.Render(rec.Template))
	fmt.Println()
	fmt.Println(out.Muted.Render("code:"))
	fmt.Println(out.Code.Render(rec.Code))
	return nil
}

func runPrune(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	name := args[0]
	deleted, err := app.store.Prune(ctx, build.KindFunction, name, pruneKeep)
	if err != nil {
		return fmt.Errorf("prune %s: %w", name, err)
	}
	if deleted == 0 {
		fmt.Println(out.Muted.Render(fmt.Sprintf("Nothing to prune; %s has at most %d version(s).", name, pruneKeep)))
		return nil
	}

	fmt.Println(out.Success.Render(fmt.Sprintf("✓ pruned %d version(s) of %s", deleted, name)))
	return nil
}

func hasStored(stored []string, name string) bool {
	for _, s := range stored {
		if s == name {
			return true
		}
	}
	return false
}

func hasLibrary(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
