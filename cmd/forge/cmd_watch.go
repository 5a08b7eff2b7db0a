// Watch command: keep the spec library in sync with the functions
// directory and report reloads as they happen.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fnforge/internal/library"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// watchCmd runs the spec file watcher until interrupted
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the functions directory and reload specs on change",
	Long: `Watches the YAML spec directory and reloads specs as files are created,
edited, or removed. An edited spec drops its cached code, so the next call
regenerates against the new template.

Runs until interrupted with Ctrl-C.`,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	// No deadline here; the watcher runs until a signal arrives.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	watcher, err := library.NewWatcher(app.library)
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Stop()

	fmt.Println(out.Title.Render("Watching " + app.library.Dir()))
	if names := app.library.List(); len(names) > 0 {
		fmt.Printf("%s %d spec(s) loaded\n", out.Muted.Render("→"), len(names))
	}
	fmt.Println(out.Muted.Render("Ctrl-C to stop"))

	logger.Info("Watching spec directory", zap.String("dir", app.library.Dir()))

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	last := watcher.Stats()
	for {
		select {
		case <-ctx.Done():
			stats := watcher.Stats()
			fmt.Printf("\n%s %d reload(s), %d error(s)\n",
				out.Muted.Render("Stopped."), stats.Reloads, stats.Errors)
			return nil
		case <-ticker.C:
			stats := watcher.Stats()
			if stats == last {
				continue
			}
			reportWatchDelta(last, stats)
			last = stats
		}
	}
}

// reportWatchDelta prints one line per counter that moved since the last
// tick.
func reportWatchDelta(prev, cur library.WatcherStats) {
	at := cur.LastEventTime.Format("15:04:05")
	switch {
	case cur.Errors > prev.Errors:
		fmt.Printf("%s %s %s\n", out.Muted.Render(at), out.Error.Render("✗ reload failed"), cur.LastEventPath)
	case cur.FilesRemoved > prev.FilesRemoved:
		fmt.Printf("%s %s %s\n", out.Muted.Render(at), out.Warning.Render("- removed"), cur.LastEventPath)
	case cur.Reloads > prev.Reloads:
		fmt.Printf("%s %s %s\n", out.Muted.Render(at), out.Success.Render("✓ reloaded"), cur.LastEventPath)
	}
}
