package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
	"github.com/chazu/kiln/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [CLASS [SELECTOR]]",
	Short: "Recompile on every change and rerun the entry point",
	Long: `Watch compiles the project, runs its entry point, then waits for source
files to change. Each change recompiles the whole project and reruns the
entry point against the new generation of classes. Edits that only touch
formatting or comments are skipped; a failed round keeps the previous
generation in service.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, e, err := openProject(projectDir, false)
		if err != nil {
			return err
		}
		defer e.Close()
		if m == nil {
			return fmt.Errorf("no %s found from %s", manifest.FileName, projectDir)
		}
		var name, selector string
		if len(args) > 0 || m.Source.Entry != "" {
			if name, selector, err = entryName(m, args); err != nil {
				return err
			}
		}

		w, err := watch.NewWatcher(m.SourceDirPaths(), manifest.SourceExt)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		return watchLoop(cmd.Context(), cmd.OutOrStdout(), e, watch.NewReloader(e, m), w.Changes, name, selector)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

// watchLoop syncs once, then again for every batch of changes, until ctx
// ends or changes closes.
func watchLoop(ctx context.Context, out io.Writer, e *hotload.Engine, r *watch.Reloader, changes <-chan []string, name, selector string) error {
	log := commonlog.GetLogger("kiln.watch")
	cycle := func() {
		res, err := r.Sync(ctx)
		if err != nil {
			var failure *hotload.CompilationFailure
			if errors.As(err, &failure) {
				fmt.Fprintln(out, e.Printer().FormatAll(res.Diagnostics))
			} else {
				fmt.Fprintf(out, "sync failed: %v\n", err)
			}
			return
		}
		if res.Skipped {
			log.Debug("no unit changed")
			return
		}
		fmt.Fprintf(out, "generation %d: %d changed, %d removed\n", res.Generation, len(res.Changed), len(res.Removed))
		if name == "" {
			return
		}
		entry, err := r.EntryPoint(name, selector)
		if err == nil {
			var result any
			result, err = entry.Invoke()
			if err == nil && result != nil {
				fmt.Fprintln(out, display(result))
			}
		}
		if err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", name, selector, err)
		}
	}

	cycle()
	for {
		select {
		case <-ctx.Done():
			return nil
		case batch, ok := <-changes:
			if !ok {
				return nil
			}
			log.Infof("%d files changed", len(batch))
			cycle()
		}
	}
}
