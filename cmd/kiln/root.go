package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/compiler"
	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
)

var rootCmd = &cobra.Command{
	Use:   "kiln",
	Short: "Compile, load and evaluate Kiln sources in process",
	Long: `Kiln compiles sets of source units in memory, defines their classes through
a dynamic loader and evaluates expressions against them.

Commands that work on a project look for kiln.toml in the current directory
and its parents (see --dir).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		var path *string
		if logPath != "" {
			path = &logPath
		}
		commonlog.Configure(verbosity, path)
	},
}

var (
	verbosity  int
	logPath    string
	projectDir string
)

func init() {
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "log verbosity (repeat for more)")
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "log file (default stderr)")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", ".", "directory to start the kiln.toml search from")
}

// exitError carries a process exit code, like a program's integer result.
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exit *exitError
	if errors.As(err, &exit) {
		os.Exit(exit.code)
	}
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}

// newEngine creates an engine configured by m, or with defaults when there
// is no project.
func newEngine(m *manifest.Manifest) (*hotload.Engine, error) {
	cfg := hotload.DefaultConfig()
	if m != nil {
		var err error
		if cfg, err = m.Config(); err != nil {
			return nil, err
		}
	}
	return hotload.New(cfg, compiler.NewBackend())
}

// openProject finds the project around dir and creates its engine. With
// load set, the project's units are compiled and defined. The manifest is
// nil outside a project.
func openProject(dir string, load bool) (*manifest.Manifest, *hotload.Engine, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, nil, err
	}
	e, err := newEngine(m)
	if err != nil {
		return nil, nil, err
	}
	if load && m != nil {
		if err := loadSources(e, m); err != nil {
			e.Close()
			return nil, nil, err
		}
	}
	return m, e, nil
}

func loadSources(e *hotload.Engine, m *manifest.Manifest) error {
	sources, err := m.Sources()
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return nil
	}
	if _, err := e.CompileAndLoad(sources); err != nil {
		return describe(e, err)
	}
	return nil
}

// describe renders a failed round in the engine's locale.
func describe(e *hotload.Engine, err error) error {
	var failure *hotload.CompilationFailure
	if errors.As(err, &failure) {
		return errors.New(e.Printer().FormatAll(failure.Diagnostics))
	}
	return err
}

// projectImports lets evaluations name the project's classes without a
// namespace prefix.
func projectImports(m *manifest.Manifest) []string {
	if m == nil || m.Project.Namespace == "" {
		return nil
	}
	return []string{m.Project.Namespace}
}
