package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
	"github.com/chazu/kiln/vm"
)

var runCmd = &cobra.Command{
	Use:   "run [CLASS [SELECTOR]]",
	Short: "Load the project and send the entry selector to the entry class",
	Long: `Run compiles and defines every unit of the project, then sends SELECTOR
(default source.selector, then "main") to CLASS (default source.entry).
A non-nil result is printed; an Integer result becomes the exit status.`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, e, err := openProject(projectDir, true)
		if err != nil {
			return err
		}
		defer e.Close()
		name, selector, err := entryName(m, args)
		if err != nil {
			return err
		}
		return runEntry(cmd.OutOrStdout(), e, name, selector)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// entryName picks the class and selector to run from args and the manifest.
func entryName(m *manifest.Manifest, args []string) (string, string, error) {
	var name, selector string
	if m != nil {
		name, selector = m.Source.Entry, m.Source.Selector
	}
	if len(args) > 0 {
		name = args[0]
	}
	if len(args) > 1 {
		selector = args[1]
	}
	if name == "" {
		return "", "", fmt.Errorf("no entry class: name one or set source.entry in %s", manifest.FileName)
	}
	if selector == "" {
		selector = manifest.DefaultSelector
	}
	return name, selector, nil
}

func runEntry(out io.Writer, e *hotload.Engine, name, selector string) error {
	classes, err := e.LoadAll(name)
	if err != nil {
		return err
	}
	entry, err := hotload.NewEntryPoint(e.Runtime(), classes[name], selector)
	if err != nil {
		return err
	}
	result, err := entry.Invoke()
	if err != nil {
		return err
	}
	return report(out, result)
}

// report prints a program's result. Integers become the exit status.
func report(out io.Writer, result any) error {
	switch r := result.(type) {
	case nil:
		return nil
	case int64:
		if r != 0 {
			return &exitError{code: int(r)}
		}
		return nil
	}
	fmt.Fprintln(out, display(result))
	return nil
}

// display renders a result the way printString does.
func display(v any) string {
	val, err := vm.FromGo(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return vm.PrintString(val)
}
