package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
	"github.com/chazu/kiln/server"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile the project and report diagnostics",
	Long: `Build compiles every unit of the project in one round and prints its
diagnostics, formatted in the engine.locale of kiln.toml. With --load the
classes are also defined, which runs their class variable initializers.
With --remote the check runs on a kiln server.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, e, err := openProject(projectDir, false)
		if err != nil {
			return err
		}
		defer e.Close()
		if m == nil {
			return fmt.Errorf("no %s found from %s", manifest.FileName, projectDir)
		}
		sources, err := m.Sources()
		if err != nil {
			return err
		}
		if buildFlags.remote != "" {
			return buildRemote(cmd.Context(), cmd.OutOrStdout(), server.NewClient(nil, buildFlags.remote), sources)
		}
		return build(cmd.OutOrStdout(), e, sources, buildFlags.load)
	},
}

var buildFlags struct {
	load   bool
	remote string
}

var errBuildFailed = errors.New("build failed")

func init() {
	buildCmd.Flags().BoolVar(&buildFlags.load, "load", false, "define the compiled classes")
	buildCmd.Flags().StringVar(&buildFlags.remote, "remote", "", "URL of a kiln server to check on")
	rootCmd.AddCommand(buildCmd)
}

func build(out io.Writer, e *hotload.Engine, sources map[string]string, load bool) error {
	diags, err := e.Check(sources)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, e.Printer().FormatAll(diags))
	if len(hotload.Errors(diags)) > 0 {
		return errBuildFailed
	}
	if !load {
		return nil
	}
	classes, err := e.CompileAndLoad(sources)
	if err != nil {
		return describe(e, err)
	}
	fmt.Fprintf(out, "defined %d classes\n", len(classes))
	return nil
}

func buildRemote(ctx context.Context, out io.Writer, c *server.Client, sources map[string]string) error {
	resp, err := c.Check(ctx, sources)
	if err != nil {
		return err
	}
	for _, d := range resp.Diagnostics {
		fmt.Fprintln(out, d.Text)
	}
	fmt.Fprintln(out, resp.Summary)
	if !resp.Valid {
		return errBuildFailed
	}
	return nil
}
