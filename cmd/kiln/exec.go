package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/manifest"
	"github.com/chazu/kiln/server"
	"github.com/chazu/kiln/vm"
)

var execCmd = &cobra.Command{
	Use:   "exec FILE",
	Short: "Run a script file for its effects",
	Long: `Exec runs the statements in FILE ("-" for standard input) as the body of a
synthesized procedure, after loading the project when there is one.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := readScript(cmd.InOrStdin(), args[0])
		if err != nil {
			return err
		}
		if execFlags.remote != "" {
			return server.NewClient(nil, execFlags.remote).Run(cmd.Context(), body)
		}
		m, e, err := openProject(projectDir, true)
		if err != nil {
			return err
		}
		defer e.Close()
		return execScript(e, body, projectImports(m)...)
	},
}

var execFlags struct {
	remote string
}

func init() {
	execCmd.Flags().StringVar(&execFlags.remote, "remote", "", "URL of a kiln server to run on")
	rootCmd.AddCommand(execCmd)
}

func readScript(stdin io.Reader, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		data, err = manifest.StripBOM(data)
		return string(data), err
	}
	data, err := manifest.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// execScript runs body as a procedure that can name imported classes.
func execScript(e *hotload.Engine, body string, imports ...string) error {
	entry, err := e.CompileMethod(hotload.Sig().Returns(vm.TypeVoid).Import(imports...), body)
	if err != nil {
		return describe(e, err)
	}
	_, err = entry.Invoke()
	return err
}
