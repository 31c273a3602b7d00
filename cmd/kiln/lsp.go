package main

import (
	"github.com/spf13/cobra"

	"github.com/chazu/kiln/server"
)

var lspCmd = &cobra.Command{
	Use:   "lsp",
	Short: "Run the language server on stdio",
	Long: `Lsp speaks the Language Server Protocol on standard input and output. Open
documents are compiled together on every change and their diagnostics are
published; completion, hover and definition cover builtin, project and
open classes. Logs go to stderr or --log.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, e, err := openProject(projectDir, true)
		if err != nil {
			return err
		}
		defer e.Close()
		return server.NewLSP(e).Run()
	},
}

func init() {
	rootCmd.AddCommand(lspCmd)
}
