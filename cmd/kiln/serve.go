package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chazu/kiln/server"
)

const defaultAddr = "localhost:4567"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluation API over HTTP",
	Long: `Serve loads the project, when there is one, and serves the Evaluate, Run,
Compile, Check, Prepare, Invoke and Release procedures with the Connect
protocol and a CBOR codec. The address comes from --addr, then server.addr
in kiln.toml, then ` + defaultAddr + `.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveFlags.handleTTL <= 0 {
			return fmt.Errorf("--handle-ttl must be positive")
		}
		m, e, err := openProject(projectDir, true)
		if err != nil {
			return err
		}
		defer e.Close()

		addr := serveFlags.addr
		if addr == "" && m != nil {
			addr = m.Server.Addr
		}
		if addr == "" {
			addr = defaultAddr
		}

		srv := server.New(e, server.WithHandleTTL(serveFlags.handleTTL, serveFlags.handleTTL/6))
		defer srv.Stop()
		return srv.ListenAndServe(cmd.Context(), addr)
	},
}

var serveFlags struct {
	addr      string
	handleTTL time.Duration
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "listen address (host:port)")
	serveCmd.Flags().DurationVar(&serveFlags.handleTTL, "handle-ttl", 30*time.Minute, "how long an unused prepared entry point lives")
	rootCmd.AddCommand(serveCmd)
}
