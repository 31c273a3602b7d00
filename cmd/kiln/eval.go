package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/server"
)

var evalCmd = &cobra.Command{
	Use:   "eval EXPR [ARG...]",
	Short: "Evaluate an expression",
	Long: `Evaluate compiles EXPR as the body of a synthesized entry point and invokes
it. Extra arguments are passed to the parameters declared with --param, in
order; numbers and true/false are converted, anything else is a String.

Inside a project the project's classes are loaded first and its namespace
is imported. With --remote the expression is sent to a running kiln serve.`,
	Example: `  kiln eval '3 + 4'
  kiln eval --param x:Integer --returns Integer 'x * x' 12
  kiln eval --script '| s | s := 0. 1 to: 10 do: [:i | s := s + i]. ^s'
  kiln eval --remote http://localhost:4567 'Greeter main'`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := evalRequest(args[0], args[1:])
		if err != nil {
			return err
		}
		if evalFlags.remote != "" {
			return evaluate(cmd.Context(), cmd.OutOrStdout(), server.NewClient(nil, evalFlags.remote), req)
		}
		m, e, err := openProject(projectDir, true)
		if err != nil {
			return err
		}
		defer e.Close()
		req.Signature.Imports = append(req.Signature.Imports, projectImports(m)...)
		return evaluate(cmd.Context(), cmd.OutOrStdout(), newLocalEvaluator(e), req)
	},
}

var evalFlags struct {
	remote  string
	script  bool
	name    string
	returns string
	params  []string
	throws  []string
	imports []string
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalFlags.remote, "remote", "", "URL of a kiln server to evaluate on")
	f.BoolVar(&evalFlags.script, "script", false, "treat EXPR as statements returning with ^")
	f.StringVar(&evalFlags.name, "name", "", "selector of the synthesized entry point")
	f.StringVar(&evalFlags.returns, "returns", "", "declared return type")
	f.StringArrayVar(&evalFlags.params, "param", nil, "parameter as name:Type (repeatable)")
	f.StringSliceVar(&evalFlags.throws, "throws", nil, "declared exception types")
	f.StringSliceVar(&evalFlags.imports, "import", nil, "classes or namespaces to import")
	rootCmd.AddCommand(evalCmd)
}

// evaluator is satisfied by server.Client and by the in-process service.
type evaluator interface {
	Evaluate(ctx context.Context, req *server.EvaluateRequest) (*server.EvaluateResponse, error)
}

type localEvaluator struct {
	svc *server.EvalService
}

func newLocalEvaluator(e *hotload.Engine) *localEvaluator {
	return &localEvaluator{svc: server.NewEvalService(e, server.NewHandleStore())}
}

func (l *localEvaluator) Evaluate(ctx context.Context, req *server.EvaluateRequest) (*server.EvaluateResponse, error) {
	resp, err := l.svc.Evaluate(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func evaluate(ctx context.Context, out io.Writer, ev evaluator, req *server.EvaluateRequest) error {
	resp, err := ev.Evaluate(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, resp.Display)
	return nil
}

func evalRequest(source string, rawArgs []string) (*server.EvaluateRequest, error) {
	sig := server.SignatureSpec{
		Name:    evalFlags.name,
		Returns: evalFlags.returns,
		Throws:  evalFlags.throws,
		Imports: evalFlags.imports,
	}
	for _, p := range evalFlags.params {
		spec, err := parseParam(p)
		if err != nil {
			return nil, err
		}
		sig.Params = append(sig.Params, spec)
	}
	if len(rawArgs) != len(sig.Params) {
		return nil, fmt.Errorf("%d arguments given for %d parameters", len(rawArgs), len(sig.Params))
	}
	req := &server.EvaluateRequest{Source: source, Signature: sig, Kind: server.KindExpression}
	if evalFlags.script {
		req.Kind = server.KindScript
	}
	for _, a := range rawArgs {
		req.Args = append(req.Args, parseArg(a))
	}
	return req, nil
}

// parseParam reads "name:Type" or a bare "name".
func parseParam(s string) (server.ParamSpec, error) {
	name, typ, _ := strings.Cut(s, ":")
	if name == "" {
		return server.ParamSpec{}, fmt.Errorf("invalid parameter %q: want name:Type", s)
	}
	return server.ParamSpec{Name: name, Type: typ}, nil
}

// parseArg converts a command-line argument to the closest runtime value.
func parseArg(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	case "nil":
		return nil
	}
	return s
}
