package server

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/kiln/hotload"
	"github.com/chazu/kiln/vm"
)

// Procedure paths of the evaluation service.
const (
	ServiceName         = "kiln.v1.EvalService"
	EvaluateProcedure   = "/" + ServiceName + "/Evaluate"
	RunProcedure        = "/" + ServiceName + "/Run"
	CompileProcedure    = "/" + ServiceName + "/Compile"
	CheckProcedure      = "/" + ServiceName + "/Check"
	PrepareProcedure    = "/" + ServiceName + "/Prepare"
	InvokeProcedure     = "/" + ServiceName + "/Invoke"
	ReleaseProcedure    = "/" + ServiceName + "/Release"
	signalClassMetadata = "Kiln-Signal-Class"
)

// EvalService implements the evaluation service over one engine.
type EvalService struct {
	engine  *hotload.Engine
	handles *HandleStore
	log     commonlog.Logger
}

// NewEvalService creates an EvalService.
func NewEvalService(engine *hotload.Engine, handles *HandleStore) *EvalService {
	return &EvalService{
		engine:  engine,
		handles: handles,
		log:     commonlog.GetLogger("kiln.server"),
	}
}

// Evaluate compiles and invokes an expression or script.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[EvaluateRequest],
) (*connect.Response[EvaluateResponse], error) {
	msg := req.Msg
	if strings.TrimSpace(msg.Source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	entry, err := s.prepare(msg.Source, msg.Kind, msg.Signature)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	return s.invoke(entry, msg.Args)
}

// Run executes statements for their effects.
func (s *EvalService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	if strings.TrimSpace(req.Msg.Source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	if err := s.engine.Run(req.Msg.Source); err != nil {
		return nil, s.toConnectError(err)
	}
	return connect.NewResponse(&RunResponse{}), nil
}

// Compile compiles a set of units and, when asked, defines their classes.
// A failed round is an error; warnings of a successful one come back in
// the response.
func (s *EvalService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	sources := req.Msg.Sources
	if len(sources) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("sources are required"))
	}

	// Warnings of a successful round are not part of its result, so a dry
	// run collects them first.
	diags, err := s.engine.Check(sources)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	if len(hotload.Errors(diags)) > 0 {
		return nil, s.toConnectError(&hotload.CompilationFailure{Diagnostics: diags})
	}

	var units []string
	if req.Msg.Load {
		classes, err := s.engine.CompileAndLoad(sources)
		if err != nil {
			return nil, s.toConnectError(err)
		}
		for name := range classes {
			units = append(units, name)
		}
	} else {
		arts, err := s.engine.CompileContext(ctx, sources)
		if err != nil {
			return nil, s.toConnectError(err)
		}
		for name := range arts {
			units = append(units, name)
		}
	}
	sort.Strings(units)

	return connect.NewResponse(&CompileResponse{
		Units:       units,
		Diagnostics: s.diagnostics(diags),
	}), nil
}

// Check compiles units for their diagnostics only.
func (s *EvalService) Check(
	ctx context.Context,
	req *connect.Request[CheckRequest],
) (*connect.Response[CheckResponse], error) {
	if len(req.Msg.Sources) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("sources are required"))
	}
	diags, err := s.engine.Check(req.Msg.Sources)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	resp := &CheckResponse{
		Valid:       len(hotload.Errors(diags)) == 0,
		Diagnostics: s.diagnostics(diags),
	}
	if len(diags) > 0 {
		resp.Summary = s.engine.Printer().Summary(diags)
	}
	return connect.NewResponse(resp), nil
}

// Prepare compiles an entry point and keeps it under a handle.
func (s *EvalService) Prepare(
	ctx context.Context,
	req *connect.Request[PrepareRequest],
) (*connect.Response[PrepareResponse], error) {
	msg := req.Msg
	if strings.TrimSpace(msg.Source) == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	entry, err := s.prepare(msg.Source, msg.Kind, msg.Signature)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	id := s.handles.Create(entry)
	s.log.Debugf("prepared %s as %s", entry, id)
	return connect.NewResponse(&PrepareResponse{
		Handle:   id,
		Selector: entry.Selector(),
		NumArgs:  entry.NumArgs(),
	}), nil
}

// Invoke runs a prepared entry point.
func (s *EvalService) Invoke(
	ctx context.Context,
	req *connect.Request[InvokeRequest],
) (*connect.Response[EvaluateResponse], error) {
	entry, ok := s.handles.Lookup(req.Msg.Handle)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("handle %q not found", req.Msg.Handle))
	}
	return s.invoke(entry, req.Msg.Args)
}

// Release drops a prepared entry point.
func (s *EvalService) Release(
	ctx context.Context,
	req *connect.Request[ReleaseRequest],
) (*connect.Response[ReleaseResponse], error) {
	return connect.NewResponse(&ReleaseResponse{Released: s.handles.Release(req.Msg.Handle)}), nil
}

func (s *EvalService) prepare(source, kind string, spec SignatureSpec) (*hotload.EntryPoint, error) {
	sig := spec.Signature()
	switch kind {
	case "", KindExpression:
		return s.engine.CompileExpression(sig, source)
	case KindScript:
		return s.engine.CompileMethod(sig, source)
	}
	return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("unknown body kind %q", kind))
}

func (s *EvalService) invoke(entry *hotload.EntryPoint, args []any) (*connect.Response[EvaluateResponse], error) {
	if len(args) != entry.NumArgs() {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("%s takes %d arguments, got %d", entry, entry.NumArgs(), len(args)))
	}
	result, err := entry.Invoke(args...)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	return connect.NewResponse(s.result(result)), nil
}

func (s *EvalService) result(v any) *EvaluateResponse {
	return &EvaluateResponse{
		Value:   wireValue(v),
		Display: vm.PrintString(fromGo(v)),
		Class:   s.engine.Runtime().ClassOf(fromGo(v)).Name,
	}
}

func (s *EvalService) diagnostics(diags []hotload.Diagnostic) []DiagnosticMsg {
	if len(diags) == 0 {
		return nil
	}
	printer := s.engine.Printer()
	out := make([]DiagnosticMsg, len(diags))
	for i, d := range diags {
		out[i] = DiagnosticMsg{
			Severity: d.Severity.String(),
			Unit:     d.Unit,
			Line:     d.Line,
			Column:   d.Column,
			Message:  d.Message,
			Text:     printer.Format(d),
		}
	}
	return out
}

// toConnectError maps engine failures onto connect codes. Compile
// failures carry every localized diagnostic in the message.
func (s *EvalService) toConnectError(err error) error {
	var cerr *connect.Error
	if errors.As(err, &cerr) {
		return cerr
	}

	var (
		compile  *hotload.CompilationFailure
		invoke   *hotload.InvocationFailure
		notFound *hotload.NameNotFoundError
		missing  *hotload.MissingArtifactError
	)
	switch {
	case errors.As(err, &compile):
		printer := s.engine.Printer()
		text := printer.Summary(compile.Diagnostics)
		if all := printer.FormatAll(compile.Diagnostics); all != "" {
			text += "\n" + all
		}
		return connect.NewError(connect.CodeInvalidArgument, errors.New(strings.TrimRight(text, "\n")))
	case errors.Is(err, hotload.ErrInvalidSignature):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.As(err, &invoke):
		sig, ok := invoke.Signal()
		if !ok {
			return connect.NewError(connect.CodeAborted, err)
		}
		ce := connect.NewError(connect.CodeAborted, fmt.Errorf("%s: %s", sig.Class().Name, sig.MessageText()))
		ce.Meta().Set(signalClassMetadata, sig.Class().Name)
		return ce
	case errors.As(err, &notFound), errors.As(err, &missing):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, hotload.ErrAbandoned), errors.Is(err, hotload.ErrBackendUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}
	s.log.Errorf("internal error: %v", err)
	return connect.NewError(connect.CodeInternal, err)
}

// fromGo undoes the []any conversion of array results.
func fromGo(v any) vm.Value {
	if v == nil {
		return nil
	}
	val, err := vm.FromGo(v)
	if err != nil {
		return v
	}
	return val
}

// wireValue keeps the results CBOR can carry as themselves and drops the
// rest; Display always describes them.
func wireValue(v any) any {
	switch x := v.(type) {
	case nil, bool, int64, float64, string:
		return x
	case vm.Symbol:
		return string(x)
	case vm.Character:
		return string(rune(x))
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = wireValue(e)
		}
		return out
	}
	return nil
}
