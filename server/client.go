package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

// Client calls a remote evaluation service.
type Client struct {
	evaluate *connect.Client[EvaluateRequest, EvaluateResponse]
	run      *connect.Client[RunRequest, RunResponse]
	compile  *connect.Client[CompileRequest, CompileResponse]
	check    *connect.Client[CheckRequest, CheckResponse]
	prepare  *connect.Client[PrepareRequest, PrepareResponse]
	invoke   *connect.Client[InvokeRequest, EvaluateResponse]
	release  *connect.Client[ReleaseRequest, ReleaseResponse]
}

// NewClient creates a client for the service at baseURL
// ("http://host:port"). A nil httpClient uses http.DefaultClient.
func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &Client{
		evaluate: connect.NewClient[EvaluateRequest, EvaluateResponse](httpClient, baseURL+EvaluateProcedure, opts...),
		run:      connect.NewClient[RunRequest, RunResponse](httpClient, baseURL+RunProcedure, opts...),
		compile:  connect.NewClient[CompileRequest, CompileResponse](httpClient, baseURL+CompileProcedure, opts...),
		check:    connect.NewClient[CheckRequest, CheckResponse](httpClient, baseURL+CheckProcedure, opts...),
		prepare:  connect.NewClient[PrepareRequest, PrepareResponse](httpClient, baseURL+PrepareProcedure, opts...),
		invoke:   connect.NewClient[InvokeRequest, EvaluateResponse](httpClient, baseURL+InvokeProcedure, opts...),
		release:  connect.NewClient[ReleaseRequest, ReleaseResponse](httpClient, baseURL+ReleaseProcedure, opts...),
	}
}

func (c *Client) Evaluate(ctx context.Context, req *EvaluateRequest) (*EvaluateResponse, error) {
	resp, err := c.evaluate.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	resp.Msg.Value = normalize(resp.Msg.Value)
	return resp.Msg, nil
}

func (c *Client) Run(ctx context.Context, source string) error {
	_, err := c.run.CallUnary(ctx, connect.NewRequest(&RunRequest{Source: source}))
	return err
}

func (c *Client) Compile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	resp, err := c.compile.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Check(ctx context.Context, sources map[string]string) (*CheckResponse, error) {
	resp, err := c.check.CallUnary(ctx, connect.NewRequest(&CheckRequest{Sources: sources}))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Prepare(ctx context.Context, req *PrepareRequest) (*PrepareResponse, error) {
	resp, err := c.prepare.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func (c *Client) Invoke(ctx context.Context, handle string, args ...any) (*EvaluateResponse, error) {
	resp, err := c.invoke.CallUnary(ctx, connect.NewRequest(&InvokeRequest{Handle: handle, Args: args}))
	if err != nil {
		return nil, err
	}
	resp.Msg.Value = normalize(resp.Msg.Value)
	return resp.Msg, nil
}

func (c *Client) Release(ctx context.Context, handle string) (bool, error) {
	resp, err := c.release.CallUnary(ctx, connect.NewRequest(&ReleaseRequest{Handle: handle}))
	if err != nil {
		return false, err
	}
	return resp.Msg.Released, nil
}

// SignalClass returns the exception class of a remote invocation failure.
func SignalClass(err error) (string, bool) {
	var ce *connect.Error
	if !errors.As(err, &ce) {
		return "", false
	}
	cls := ce.Meta().Get(signalClassMetadata)
	return cls, cls != ""
}

// normalize turns the unsigned integers CBOR decodes into any back into
// int64.
func normalize(v any) any {
	switch x := v.(type) {
	case uint64:
		return int64(x)
	case []any:
		for i, e := range x {
			x[i] = normalize(e)
		}
		return x
	}
	return v
}
