package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/kiln/hotload"
)

// KilnServer serves the evaluation service for one engine over HTTP.
type KilnServer struct {
	engine  *hotload.Engine
	handles *HandleStore
	mux     *http.ServeMux
	log     commonlog.Logger

	shutdownTimeout time.Duration
	stopSweeper     func()
}

// ServerOption configures a KilnServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	handleTTL       time.Duration
	sweepInterval   time.Duration
	shutdownTimeout time.Duration
	handlerOptions  []connect.HandlerOption
}

// WithHandleTTL sets how long a prepared entry point survives unused.
func WithHandleTTL(ttl, sweepInterval time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.handleTTL = ttl
		c.sweepInterval = sweepInterval
	}
}

// WithShutdownTimeout bounds how long Serve waits for in-flight requests
// once its context ends.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(c *serverConfig) { c.shutdownTimeout = d }
}

// WithHandlerOptions adds connect options to every procedure handler.
func WithHandlerOptions(opts ...connect.HandlerOption) ServerOption {
	return func(c *serverConfig) { c.handlerOptions = append(c.handlerOptions, opts...) }
}

// New creates a KilnServer over engine.
func New(engine *hotload.Engine, opts ...ServerOption) *KilnServer {
	cfg := &serverConfig{
		handleTTL:       30 * time.Minute,
		sweepInterval:   5 * time.Minute,
		shutdownTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &KilnServer{
		engine:          engine,
		handles:         NewHandleStore(),
		mux:             http.NewServeMux(),
		log:             commonlog.GetLogger("kiln.server"),
		shutdownTimeout: cfg.shutdownTimeout,
	}

	svc := NewEvalService(engine, s.handles)
	hopts := append([]connect.HandlerOption{connect.WithCodec(Codec{})}, cfg.handlerOptions...)
	s.mux.Handle(EvaluateProcedure, connect.NewUnaryHandler(EvaluateProcedure, svc.Evaluate, hopts...))
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run, hopts...))
	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, hopts...))
	s.mux.Handle(CheckProcedure, connect.NewUnaryHandler(CheckProcedure, svc.Check, hopts...))
	s.mux.Handle(PrepareProcedure, connect.NewUnaryHandler(PrepareProcedure, svc.Prepare, hopts...))
	s.mux.Handle(InvokeProcedure, connect.NewUnaryHandler(InvokeProcedure, svc.Invoke, hopts...))
	s.mux.Handle(ReleaseProcedure, connect.NewUnaryHandler(ReleaseProcedure, svc.Release, hopts...))

	s.stopSweeper = s.handles.StartSweeper(cfg.sweepInterval, cfg.handleTTL)

	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *KilnServer) Handler() http.Handler { return s.mux }

// Handles returns the store of prepared entry points.
func (s *KilnServer) Handles() *HandleStore { return s.handles }

// ListenAndServe listens on addr ("host:port" or ":port") and serves until
// ctx ends.
func (s *KilnServer) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends or the listener fails, then shuts the
// HTTP server down gracefully.
func (s *KilnServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Noticef("kiln server listening on %s", ln.Addr())
		s.log.Infof("  evaluate: http://%s%s", ln.Addr(), EvaluateProcedure)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.log.Info("kiln server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Stop releases the server's background work.
func (s *KilnServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
}
