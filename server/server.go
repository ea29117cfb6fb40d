// Package server exposes the compiler and VM as a Connect service over
// HTTP/JSON.
package server

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"

	"github.com/chazu/subpy/compiler"
	"github.com/chazu/subpy/store"
	"github.com/chazu/subpy/vm"
)

var log = commonlog.GetLogger("subpy.server")

// DefaultStepLimit bounds runs when Config.StepLimit is zero. A worker
// cannot be interrupted mid-run, so the server never runs unbounded.
const DefaultStepLimit = 10_000_000

// Config holds what the server needs to compile and run programs.
type Config struct {
	Compiler  compiler.Config
	Workers   int
	StepLimit int // zero selects DefaultStepLimit
}

// Server serves CompilerService.
type Server struct {
	pool      *RunPool
	mux       *http.ServeMux
	stepLimit int
}

// Option configures a Server.
type Option func(*options)

type options struct {
	cache *store.Store
}

// WithStore caches compiled programs in st. The server does not close it.
func WithStore(st *store.Store) Option {
	return func(o *options) { o.cache = st }
}

// New creates a Server and starts its run pool.
func New(cfg Config, opts ...Option) *Server {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	limit := cfg.StepLimit
	if limit <= 0 {
		limit = DefaultStepLimit
	}
	machine := vm.New(vm.WithStepLimit(limit))
	s := &Server{
		pool:      NewRunPool(cfg.Workers, machine),
		mux:       http.NewServeMux(),
		stepLimit: limit,
	}

	svc := NewCompilerService(cfg.Compiler.Clone(), s.pool, o.cache)
	codec := connect.WithCodec(jsonCodec{})
	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, codec))
	s.mux.Handle(RunProcedure, connect.NewUnaryHandler(RunProcedure, svc.Run, codec))
	return s
}

// Handler returns the HTTP handler serving every procedure.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr, in "host:port" or ":port" form.
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("listening on %s", addr)
	log.Infof("compile: http://%s%s", addr, CompileProcedure)
	log.Infof("run:     http://%s%s", addr, RunProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// Stop shuts down the run pool. In-flight runs finish first.
func (s *Server) Stop() {
	s.pool.Stop()
}
