package server

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	"connectrpc.com/connect"
	"github.com/oklog/ulid/v2"

	"github.com/chazu/subpy/compiler"
	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/store"
)

// Procedure paths of the compiler service.
const (
	CompilerServiceName    = "subpy.v1.CompilerService"
	CompileProcedure       = "/" + CompilerServiceName + "/Compile"
	RunProcedure           = "/" + CompilerServiceName + "/Run"
	CompilerServicePattern = "/" + CompilerServiceName + "/"
)

// CompileRequest carries a syntax tree as JSON.
type CompileRequest struct {
	Tree json.RawMessage `json:"tree"`
}

// CompileResponse describes a compiled program.
type CompileResponse struct {
	Fingerprint  string                 `json:"fingerprint"`
	Disassembly  string                 `json:"disassembly"`
	Instructions []bytecode.Instruction `json:"instructions"`
	// Program is the wire encoding, accepted back by Run.
	Program []byte `json:"program"`
	Cached  bool   `json:"cached,omitempty"`
}

// RunRequest carries either a syntax tree or an encoded program.
type RunRequest struct {
	Tree    json.RawMessage `json:"tree,omitempty"`
	Program []byte          `json:"program,omitempty"`
}

// RunResponse reports a finished run.
type RunResponse struct {
	RunID  string   `json:"run_id"`
	Output []string `json:"output"`
	Stack  []string `json:"stack"`
	Steps  int      `json:"steps"`
}

// CompilerService implements the Compile and Run procedures.
type CompilerService struct {
	cfg   compiler.Config
	pool  *RunPool
	cache *store.Store
}

// NewCompilerService creates the service. cache may be nil.
func NewCompilerService(cfg compiler.Config, pool *RunPool, cache *store.Store) *CompilerService {
	return &CompilerService{cfg: cfg, pool: pool, cache: cache}
}

// compile returns the program for tree, consulting the cache when present.
func (s *CompilerService) compile(tree []byte) (*bytecode.Program, bool, error) {
	if len(tree) == 0 {
		return nil, false, connect.NewError(connect.CodeInvalidArgument, errEmptyTree)
	}

	var key uint64
	if s.cache != nil {
		key = store.Key(tree, s.cfg)
		p, ok, err := s.cache.Get(key)
		if err != nil {
			log.Warningf("cache read failed: %s", err)
		} else if ok {
			return p, true, nil
		}
	}

	p, err := compiler.CompileBytes(tree, s.cfg)
	if err != nil {
		return nil, false, toConnectError(err)
	}

	if s.cache != nil {
		if err := s.cache.Put(key, p); err != nil {
			log.Warningf("cache write failed: %s", err)
		}
	}
	return p, false, nil
}

// Compile lowers a tree and returns its listing and encoding.
func (s *CompilerService) Compile(
	ctx context.Context,
	req *connect.Request[CompileRequest],
) (*connect.Response[CompileResponse], error) {
	p, cached, err := s.compile(req.Msg.Tree)
	if err != nil {
		return nil, err
	}

	fp, err := bytecode.Fingerprint(p)
	if err != nil {
		return nil, toConnectError(err)
	}
	blob, err := bytecode.Marshal(p)
	if err != nil {
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CompileResponse{
		Fingerprint:  strconv.FormatUint(fp, 16),
		Disassembly:  p.Disassemble(),
		Instructions: p.Instructions(),
		Program:      blob,
		Cached:       cached,
	}), nil
}

// Run compiles the tree, or decodes the program, and executes it.
func (s *CompilerService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[RunResponse], error) {
	var (
		p   *bytecode.Program
		err error
	)
	if len(req.Msg.Program) > 0 {
		if p, err = bytecode.Unmarshal(req.Msg.Program); err != nil {
			return nil, toConnectError(err)
		}
	} else if p, _, err = s.compile(req.Msg.Tree); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	log.Debugf("run %s: %d instruction(s)", id, p.Len())

	res, err := s.pool.Do(ctx, p)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, connect.FromContextError(ctxErr)
		}
		if errors.Is(err, errPoolStopped) {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		log.Debugf("run %s failed: %s", id, err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&RunResponse{
		RunID:  id,
		Output: formatValues(res.Output),
		Stack:  formatValues(res.Stack),
		Steps:  res.Steps,
	}), nil
}

func formatValues(vs []bytecode.Value) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out
}
