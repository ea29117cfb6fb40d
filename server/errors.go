package server

import (
	"errors"

	"connectrpc.com/connect"
	"github.com/joomcode/errorx"

	"github.com/chazu/subpy/compiler"
)

var (
	errPoolStopped = errors.New("run pool stopped")
	errEmptyTree   = errors.New("request carries no syntax tree")
)

// Response metadata keys attached to every error.
const (
	StageHeader     = "Subpy-Stage"
	ErrorTypeHeader = "Subpy-Error-Type"
)

// toConnectError maps a pipeline error to a Connect status: problems in
// the submitted program are InvalidArgument, runtime faults are Aborted,
// and anything else is Internal.
func toConnectError(err error) *connect.Error {
	stage := compiler.Stage(err)

	code := connect.CodeInternal
	switch {
	case stage == compiler.StageInput || stage.Static():
		code = connect.CodeInvalidArgument
	case stage == compiler.StageRuntime:
		code = connect.CodeAborted
	}

	ce := connect.NewError(code, err)
	ce.Meta().Set(StageHeader, stage.String())
	if name := errorx.GetTypeName(err); name != "" {
		ce.Meta().Set(ErrorTypeHeader, name)
	}
	return ce
}
