package server

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/vm"
)

func builtinProgram(t *testing.T, name string, args ...int64) *bytecode.Program {
	t.Helper()
	b := bytecode.NewBuilder()
	for _, a := range args {
		b.EmitLiteral(bytecode.Int(a))
	}
	b.EmitBuiltin(name, len(args))
	p, err := b.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return p
}

func TestRunPoolConcurrentRuns(t *testing.T) {
	double := func(args []bytecode.Value) (bytecode.Value, bool, error) {
		return bytecode.Int(2 * args[0].I), true, nil
	}
	pool := NewRunPool(4, vm.New(vm.WithBuiltin("double", double)))
	defer pool.Stop()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Add(1)
		go func(n int64) {
			defer wg.Done()
			res, err := pool.Do(context.Background(), builtinProgram(t, "double", n))
			if err != nil {
				errs <- err
				return
			}
			if top, _ := res.Top(); top.I != 2*n {
				errs <- errors.New("wrong result for " + top.String())
			}
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestRunPoolRecoversPanics(t *testing.T) {
	boom := func([]bytecode.Value) (bytecode.Value, bool, error) { panic("boom") }
	pool := NewRunPool(1, vm.New(vm.WithBuiltin("boom", boom)))
	defer pool.Stop()

	_, err := pool.Do(context.Background(), builtinProgram(t, "boom"))
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("err = %v, want a recovered panic", err)
	}

	// The worker survives.
	res, err := pool.Do(context.Background(), builtinProgram(t, "halt"))
	if err != nil {
		t.Fatalf("Do after panic: %v", err)
	}
	if res.Steps != 1 {
		t.Errorf("steps = %d, want 1", res.Steps)
	}
}

func TestRunPoolContextCancel(t *testing.T) {
	release := make(chan struct{})
	block := func([]bytecode.Value) (bytecode.Value, bool, error) {
		<-release
		return bytecode.Value{}, false, nil
	}
	pool := NewRunPool(1, vm.New(vm.WithBuiltin("block", block)))
	defer pool.Stop()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := pool.Do(ctx, builtinProgram(t, "block"))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRunPoolStopped(t *testing.T) {
	pool := NewRunPool(1, vm.New())
	pool.Stop()
	pool.Stop()

	_, err := pool.Do(context.Background(), builtinProgram(t, "halt"))
	if !errors.Is(err, errPoolStopped) {
		t.Fatalf("err = %v, want errPoolStopped", err)
	}
}
