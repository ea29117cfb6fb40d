package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/vm"
)

// runRequest represents one program execution waiting for a worker.
type runRequest struct {
	prog *bytecode.Program
	done chan runResult
}

// runResult holds the outcome of a run.
type runResult struct {
	res *vm.Result
	err error
}

// RunPool executes programs on a fixed set of worker goroutines. Runs
// share no state, so the pool only bounds how many execute at once.
type RunPool struct {
	vm       *vm.VM
	requests chan runRequest
	quit     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRunPool creates a RunPool and starts its workers.
func NewRunPool(workers int, machine *vm.VM) *RunPool {
	if workers < 1 {
		workers = 1
	}
	p := &RunPool{
		vm:       machine,
		requests: make(chan runRequest),
		quit:     make(chan struct{}),
	}
	p.wg.Add(workers)
	for range workers {
		go p.loop()
	}
	return p
}

// loop processes run requests until the pool stops.
func (p *RunPool) loop() {
	defer p.wg.Done()
	for {
		select {
		case req := <-p.requests:
			req.done <- p.execute(req.prog)
		case <-p.quit:
			return
		}
	}
}

// execute runs one program, recovering from panics.
func (p *RunPool) execute(prog *bytecode.Program) (result runResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("run panicked: %v", r)
		}
	}()
	result.res, result.err = p.vm.Run(prog)
	return result
}

// Do submits prog and blocks until a worker has run it or ctx ends. A run
// that has started always finishes; ctx only stops the wait.
func (p *RunPool) Do(ctx context.Context, prog *bytecode.Program) (*vm.Result, error) {
	req := runRequest{
		prog: prog,
		done: make(chan runResult, 1),
	}
	select {
	case p.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.quit:
		return nil, errPoolStopped
	}
	select {
	case result := <-req.done:
		return result.res, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the workers and waits for them to exit.
func (p *RunPool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}
