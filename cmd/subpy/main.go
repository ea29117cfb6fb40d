// subpy compiles an annotated Python syntax tree to bytecode and runs it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joomcode/errorx"
	"github.com/rs/zerolog"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"github.com/chazu/subpy/compiler"
	"github.com/chazu/subpy/manifest"
	"github.com/chazu/subpy/pkg/bytecode"
	"github.com/chazu/subpy/server"
	"github.com/chazu/subpy/store"
	"github.com/chazu/subpy/vm"
)

// ProgramExt marks a file holding an encoded program rather than a tree.
const ProgramExt = ".spc"

var log = commonlog.GetLogger("subpy")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	config  string
	dump    bool
	out     string
	run     bool
	trace   bool
	verbose int
	cache   string
	serve   bool
	addr    string
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("subpy", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.config, "config", "", "Path to subpy.toml or its directory (default: search upward)")
	fs.BoolVar(&o.dump, "dump", false, "Print the disassembly")
	fs.StringVar(&o.out, "o", "", "Write the encoded program to this file")
	fs.BoolVar(&o.run, "run", true, "Execute the program")
	fs.BoolVar(&o.trace, "trace", false, "Log every executed instruction to stderr")
	fs.IntVar(&o.verbose, "v", 0, "Log verbosity")
	fs.StringVar(&o.cache, "cache", "", "SQLite database caching compiled programs")
	fs.BoolVar(&o.serve, "serve", false, "Serve the compile/run service instead of running a file")
	fs.StringVar(&o.addr, "addr", "", "Service address (used with -serve)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: subpy [options] <tree.yaml|tree.json|program%s>\n\n", ProgramExt)
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  subpy prog.yaml                 # compile and run\n")
		fmt.Fprintf(stderr, "  subpy -dump -run=false prog.yaml\n")
		fmt.Fprintf(stderr, "  subpy -o prog%s prog.yaml      # save the program\n", ProgramExt)
		fmt.Fprintf(stderr, "  subpy -serve -addr :8421\n")
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	commonlog.Configure(o.verbose, nil)

	if err := execute(o, fs.Args(), stdout, stderr); err != nil {
		report(stderr, err)
		return 1
	}
	return 0
}

func execute(o options, paths []string, stdout, stderr io.Writer) error {
	start := "."
	if len(paths) > 0 {
		start = filepath.Dir(paths[0])
	}
	m, err := loadManifest(o.config, start)
	if err != nil {
		return err
	}

	cachePath := o.cache
	if cachePath == "" {
		cachePath = m.CachePath()
	}
	var cache *store.Store
	if cachePath != "" {
		if cache, err = store.Open(cachePath); err != nil {
			return err
		}
		defer cache.Close()
	}

	if o.serve {
		return serve(o, m, cache)
	}

	if len(paths) != 1 {
		return errors.New("expected exactly one input file")
	}

	p, err := load(paths[0], m.CompilerConfig(), cache)
	if err != nil {
		return err
	}

	if o.dump {
		fmt.Fprint(stdout, p.DisassembleWithName(filepath.Base(paths[0])))
	}

	if o.out != "" {
		data, err := bytecode.Marshal(p)
		if err != nil {
			return err
		}
		if err := os.WriteFile(o.out, data, 0o644); err != nil {
			return fmt.Errorf("write program: %w", err)
		}
		log.Infof("wrote %s (%d bytes)", o.out, len(data))
	}

	if !o.run {
		return nil
	}

	vmOpts := []vm.Option{
		vm.WithOutput(stdout),
		vm.WithStepLimit(m.VM.StepLimit),
	}
	if o.trace || m.VM.Trace {
		// Trace events are filtered by the global level as well as the
		// logger's own, so lower it for this run only.
		prev := zerolog.GlobalLevel()
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
		defer zerolog.SetGlobalLevel(prev)
		logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, NoColor: !isTerminal(stderr)}).
			Level(zerolog.TraceLevel).
			With().Timestamp().Logger()
		vmOpts = append(vmOpts, vm.WithTrace(logger))
	}

	res, err := vm.New(vmOpts...).Run(p)
	if err != nil {
		return err
	}
	log.Debugf("executed %d instruction(s), %d value(s) left on the stack", res.Steps, len(res.Stack))
	return nil
}

// loadManifest reads an explicit config, or searches upward from start.
func loadManifest(config, start string) (*manifest.Manifest, error) {
	if config != "" {
		dir := config
		if filepath.Base(config) == manifest.FileName {
			dir = filepath.Dir(config)
		}
		return manifest.Load(dir)
	}
	m, err := manifest.FindAndLoad(start)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(), nil
	}
	log.Debugf("using %s", filepath.Join(m.Dir, manifest.FileName))
	return m, nil
}

// load decodes an encoded program, or compiles a tree through the cache.
func load(path string, cfg compiler.Config, cache *store.Store) (*bytecode.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ProgramExt) {
		p, err := bytecode.Unmarshal(data)
		if err != nil {
			return nil, errorx.Decorate(err, "%s", path)
		}
		return p, nil
	}

	var key uint64
	if cache != nil {
		key = store.Key(data, cfg)
		if p, ok, err := cache.Get(key); err != nil {
			log.Warningf("cache: %s", err)
		} else if ok {
			log.Debugf("cache hit for %s", path)
			return p, nil
		}
	}

	p, err := compiler.CompileBytes(data, cfg)
	if err != nil {
		return nil, errorx.Decorate(err, "%s", path)
	}
	if cache != nil {
		if err := cache.Put(key, p); err != nil {
			log.Warningf("cache: %s", err)
		}
	}
	return p, nil
}

func serve(o options, m *manifest.Manifest, cache *store.Store) error {
	addr := o.addr
	if addr == "" {
		addr = m.Server.Addr
	}

	var opts []server.Option
	if cache != nil {
		opts = append(opts, server.WithStore(cache))
	}
	s := server.New(server.Config{
		Compiler:  m.CompilerConfig(),
		Workers:   m.Server.Workers,
		StepLimit: m.VM.StepLimit,
	}, opts...)
	defer s.Stop()
	return s.ListenAndServe(addr)
}

// report prints err with its stage and error kind.
func report(w io.Writer, err error) {
	prefix := "error"
	if stage := compiler.Stage(err); stage != compiler.StageUnknown {
		prefix = stage.String() + " error"
	}
	if name := errorx.GetTypeName(err); name != "" {
		prefix += " [" + name + "]"
	}
	if isTerminal(w) {
		prefix = "\x1b[1;31m" + prefix + "\x1b[0m"
	}
	fmt.Fprintf(w, "subpy: %s: %v\n", prefix, err)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
