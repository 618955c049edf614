package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/jflow/analysis"
	"github.com/chazu/jflow/classfile"
	"github.com/chazu/jflow/manifest"
	"github.com/chazu/jflow/server"
	"github.com/chazu/jflow/store"
)

var log = commonlog.GetLogger("jflow")

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitFailed = 2 // Some methods could not be analysed
	exitUsage  = 64
)

type options struct {
	verbose         int
	verboseSet      bool
	disassemble     bool
	output          string
	serve           bool
	addr            string
	remote          string
	cache           bool
	workers         int
	eagerStack      bool
	skipUnsupported bool
	dir             string
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	var o options
	fs := flag.NewFlagSet("jflow", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.IntVar(&o.verbose, "v", 0, "Log verbosity (0-4)")
	fs.BoolVar(&o.disassemble, "d", false, "Print the disassembly of every method")
	fs.StringVar(&o.output, "o", "", "Write reports to `file` as a CBOR sequence")
	fs.BoolVar(&o.serve, "serve", false, "Start the analysis server (Connect, CBOR)")
	fs.StringVar(&o.addr, "addr", "", "Server address (default from jflow.toml)")
	fs.StringVar(&o.remote, "remote", "", "Analyse on a running server at `url` instead of locally")
	fs.BoolVar(&o.cache, "cache", false, "Cache method summaries (also [cache] enabled)")
	fs.IntVar(&o.workers, "workers", 0, "Methods analysed in parallel (default from jflow.toml)")
	fs.BoolVar(&o.eagerStack, "eager-stack", false, "Compute block stack effects while building graphs")
	fs.BoolVar(&o.skipUnsupported, "skip-unsupported", false, "Report methods using jsr/ret as skipped")
	fs.StringVar(&o.dir, "C", ".", "Look for jflow.toml starting in `dir`")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: jflow [options] [file.class...]\n\n")
		fmt.Fprintf(stderr, "Builds the control-flow graph of every method in the given classes.\n")
		fmt.Fprintf(stderr, "Without arguments, analyses the class files under the source dirs of jflow.toml.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  jflow Foo.class                # Print the graphs of Foo's methods\n")
		fmt.Fprintf(stderr, "  jflow -d -o out.cbor           # Analyse the project, write reports\n")
		fmt.Fprintf(stderr, "  jflow -serve -addr :8765       # Start the analysis server\n")
		fmt.Fprintf(stderr, "  jflow -remote http://host:8765 Foo.class\n")
	}
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "v" {
			o.verboseSet = true
		}
	})
	return &o, fs.Args(), nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, files, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}

	m, err := manifest.FindAndLoad(o.dir)
	if err != nil {
		commonlog.Configure(o.verbose, nil)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}
	if m == nil {
		dir, _ := filepath.Abs(o.dir)
		m = manifest.Default(dir)
	}
	applyOverrides(m, o)
	commonlog.Configure(m.Analysis.Verbosity, nil)

	opts := analysis.OptionsFrom(m)
	if m.Cache.Enabled && o.remote == "" {
		cache, err := openCache(m.CachePath())
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		defer cache.Close()
		opts.Cache = cache
	}
	analyzer := analysis.New(opts)

	if o.serve {
		return serve(ctx, analyzer, m.Server.Address, stderr)
	}

	if len(files) == 0 {
		files, err = m.ClassFiles()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		if len(files) == 0 {
			fmt.Fprintf(stderr, "No class files found under %v\n", m.SourceDirPaths())
			return exitError
		}
	}

	var analyze func(ctx context.Context, path string, data []byte) (*analysis.Report, error)
	if o.remote != "" {
		client := server.NewClient(http.DefaultClient, o.remote)
		analyze = func(ctx context.Context, path string, data []byte) (*analysis.Report, error) {
			return client.AnalyzeClass(ctx, path, data)
		}
	} else {
		analyze = func(ctx context.Context, path string, data []byte) (*analysis.Report, error) {
			cf, err := classfile.Parse(data)
			if err != nil {
				return nil, err
			}
			if o.disassemble {
				printDisassembly(stdout, cf)
			}
			return analyzer.AnalyzeClass(ctx, cf)
		}
	}

	code := exitOK
	var reports []*analysis.Report
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			code = exitError
			continue
		}
		r, err := analyze(ctx, path, data)
		if err != nil {
			if ctx.Err() != nil {
				fmt.Fprintf(stderr, "Interrupted\n")
				return exitError
			}
			fmt.Fprintf(stderr, "Error: %s: %v\n", path, err)
			code = exitError
			continue
		}
		if err := r.WriteText(stdout); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		fmt.Fprintln(stdout)
		if r.Failed > 0 && code == exitOK {
			code = exitFailed
		}
		reports = append(reports, r)
	}

	if o.output != "" {
		if err := writeReports(o.output, reports); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}
		log.Infof("wrote %d reports to %s", len(reports), o.output)
	}
	return code
}

// applyOverrides lets flags that were set win over the manifest.
func applyOverrides(m *manifest.Manifest, o *options) {
	if o.workers > 0 {
		m.Analysis.Workers = o.workers
	}
	if o.eagerStack {
		m.Analysis.EagerStack = true
	}
	if o.skipUnsupported {
		m.Analysis.SkipUnsupported = true
	}
	if o.cache {
		m.Cache.Enabled = true
	}
	if o.addr != "" {
		m.Server.Address = o.addr
	}
	if o.verboseSet {
		m.Analysis.Verbosity = o.verbose
	}
}

func openCache(path string) (*store.Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("cannot create cache directory: %w", err)
	}
	return store.Open(path)
}

func printDisassembly(w io.Writer, cf *classfile.ClassFile) {
	fmt.Fprintf(w, "// class %s extends %s\n", cf.Name, cf.SuperName)
	for _, m := range cf.Methods {
		if !m.HasCode() {
			continue
		}
		fmt.Fprintln(w, m.Disassemble())
	}
}

func writeReports(path string, reports []*analysis.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := analysis.WriteReports(f, reports); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func serve(ctx context.Context, analyzer *analysis.Analyzer, addr string, stderr io.Writer) int {
	srv := server.New(analyzer)
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe(addr) }()

	select {
	case err := <-errc:
		_ = srv.Stop(context.Background())
		if err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return exitError
		}
		return exitOK
	case <-ctx.Done():
		log.Infof("shutting down")
		if err := srv.Stop(context.Background()); err != nil {
			fmt.Fprintf(stderr, "Server error: %v\n", err)
			return exitError
		}
		return exitOK
	}
}
