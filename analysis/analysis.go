// Package analysis runs control-flow analysis over whole classes.
//
// An Analyzer builds the graph of every method of a class in parallel,
// condenses each into a MethodSummary and collects them in a Report. A
// method that fails to analyse is recorded in the report with its error
// category; it never aborts the rest of the class.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/jflow/classfile"
	"github.com/chazu/jflow/manifest"
	"github.com/chazu/jflow/pkg/bytecode"
	"github.com/chazu/jflow/pkg/cfg"
	"github.com/chazu/jflow/pkg/instr"
	"github.com/chazu/jflow/store"
)

var log = commonlog.GetLogger("jflow.analysis")

// Cache stores encoded method summaries. *store.Cache implements it.
type Cache interface {
	Get(ctx context.Context, k store.Key) ([]byte, error)
	Put(ctx context.Context, k store.Key, data []byte) error
}

// Options configures an Analyzer.
type Options struct {
	Workers         int  // Methods analysed concurrently; <= 0 means GOMAXPROCS
	EagerStack      bool // Compute block manipulations inside cfg.Build
	SkipUnsupported bool // Report unsupported methods as skipped, not failed
	Cache           Cache
}

// OptionsFrom reads the [analysis] section of a manifest. The cache is
// opened by the caller.
func OptionsFrom(m *manifest.Manifest) Options {
	return Options{
		Workers:         m.Analysis.Workers,
		EagerStack:      m.Analysis.EagerStack,
		SkipUnsupported: m.Analysis.SkipUnsupported,
	}
}

// Analyzer builds method graphs and summarises them.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	return &Analyzer{opts: opts}
}

// Graph builds the control-flow graph of m with the analyzer's options.
func (a *Analyzer) Graph(m *bytecode.Method) (*cfg.Graph, error) {
	return cfg.Build(m, cfg.WithEagerStack(a.opts.EagerStack))
}

// AnalyzeMethod summarises one method. The error is the reason the graph
// could not be built, or the method's code could not be decoded.
func (a *Analyzer) AnalyzeMethod(ctx context.Context, m *bytecode.Method) (*MethodSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.DecodeErr != nil {
		return nil, fmt.Errorf("%s: %w", m.Key(), m.DecodeErr)
	}
	key, err := cacheKey(m)
	if err != nil {
		return nil, err
	}
	if a.opts.Cache != nil {
		if s, ok := a.cached(ctx, key); ok {
			return s, nil
		}
	}

	g, err := a.Graph(m)
	if err != nil {
		return nil, err
	}
	s, err := summarize(g)
	if err != nil {
		return nil, err
	}

	if a.opts.Cache != nil {
		a.store(ctx, key, s)
	}
	return s, nil
}

func (a *Analyzer) cached(ctx context.Context, key store.Key) (*MethodSummary, bool) {
	data, err := a.opts.Cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Warningf("cache lookup for %s: %s", key, err)
		}
		return nil, false
	}
	s, err := unmarshalSummary(data)
	if err != nil {
		log.Warningf("ignoring cached %s: %s", key, err)
		return nil, false
	}
	s.Cached = true
	return s, true
}

func (a *Analyzer) store(ctx context.Context, key store.Key, s *MethodSummary) {
	data, err := marshalSummary(s)
	if err == nil {
		err = a.opts.Cache.Put(ctx, key, data)
	}
	if err != nil {
		log.Warningf("caching %s: %s", key, err)
	}
}

// AnalyzeClass analyses every method of cf that has code.
func (a *Analyzer) AnalyzeClass(ctx context.Context, cf *classfile.ClassFile) (*Report, error) {
	return a.AnalyzeMethods(ctx, cf.Name, cf.Methods)
}

// AnalyzeMethods analyses methods in parallel and returns their summaries in
// input order. The error is non-nil only when ctx is cancelled.
func (a *Analyzer) AnalyzeMethods(ctx context.Context, class string, methods []*bytecode.Method) (*Report, error) {
	r := &Report{RunID: uuid.New().String(), Class: class}

	var todo []*bytecode.Method
	for _, m := range methods {
		if !m.HasCode() {
			log.Debugf("%s: no code", m.Key())
			continue
		}
		todo = append(todo, m)
	}
	r.Methods = make([]MethodSummary, len(todo))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, m := range todo {
		g.Go(func() error {
			s, err := a.AnalyzeMethod(gctx, m)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				s = a.failure(m, err)
			}
			r.Methods[i] = *s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", class, err)
	}

	cached := 0
	for _, s := range r.Methods {
		switch {
		case s.Skipped:
			r.Skipped++
		case !s.OK():
			r.Failed++
		}
		if s.Cached {
			cached++
		}
	}
	log.Infof("run %s: %s: %d methods, %d failed, %d skipped, %d cached",
		r.RunID, class, len(r.Methods), r.Failed, r.Skipped, cached)
	return r, nil
}

// failure records why m could not be analysed.
func (a *Analyzer) failure(m *bytecode.Method, err error) *MethodSummary {
	s := &MethodSummary{
		Class:        m.ClassName,
		Name:         m.Name,
		Descriptor:   m.Descriptor,
		Instructions: len(m.Instructions),
		Error:        err.Error(),
		Category:     bytecode.Category(err),
	}
	if a.opts.SkipUnsupported && errors.Is(err, bytecode.ErrUnsupported) {
		s.Skipped = true
		log.Warningf("skipping %s: %s", m.Key(), err)
		return s
	}
	log.Errorf("%s", err)
	return s
}

// summarize condenses a graph. Lazily computed block manipulations are
// forced here, so their errors fail the method.
func summarize(g *cfg.Graph) (*MethodSummary, error) {
	m := g.Method()
	s := &MethodSummary{
		Class:        m.ClassName,
		Name:         m.Name,
		Descriptor:   m.Descriptor,
		Instructions: g.InstructionCount(),
		Handlers:     g.HandlerEntries(),
		Unreachable:  g.Unreachable(),
	}
	for _, b := range g.Blocks() {
		bm, err := b.Manipulation()
		if err != nil {
			return nil, err
		}
		succ, err := g.Successors(b.Entry())
		if err != nil {
			return nil, err
		}
		s.Blocks = append(s.Blocks, BlockSummary{
			Entry:       b.Entry(),
			Len:         b.Len(),
			StartOffset: b.StartOffset(),
			EndOffset:   b.EndOffset(),
			Successors:  succ,
			Transitions: bm.Len(),
		})
	}
	for _, in := range g.Instructions() {
		if !in.IsShapeGeneric() {
			continue
		}
		shape, _ := instr.ShapeOf(in.Opcode)
		s.Shapes = append(s.Shapes, ShapeSummary{
			Index:  in.Index,
			Opcode: in.Opcode.String(),
			Before: shape.ComputeMinimalBefore().String(),
			After:  shape.ComputeMinimalAfter().String(),
		})
	}
	return s, nil
}

// cacheKey identifies m by its canonical CBOR encoding, which changes
// whenever its code, handlers or debug tables do.
func cacheKey(m *bytecode.Method) (store.Key, error) {
	data, err := cborEncMode.Marshal(struct {
		Instructions   []bytecode.RawInstruction
		ExceptionTable []bytecode.ExceptionHandler
		LocalVariables []bytecode.LocalVariable
		MaxLocals      int
		AccessFlags    uint16
	}{m.Instructions, m.ExceptionTable, m.LocalVariables, m.MaxLocals, m.AccessFlags})
	if err != nil {
		return store.Key{}, fmt.Errorf("analysis: hashing %s: %w", m.Key(), err)
	}
	return store.Key{
		Class:      m.ClassName,
		Method:     m.Name,
		Descriptor: m.Descriptor,
		CodeHash:   store.HashCode(data),
	}, nil
}
