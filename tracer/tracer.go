// Package tracer implements the dependency tracer (component C10) and
// the expander registry (component C9): a pluggable, breadth-first
// closure over block indices, fanning expansion across a worker pool,
// producing either a flat deduplicated set or a hierarchical tree.
//
// Grounded on distr1-distri's errgroup-per-phase concurrency idiom
// (cmd/distri/batch.go, internal/fuse/fuse.go) and on
// original_source/crates/dot001-tracer's expander semantics.
package tracer

import (
	"context"
	"log"

	"github.com/blendtrace/blend"
	"github.com/blendtrace/blend/fieldview"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"
)

// Source is the read-only view of a loaded file the tracer and its
// expanders operate against. *blend.File satisfies it; tests may
// supply a fake.
type Source interface {
	BlocksLen() int
	Block(i int) (blend.Block, bool)
	FindBlockByAddress(addr uint64) (int, bool)
	FieldView(i int) (*fieldview.FieldView, error)
	Header() blend.Header
}

// ExpandResult is what an expander returns for one block: the block
// indices it depends on and any external file paths it references.
type ExpandResult struct {
	Dependencies []int
	ExternalRefs []string
	Debug        string
}

// Expander consumes a block index + file and returns the edges it
// implies. Expanders must be pure functions over immutable Source
// state — this is what makes parallel tracing sound: no expander may
// write to shared state, and the only errors it should propagate are
// genuine I/O failures, not "field not present" misses (those are
// absorbed and simply contribute no edge).
type Expander interface {
	CanHandle(code blend.BlockCode) bool
	Expand(blockIndex int, src Source) (ExpandResult, error)
}

// Registry maps a block code to the first expander willing to handle
// it. The set of cases is closed and small (~13) so a linear scan over
// registration order is the whole implementation — no need for a
// dispatch table keyed by code.
type Registry struct {
	expanders []Expander
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register appends e to the registry and returns the registry for
// chaining.
func (r *Registry) Register(e Expander) *Registry {
	r.expanders = append(r.expanders, e)
	return r
}

// Lookup returns the first registered expander whose CanHandle
// matches code.
func (r *Registry) Lookup(code blend.BlockCode) (Expander, bool) {
	for _, e := range r.expanders {
		if e.CanHandle(code) {
			return e, true
		}
	}
	return nil, false
}

// Options controls traversal limits and behavior.
type Options struct {
	MaxDepth int
	Workers  int
	// StrictPointers, when true, turns an unresolved non-null pointer
	// into a traversal error instead of silently skipping it. The
	// default is to skip; this is the opt-in strict mode for callers
	// that want to fail loudly on a dangling pointer instead.
	StrictPointers bool
	Logger         *log.Logger
}

// Option mutates Options.
type Option func(*Options)

func WithMaxDepth(n int) Option        { return func(o *Options) { o.MaxDepth = n } }
func WithWorkers(n int) Option         { return func(o *Options) { o.Workers = n } }
func WithStrictPointers(v bool) Option { return func(o *Options) { o.StrictPointers = v } }
func WithLogger(l *log.Logger) Option  { return func(o *Options) { o.Logger = l } }

func defaultOptions() Options {
	return Options{MaxDepth: 10, Workers: 8, Logger: log.Default()}
}

// Tracer is the parallel BFS dependency tracer.
type Tracer struct {
	registry *Registry
	opts     Options
}

// New constructs a Tracer with no registered expanders.
func New(opts ...Option) *Tracer {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Tracer{registry: NewRegistry(), opts: o}
}

// WithDefaultExpanders registers the core's 13 built-in expanders
// (OB, ME, MA, SC, LA, NT, GR/Collection, DATA, IM, SO, LI, CF, TX) and
// returns the tracer for chaining.
func (t *Tracer) WithDefaultExpanders() *Tracer {
	for _, e := range DefaultExpanders() {
		t.registry.Register(e)
	}
	return t
}

// WithExpander registers a single additional expander.
func (t *Tracer) WithExpander(e Expander) *Tracer {
	t.registry.Register(e)
	return t
}

// Result is the flat output of Trace: the deduplicated, deterministically
// ordered set of dependency block indices plus the external file paths
// collected along the way.
type Result struct {
	Dependencies []int
	ExternalRefs []string
}

// Trace performs a breadth-first closure over root's dependencies,
// fanning expansion across a worker pool, bounded by t.opts.MaxDepth.
func (t *Tracer) Trace(root int, src Source) (*Result, error) {
	det := newDeterminizer(root)
	externals := newExternalSet()

	frontier := []int{root}
	depth := 0
	for len(frontier) > 0 && depth < t.opts.MaxDepth {
		layer, err := t.expandLayer(frontier, src)
		if err != nil {
			return nil, err
		}

		var next []int
		for _, item := range layer {
			if item.err != nil {
				t.opts.Logger.Printf("tracer: block %d: expand error: %v", item.blockIndex, item.err)
				continue
			}
			externals.addAll(item.result.ExternalRefs)
			for _, dep := range item.result.Dependencies {
				if det.observe(dep, depth+1) {
					next = append(next, dep)
				}
			}
		}
		frontier = next
		depth++
	}

	return &Result{
		Dependencies: det.ordered(),
		ExternalRefs: externals.ordered(),
	}, nil
}

type layerItem struct {
	blockIndex int
	result     ExpandResult
	err        error
}

// expandLayer fans expansion of every block in frontier across an
// errgroup-backed worker pool, then returns results in frontier's
// original submission order — irrespective of completion order — so
// that the tracer's output ordering never depends on worker
// scheduling (§5's determinism contract).
func (t *Tracer) expandLayer(frontier []int, src Source) ([]layerItem, error) {
	results := make([]layerItem, len(frontier))

	g, ctx := errgroup.WithContext(context.Background())
	workers := t.opts.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, blockIndex := range frontier {
		i, blockIndex := i, blockIndex
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			res, err := t.expandOne(blockIndex, src)
			results[i] = layerItem{blockIndex: blockIndex, result: res, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, xerrors.Errorf("tracer: layer expansion: %w", err)
	}
	return results, nil
}

func (t *Tracer) expandOne(blockIndex int, src Source) (ExpandResult, error) {
	b, ok := src.Block(blockIndex)
	if !ok {
		return ExpandResult{}, nil
	}
	expander, ok := t.registry.Lookup(b.Header.Code)
	if !ok {
		return ExpandResult{}, nil
	}
	// Bind this call's options onto the Source value passed down so
	// every expander and helper sees the same StrictPointers setting
	// without each Expander implementation needing an Options field.
	bound := &boundSource{Source: src, opts: t.opts}
	res, err := expander.Expand(blockIndex, bound)
	if err != nil {
		// I/O-class errors propagate; missing-field misses are the
		// expander's own responsibility to absorb before returning.
		return ExpandResult{}, xerrors.Errorf("expand block %d (%s): %w", blockIndex, b.Header.Code, err)
	}
	return res, nil
}

// boundSource threads this trace's Options alongside the caller's
// Source so helpers reached deep inside an expander (resolvePointer,
// arrayOfPointers, linkedList) can honor StrictPointers without the
// Expander interface itself needing to carry configuration.
type boundSource struct {
	Source
	opts Options
}

func optsOf(src Source) Options {
	if b, ok := src.(*boundSource); ok {
		return b.opts
	}
	return Options{}
}

// resolvePointer resolves a raw pointer value to a block index via
// src, honoring StrictPointers.
func resolvePointer(src Source, ptr uint64) (int, bool, error) {
	if ptr == 0 {
		return 0, false, nil
	}
	idx, ok := src.FindBlockByAddress(ptr)
	if !ok {
		if optsOf(src).StrictPointers {
			return 0, false, xerrors.Errorf("unresolved pointer 0x%x", ptr)
		}
		return 0, false, nil
	}
	return idx, true, nil
}
