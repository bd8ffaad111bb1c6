package tracer

import (
	"testing"

	"github.com/blendtrace/blend"
	"github.com/blendtrace/blend/fieldview"
)

// edgeExpander is a test double that returns a fixed adjacency list per
// block index, bypassing fieldview/pointer resolution entirely so the
// tracer's BFS/determinism/depth-capping logic can be exercised on its
// own.
type edgeExpander struct {
	code      blend.BlockCode
	edges     map[int][]int
	externals map[int][]string
}

func (e edgeExpander) CanHandle(c blend.BlockCode) bool { return c == e.code }

func (e edgeExpander) Expand(blockIndex int, src Source) (ExpandResult, error) {
	return ExpandResult{
		Dependencies: e.edges[blockIndex],
		ExternalRefs: e.externals[blockIndex],
	}, nil
}

// fakeSource is a minimal Source whose blocks all share one code, so a
// single edgeExpander handles every block.
type fakeSource struct {
	header blend.Header
	n      int
	code   blend.BlockCode
	addrs  map[uint64]int
}

func (f *fakeSource) BlocksLen() int { return f.n }

func (f *fakeSource) Block(i int) (blend.Block, bool) {
	if i < 0 || i >= f.n {
		return blend.Block{}, false
	}
	return blend.Block{Header: blend.BHead{Code: f.code}}, true
}

func (f *fakeSource) FindBlockByAddress(addr uint64) (int, bool) {
	idx, ok := f.addrs[addr]
	return idx, ok
}

func (f *fakeSource) FieldView(i int) (*fieldview.FieldView, error) { return nil, nil }

func (f *fakeSource) Header() blend.Header { return f.header }

var testCode = blend.CodeFromString("XX")

func TestRegistryLookupFirstMatchWins(t *testing.T) {
	r := NewRegistry()
	r.Register(edgeExpander{code: testCode})
	if _, ok := r.Lookup(blend.CodeFromString("YY")); ok {
		t.Fatal("expected no match for an unregistered code")
	}
	e, ok := r.Lookup(testCode)
	if !ok {
		t.Fatal("expected a match for the registered code")
	}
	if !e.CanHandle(testCode) {
		t.Fatal("looked-up expander should handle the code it was registered for")
	}
}

func TestTraceDeduplicatesDiamond(t *testing.T) {
	src := &fakeSource{n: 4, code: testCode}
	tr := New().WithExpander(edgeExpander{
		code: testCode,
		edges: map[int][]int{
			0: {1, 2},
			1: {3},
			2: {3},
		},
	})

	result, err := tr.Trace(0, src)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	want := []int{0, 1, 2, 3}
	if !intSliceEqual(result.Dependencies, want) {
		t.Errorf("Dependencies = %v, want %v", result.Dependencies, want)
	}
}

func TestTraceIsOrderDeterministicAcrossRuns(t *testing.T) {
	src := &fakeSource{n: 6, code: testCode}
	edges := map[int][]int{
		0: {5, 4, 3, 2, 1},
	}
	var first []int
	for run := 0; run < 5; run++ {
		tr := New(WithWorkers(8)).WithExpander(edgeExpander{code: testCode, edges: edges})
		result, err := tr.Trace(0, src)
		if err != nil {
			t.Fatalf("Trace: %v", err)
		}
		if run == 0 {
			first = result.Dependencies
			continue
		}
		if !intSliceEqual(first, result.Dependencies) {
			t.Errorf("run %d produced %v, want %v (worker-order should not affect output)", run, result.Dependencies, first)
		}
	}
	want := []int{0, 1, 2, 3, 4, 5}
	if !intSliceEqual(first, want) {
		t.Errorf("Dependencies = %v, want %v", first, want)
	}
}

func TestTraceOrdersByDepthTierThenIndex(t *testing.T) {
	// root=0 (depth 0) -> 9 (depth 1); 9 -> {1,2} (depth 2). A flat
	// sort by index would put 9 after 1 and 2; the correct order keeps
	// shallower blocks first regardless of their numeric index.
	src := &fakeSource{n: 10, code: testCode}
	tr := New().WithExpander(edgeExpander{
		code: testCode,
		edges: map[int][]int{
			0: {9},
			9: {1, 2},
		},
	})
	result, err := tr.Trace(0, src)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	want := []int{0, 9, 1, 2}
	if !intSliceEqual(result.Dependencies, want) {
		t.Errorf("Dependencies = %v, want %v (depth-tiered, not flat-sorted)", result.Dependencies, want)
	}
}

func TestTraceRespectsMaxDepth(t *testing.T) {
	src := &fakeSource{n: 4, code: testCode}
	tr := New(WithMaxDepth(2)).WithExpander(edgeExpander{
		code: testCode,
		edges: map[int][]int{
			0: {1},
			1: {2},
			2: {3},
		},
	})
	result, err := tr.Trace(0, src)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	want := []int{0, 1, 2}
	if !intSliceEqual(result.Dependencies, want) {
		t.Errorf("Dependencies = %v, want %v (block 3 should not be reached within 2 layers)", result.Dependencies, want)
	}
}

func TestTraceCollectsExternalRefsDeduped(t *testing.T) {
	src := &fakeSource{n: 3, code: testCode}
	tr := New().WithExpander(edgeExpander{
		code: testCode,
		edges: map[int][]int{
			0: {1, 2},
		},
		externals: map[int][]string{
			1: {"textures/wood.png"},
			2: {"textures/wood.png", "sounds/click.wav"},
		},
	})
	result, err := tr.Trace(0, src)
	if err != nil {
		t.Fatalf("Trace: %v", err)
	}
	want := []string{"sounds/click.wav", "textures/wood.png"}
	if len(result.ExternalRefs) != len(want) {
		t.Fatalf("ExternalRefs = %v, want %v", result.ExternalRefs, want)
	}
	for i, ref := range want {
		if result.ExternalRefs[i] != ref {
			t.Errorf("ExternalRefs[%d] = %q, want %q", i, result.ExternalRefs[i], ref)
		}
	}
}

func TestResolvePointerNullIsNotAnError(t *testing.T) {
	src := &fakeSource{n: 1, code: testCode, addrs: map[uint64]int{}}
	idx, ok, err := resolvePointer(src, 0)
	if err != nil || ok || idx != 0 {
		t.Errorf("resolvePointer(0) = (%d, %v, %v), want (0, false, nil)", idx, ok, err)
	}
}

func TestResolvePointerUnresolvedSkipsByDefault(t *testing.T) {
	src := &fakeSource{n: 1, code: testCode, addrs: map[uint64]int{}}
	idx, ok, err := resolvePointer(src, 0xdead)
	if err != nil {
		t.Fatalf("expected no error when StrictPointers is unset, got %v", err)
	}
	if ok || idx != 0 {
		t.Errorf("expected unresolved pointer to report not-ok, got (%d, %v)", idx, ok)
	}
}

func TestResolvePointerStrictModeErrors(t *testing.T) {
	src := &fakeSource{n: 1, code: testCode, addrs: map[uint64]int{}}
	bound := &boundSource{Source: src, opts: Options{StrictPointers: true}}
	_, _, err := resolvePointer(bound, 0xdead)
	if err == nil {
		t.Fatal("expected an error for an unresolved pointer under StrictPointers")
	}
}

func TestResolvePointerStrictModeStillResolvesKnownAddress(t *testing.T) {
	src := &fakeSource{n: 2, code: testCode, addrs: map[uint64]int{0xdead: 1}}
	bound := &boundSource{Source: src, opts: Options{StrictPointers: true}}
	idx, ok, err := resolvePointer(bound, 0xdead)
	if err != nil || !ok || idx != 1 {
		t.Errorf("resolvePointer = (%d, %v, %v), want (1, true, nil)", idx, ok, err)
	}
}

func intSliceEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
