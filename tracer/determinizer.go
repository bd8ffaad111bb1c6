package tracer

import "sort"

// determinizer tracks which block indices have already been queued so
// each is expanded exactly once, while keeping the depth tier each was
// first observed at — the output ordering a caller sees must not
// depend on which worker goroutine happened to finish first, but it
// must still reflect BFS depth: a block discovered shallower in the
// traversal sorts before one discovered deeper, even if its own index
// is numerically larger.
type determinizer struct {
	seen  map[int]bool
	order []seenAt
}

type seenAt struct {
	depth int
	index int
}

func newDeterminizer(root int) *determinizer {
	d := &determinizer{seen: map[int]bool{root: true}}
	d.order = append(d.order, seenAt{depth: 0, index: root})
	return d
}

// observe records dep as first seen at depth and reports whether this
// is the first time it has been observed (i.e. whether it should be
// queued).
func (d *determinizer) observe(dep, depth int) bool {
	if d.seen[dep] {
		return false
	}
	d.seen[dep] = true
	d.order = append(d.order, seenAt{depth: depth, index: dep})
	return true
}

// ordered returns the dependency set stably ordered by
// (first_seen_depth, block_index): each depth tier sorted by index,
// tiers concatenated shallowest first, so Trace's result never depends
// on traversal order but still reflects BFS depth.
func (d *determinizer) ordered() []int {
	entries := make([]seenAt, len(d.order))
	copy(entries, d.order)
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].depth != entries[j].depth {
			return entries[i].depth < entries[j].depth
		}
		return entries[i].index < entries[j].index
	})
	out := make([]int, len(entries))
	for i, e := range entries {
		out[i] = e.index
	}
	return out
}

// externalSet deduplicates external file path references across the
// whole traversal.
type externalSet struct {
	seen map[string]bool
	all  []string
}

func newExternalSet() *externalSet {
	return &externalSet{seen: make(map[string]bool)}
}

func (s *externalSet) addAll(paths []string) {
	for _, p := range paths {
		if p == "" || s.seen[p] {
			continue
		}
		s.seen[p] = true
		s.all = append(s.all, p)
	}
}

func (s *externalSet) ordered() []string {
	out := make([]string, len(s.all))
	copy(out, s.all)
	sort.Strings(out)
	return out
}
