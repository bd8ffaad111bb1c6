package tracer

// DependencyNode is one node of a DependencyTree: the block it
// represents, its external references, and its children. A node whose
// BlockIndex was already visited higher up the same path is marked
// Cycle and has no children, rather than looping forever.
type DependencyNode struct {
	BlockIndex   int
	ExternalRefs []string
	Children     []*DependencyNode
	Cycle        bool
}

// DependencyTree is the hierarchical variant of a trace: unlike
// Result's flat deduplicated set, it preserves the path by which each
// dependency was reached, at the cost of potentially visiting the same
// block index more than once (as distinct nodes) when several parents
// reference it.
type DependencyTree struct {
	Root *DependencyNode
}

// TraceTree performs the same bounded expansion as Trace but retains
// tree shape instead of flattening to a set. Depth is bounded the same
// way; a block re-encountered along the current root-to-node path is
// recorded as a cycle leaf instead of being re-expanded.
func (t *Tracer) TraceTree(root int, src Source) (*DependencyTree, error) {
	externals := newExternalSet()
	node, err := t.buildNode(root, src, map[int]bool{}, 0, externals)
	if err != nil {
		return nil, err
	}
	return &DependencyTree{Root: node}, nil
}

func (t *Tracer) buildNode(blockIndex int, src Source, onPath map[int]bool, depth int, externals *externalSet) (*DependencyNode, error) {
	if onPath[blockIndex] {
		return &DependencyNode{BlockIndex: blockIndex, Cycle: true}, nil
	}

	node := &DependencyNode{BlockIndex: blockIndex}
	if depth >= t.opts.MaxDepth {
		return node, nil
	}

	res, err := t.expandOne(blockIndex, src)
	if err != nil {
		t.opts.Logger.Printf("tracer: block %d: expand error: %v", blockIndex, err)
		return node, nil
	}
	node.ExternalRefs = append(node.ExternalRefs, res.ExternalRefs...)
	externals.addAll(res.ExternalRefs)

	onPath[blockIndex] = true
	defer delete(onPath, blockIndex)

	seenChild := make(map[int]bool, len(res.Dependencies))
	for _, dep := range res.Dependencies {
		if seenChild[dep] {
			continue
		}
		seenChild[dep] = true
		child, err := t.buildNode(dep, src, onPath, depth+1, externals)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
