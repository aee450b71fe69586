package btrees

import (
	"errors"
	"iter"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// Entries returns every leaf entry of the tree in ascending key order.
//
// The walk is lazy and starts again from the root on every range. A node that
// fails validation is yielded as a *NodeError in place of its whole subtree
// and the walk moves on to its next sibling. A device read failure is yielded
// as a plain error and ends the walk.
func (nav *BTreeNavigator) Entries() iter.Seq2[interfaces.BTreeLeafEntry, error] {
	return func(yield func(interfaces.BTreeLeafEntry, error) bool) {
		nav.walk(nav.root, types.KeyRange{}, 0, yield)
	}
}

// walk visits the subtree at addr and returns false once the walk must stop
func (nav *BTreeNavigator) walk(addr types.BlockAddress, bounds types.KeyRange, depth int, yield func(interfaces.BTreeLeafEntry, error) bool) bool {
	node, err := nav.ReadNode(addr, bounds, depth)
	if err != nil {
		var nodeErr *NodeError
		if errors.As(err, &nodeErr) {
			return yield(interfaces.BTreeLeafEntry{}, err)
		}
		yield(interfaces.BTreeLeafEntry{}, err)
		return false
	}

	n := int(node.KeyCount())
	if node.IsLeaf() {
		for i := 0; i < n; i++ {
			if !yield(interfaces.BTreeLeafEntry{Key: node.Key(i), Value: node.Value(i)}, nil) {
				return false
			}
		}
		return true
	}

	for i := 0; i < n; i++ {
		if !nav.walk(node.ChildBlock(i), childRange(node, i, bounds), depth+1, yield) {
			return false
		}
	}
	return true
}
