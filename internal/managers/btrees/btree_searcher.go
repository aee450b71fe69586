package btrees

import (
	"sort"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// Find looks for a key in the tree and returns its value. The boolean is
// false when the tree holds no such key.
func (nav *BTreeNavigator) Find(key uint64) ([]byte, bool, error) {
	addr := nav.root
	bounds := types.KeyRange{}

	for depth := 0; ; depth++ {
		node, err := nav.ReadNode(addr, bounds, depth)
		if err != nil {
			return nil, false, err
		}

		n := int(node.KeyCount())
		// index of the first key greater than the search key
		i := sort.Search(n, func(i int) bool { return node.Key(i) > key })

		if node.IsLeaf() {
			if i > 0 && node.Key(i-1) == key {
				return node.Value(i - 1), true, nil
			}
			return nil, false, nil
		}

		if i == 0 {
			return nil, false, nil
		}

		bounds = childRange(node, i-1, bounds)
		addr = node.ChildBlock(i - 1)
	}
}
