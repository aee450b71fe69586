package btrees

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/parsers/btrees"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

var (
	ErrTooDeep    = errors.New("tree exceeds maximum depth")
	ErrOutOfRange = errors.New("child block beyond end of metadata device")
)

// NodeError reports a node that could not be read as part of its tree. Keys
// is the range of keys the node was expected to hold, all of which are lost.
type NodeError struct {
	Block types.BlockAddress
	Keys  types.KeyRange
	Err   error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %d (keys %s): %v", e.Block, e.Keys, e.Err)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}

// BTreeNavigator reads the nodes of one persistent-data B-tree
type BTreeNavigator struct {
	blockReader   interfaces.BlockDeviceReader
	validator     *btrees.BTreeValidator
	root          types.BlockAddress
	leafValueSize uint32
}

// NewBTreeNavigator creates a navigator for the tree rooted at root whose
// leaves hold leafValueSize byte values
func NewBTreeNavigator(blockReader interfaces.BlockDeviceReader, root types.BlockAddress, leafValueSize uint32) *BTreeNavigator {
	return &BTreeNavigator{
		blockReader:   blockReader,
		validator:     btrees.NewBTreeValidator(),
		root:          root,
		leafValueSize: leafValueSize,
	}
}

// ReadNode reads the node at addr and checks it against the key range its
// parent assigned to it. Structural problems are returned as *NodeError; any
// other error is a failure to read the device.
func (nav *BTreeNavigator) ReadNode(addr types.BlockAddress, bounds types.KeyRange, depth int) (interfaces.BTreeNodeReader, error) {
	if depth >= types.MaxTreeDepth {
		return nil, &NodeError{Block: addr, Keys: bounds, Err: ErrTooDeep}
	}

	if !nav.blockReader.IsValidAddress(addr) {
		return nil, &NodeError{Block: addr, Keys: bounds, Err: ErrOutOfRange}
	}

	data, err := nav.blockReader.ReadBlock(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to read block at address %d: %w", addr, err)
	}

	node, err := btrees.NewBTreeNodeReader(data, addr)
	if err != nil {
		return nil, &NodeError{Block: addr, Keys: bounds, Err: err}
	}

	result := nav.validator.ValidateNode(node, bounds, nav.leafValueSize, depth == 0)
	if err := result.Err(); err != nil {
		return nil, &NodeError{Block: addr, Keys: bounds, Err: err}
	}

	return node, nil
}

// childRange returns the key range covered by child index of an internal node
func childRange(node interfaces.BTreeNodeReader, index int, bounds types.KeyRange) types.KeyRange {
	begin := node.Key(index)
	r := types.KeyRange{Begin: &begin, End: bounds.End}
	if index+1 < int(node.KeyCount()) {
		end := node.Key(index + 1)
		r.End = &end
	}
	return r
}
