// File: internal/interfaces/btree.go
package interfaces

import (
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// BTreeNodeReader provides methods for reading information from a B-tree node
type BTreeNodeReader interface {
	// Location returns the metadata block the node was read from
	Location() types.BlockAddress

	// Flags returns the B-tree node's flags
	Flags() uint32

	// IsLeaf checks if the node is a leaf node
	IsLeaf() bool

	// IsInternal checks if the node is an internal node
	IsInternal() bool

	// KeyCount returns the number of keys stored in this node
	KeyCount() uint32

	// MaxEntries returns the capacity of the node's key and value arrays
	MaxEntries() uint32

	// ValueSize returns the size in bytes of each value
	ValueSize() uint32

	// Key returns the key at index
	Key(index int) uint64

	// Value returns the raw value at index
	Value(index int) []byte

	// ChildBlock returns the child block number stored at index of an internal node
	ChildBlock(index int) types.BlockAddress
}

// BTreeLeafEntry is one key and raw value read from a leaf node
type BTreeLeafEntry struct {
	// The entry's key
	Key uint64

	// The entry's value, ValueSize bytes long
	Value []byte
}
