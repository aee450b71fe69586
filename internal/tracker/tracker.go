// Package tracker classifies data blocks by how many devices reference them.
package tracker

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// BlockState is the ownership class of a data block.
type BlockState int

const (
	// Unmapped blocks are referenced by no device.
	Unmapped BlockState = iota
	// Exclusive blocks are referenced by exactly one device.
	Exclusive
	// Shared blocks are referenced by two or more devices.
	Shared
)

func (s BlockState) String() string {
	switch s {
	case Unmapped:
		return "unmapped"
	case Exclusive:
		return "exclusive"
	case Shared:
		return "shared"
	default:
		return "invalid"
	}
}

// initialBits is the starting capacity of the bit vector: 5120 blocks.
const initialBits = 10240

// BlockStateTracker records two bits per data block: bit 2b is set once block b
// has been referenced, bit 2b+1 once it has been referenced again.
//
// The bit vector starts small and doubles whenever an address beyond it is
// touched, so the size of the data device need not be known. A tracker is not
// safe for concurrent use.
type BlockStateTracker struct {
	bits *bitset.BitSet
}

// NewBlockStateTracker returns an empty tracker in which every block is Unmapped.
func NewBlockStateTracker() *BlockStateTracker {
	return &BlockStateTracker{
		bits: bitset.New(initialBits),
	}
}

// Increment records one more reference to block. The first reference makes it
// Exclusive, the second and later ones make it Shared. Block must not exceed
// types.MaxDataBlock.
func (t *BlockStateTracker) Increment(block types.BlockAddress) {
	seen, shared := bitIndices(block)
	t.ensure(shared)

	if t.bits.Test(seen) {
		t.bits.Set(shared)
	} else {
		t.bits.Set(seen)
	}
}

// State returns the ownership class of block. Querying an address beyond the
// current capacity grows the vector. Block must not exceed types.MaxDataBlock.
func (t *BlockStateTracker) State(block types.BlockAddress) BlockState {
	seen, shared := bitIndices(block)
	t.ensure(shared)

	if !t.bits.Test(seen) {
		return Unmapped
	}
	if t.bits.Test(shared) {
		return Shared
	}
	return Exclusive
}

// capacity returns the number of blocks the vector currently covers.
func (t *BlockStateTracker) capacity() uint64 {
	return uint64(t.bits.Len()) / 2
}

// ensure doubles the vector until bit is addressable. Existing bits are kept
// and the new region reads as Unmapped.
func (t *BlockStateTracker) ensure(bit uint) {
	size := t.bits.Len()
	if bit < size {
		return
	}

	for size <= bit {
		size *= 2
	}

	grown := bitset.New(size)
	grown.InPlaceUnion(t.bits)
	t.bits = grown
}

func bitIndices(block types.BlockAddress) (seen, shared uint) {
	if block > types.MaxDataBlock {
		panic(fmt.Sprintf("tracker: data block %d exceeds the maximum %d", block, types.MaxDataBlock))
	}
	seen = uint(block) * 2
	return seen, seen + 1
}
