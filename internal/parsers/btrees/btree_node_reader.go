package btrees

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/parsers/objects"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

var (
	ErrInvalidChecksum = errors.New("node checksum mismatch")
	ErrMisdirected     = errors.New("node location mismatch")
	ErrInvalidHeader   = errors.New("invalid node header")
)

// btreeNodeReader implements the BTreeNodeReader interface
type btreeNodeReader struct {
	header   types.NodeHeaderT
	data     []byte
	location types.BlockAddress
}

var _ interfaces.BTreeNodeReader = (*btreeNodeReader)(nil)

// NewBTreeNodeReader creates a new BTreeNodeReader for a metadata block read
// from location. The header and checksum are validated; the key and value
// arrays are read in place, so data must not be modified afterwards.
func NewBTreeNodeReader(data []byte, location types.BlockAddress) (interfaces.BTreeNodeReader, error) {
	if len(data) != int(types.MetadataBlockSize) {
		return nil, fmt.Errorf("B-tree node must be a full %d byte block, got %d bytes", types.MetadataBlockSize, len(data))
	}

	if !objects.NewChecksumInspector(data, types.BtreeCsumXor).VerifyChecksum() {
		return nil, fmt.Errorf("block %d: %w", location, ErrInvalidChecksum)
	}

	header := parseNodeHeader(data)

	if types.BlockAddress(header.Blocknr) != location {
		return nil, fmt.Errorf("%w: block %d claims to be block %d", ErrMisdirected, location, header.Blocknr)
	}
	if err := checkHeader(&header); err != nil {
		return nil, fmt.Errorf("block %d: %w", location, err)
	}

	return &btreeNodeReader{
		header:   header,
		data:     data,
		location: location,
	}, nil
}

// parseNodeHeader parses the first NodeHeaderSize bytes into a NodeHeaderT structure
func parseNodeHeader(data []byte) types.NodeHeaderT {
	le := binary.LittleEndian
	return types.NodeHeaderT{
		Csum:       le.Uint32(data[0:4]),
		Flags:      le.Uint32(data[4:8]),
		Blocknr:    le.Uint64(data[8:16]),
		NrEntries:  le.Uint32(data[16:20]),
		MaxEntries: le.Uint32(data[20:24]),
		ValueSize:  le.Uint32(data[24:28]),
		Padding:    le.Uint32(data[28:32]),
	}
}

// checkHeader applies the same header checks as the kernel's node validator
func checkHeader(h *types.NodeHeaderT) error {
	isInternal := h.Flags&types.InternalNode != 0
	isLeaf := h.Flags&types.LeafNode != 0
	if isInternal == isLeaf {
		return fmt.Errorf("%w: flags 0x%x are neither internal nor leaf", ErrInvalidHeader, h.Flags)
	}

	if h.ValueSize == 0 {
		return fmt.Errorf("%w: zero value size", ErrInvalidHeader)
	}

	capacity := uint64(types.MetadataBlockSize - types.NodeHeaderSize)
	if uint64(h.MaxEntries)*(8+uint64(h.ValueSize)) > capacity {
		return fmt.Errorf("%w: %d entries of %d byte values do not fit in a block", ErrInvalidHeader, h.MaxEntries, h.ValueSize)
	}

	if h.NrEntries > h.MaxEntries {
		return fmt.Errorf("%w: %d entries exceed capacity %d", ErrInvalidHeader, h.NrEntries, h.MaxEntries)
	}

	if isInternal && h.ValueSize != types.BlockNumberValueSize {
		return fmt.Errorf("%w: internal node with %d byte values", ErrInvalidHeader, h.ValueSize)
	}

	return nil
}

func (br *btreeNodeReader) Location() types.BlockAddress {
	return br.location
}

func (br *btreeNodeReader) Flags() uint32 {
	return br.header.Flags
}

// IsLeaf checks if the node is a leaf node
func (br *btreeNodeReader) IsLeaf() bool {
	return br.header.Flags&types.LeafNode != 0
}

// IsInternal checks if the node is an internal node
func (br *btreeNodeReader) IsInternal() bool {
	return br.header.Flags&types.InternalNode != 0
}

func (br *btreeNodeReader) KeyCount() uint32 {
	return br.header.NrEntries
}

func (br *btreeNodeReader) MaxEntries() uint32 {
	return br.header.MaxEntries
}

func (br *btreeNodeReader) ValueSize() uint32 {
	return br.header.ValueSize
}

// Key returns the key at index
func (br *btreeNodeReader) Key(index int) uint64 {
	off := types.NodeHeaderSize + 8*index
	return binary.LittleEndian.Uint64(br.data[off : off+8])
}

// Value returns the raw value at index
func (br *btreeNodeReader) Value(index int) []byte {
	size := int(br.header.ValueSize)
	off := types.NodeHeaderSize + 8*int(br.header.MaxEntries) + size*index
	return br.data[off : off+size]
}

// ChildBlock returns the child block number stored at index of an internal node
func (br *btreeNodeReader) ChildBlock(index int) types.BlockAddress {
	return types.BlockAddress(binary.LittleEndian.Uint64(br.Value(index)))
}
