// Package testutil builds thin pool metadata images for tests. Images are
// assembled block by block in memory with valid checksums and can then be
// corrupted in place, resealed and written to a temporary file.
package testutil

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/parsers/objects"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// Entry is one key/value pair of a tree being built
type Entry struct {
	Key   uint64
	Value []byte
}

// ThinDevice describes a device to lay down with WritePool. Virtual block i
// maps to Physical[i].
type ThinDevice struct {
	ID            types.DeviceID
	TransactionID uint64
	CreationTime  uint32
	SnapshotTime  uint32
	Physical      []types.BlockAddress
}

// Pool holds the roots written by WritePool
type Pool struct {
	MappingRoot  types.BlockAddress
	DetailsRoot  types.BlockAddress
	DeviceRoots  map[types.DeviceID]types.BlockAddress
	MappingNodes map[types.DeviceID][]types.BlockAddress
}

// Image is an in-memory metadata device. Block 0 is reserved for the superblock.
type Image struct {
	blocks [][]byte

	// LeafCapacity caps the entries placed in each leaf and the children
	// placed in each internal node. Zero fills nodes to max_entries.
	LeafCapacity int
}

// NewImage creates an image holding only an empty superblock slot
func NewImage() *Image {
	return &Image{blocks: [][]byte{make([]byte, types.MetadataBlockSize)}}
}

// MaxEntries returns the node capacity for a value size, rounded down to a
// multiple of three as the kernel does
func MaxEntries(valueSize uint32) uint32 {
	n := (types.MetadataBlockSize - types.NodeHeaderSize) / (8 + valueSize)
	return n / 3 * 3
}

// Alloc appends a zeroed block and returns its address
func (img *Image) Alloc() types.BlockAddress {
	img.blocks = append(img.blocks, make([]byte, types.MetadataBlockSize))
	return types.BlockAddress(len(img.blocks) - 1)
}

// NrBlocks returns the number of blocks in the image
func (img *Image) NrBlocks() uint64 {
	return uint64(len(img.blocks))
}

// Block returns the raw block at addr for in-place modification. Call Reseal
// afterwards to keep the checksum valid.
func (img *Image) Block(addr types.BlockAddress) []byte {
	return img.blocks[addr]
}

// Reseal recomputes the checksum of the block at addr
func (img *Image) Reseal(addr types.BlockAddress, xor uint32) {
	seal(img.blocks[addr], xor)
}

// WriteNode writes a single B-tree node and returns its address
func (img *Image) WriteNode(flags, valueSize uint32, keys []uint64, values [][]byte) types.BlockAddress {
	addr := img.Alloc()
	EncodeNode(img.blocks[addr], addr, flags, valueSize, keys, values)
	return addr
}

// WriteTree writes a B-tree holding entries, which must be sorted by key,
// and returns its root. An empty tree is a single empty leaf.
func (img *Image) WriteTree(entries []Entry, valueSize uint32) types.BlockAddress {
	root, _ := img.writeTree(entries, valueSize)
	return root
}

// writeTree also returns the addresses of the leaves it wrote
func (img *Image) writeTree(entries []Entry, valueSize uint32) (types.BlockAddress, []types.BlockAddress) {
	leafCap := img.capacity(valueSize)
	if len(entries) == 0 {
		addr := img.WriteNode(types.LeafNode, valueSize, nil, nil)
		return addr, []types.BlockAddress{addr}
	}

	var level []Entry
	var leaves []types.BlockAddress
	for start := 0; start < len(entries); start += leafCap {
		end := min(start+leafCap, len(entries))
		keys, values := split(entries[start:end])
		addr := img.WriteNode(types.LeafNode, valueSize, keys, values)
		leaves = append(leaves, addr)
		level = append(level, Entry{Key: keys[0], Value: u64(uint64(addr))})
	}

	internalCap := img.capacity(types.BlockNumberValueSize)
	for len(level) > 1 {
		var next []Entry
		for start := 0; start < len(level); start += internalCap {
			end := min(start+internalCap, len(level))
			keys, values := split(level[start:end])
			addr := img.WriteNode(types.InternalNode, types.BlockNumberValueSize, keys, values)
			next = append(next, Entry{Key: keys[0], Value: u64(uint64(addr))})
		}
		level = next
	}

	return types.BlockAddress(binary.LittleEndian.Uint64(level[0].Value)), leaves
}

func (img *Image) capacity(valueSize uint32) int {
	c := int(MaxEntries(valueSize))
	if img.LeafCapacity > 0 && img.LeafCapacity < c {
		c = img.LeafCapacity
	}
	if c < 2 {
		c = 2
	}
	return c
}

// WritePool writes a mapping tree per device, the top-level tree over their
// roots and the device details tree. Devices must be sorted by id.
func (img *Image) WritePool(devices []ThinDevice) Pool {
	pool := Pool{
		DeviceRoots:  make(map[types.DeviceID]types.BlockAddress),
		MappingNodes: make(map[types.DeviceID][]types.BlockAddress),
	}

	var top, details []Entry
	for _, dev := range devices {
		mappings := make([]Entry, 0, len(dev.Physical))
		for v, p := range dev.Physical {
			bt := types.PackBlockTime(types.BlockTimeT{Block: p, Time: dev.CreationTime})
			mappings = append(mappings, Entry{Key: uint64(v), Value: u64(bt)})
		}

		root, leaves := img.writeTree(mappings, types.BlockTimeValueSize)
		pool.DeviceRoots[dev.ID] = root
		pool.MappingNodes[dev.ID] = leaves

		top = append(top, Entry{Key: uint64(dev.ID), Value: u64(uint64(root))})
		details = append(details, Entry{
			Key: uint64(dev.ID),
			Value: EncodeDeviceDetails(types.DeviceDetailsT{
				MappedBlocks:    uint64(len(dev.Physical)),
				TransactionID:   dev.TransactionID,
				CreationTime:    dev.CreationTime,
				SnapshottedTime: dev.SnapshotTime,
			}),
		})
	}

	pool.MappingRoot = img.WriteTree(top, types.BlockNumberValueSize)
	pool.DetailsRoot = img.WriteTree(details, types.DeviceDetailsValueSize)
	return pool
}

// NewSuperblock returns a version 2 superblock anchoring pool with 64KiB data blocks
func NewSuperblock(pool Pool) types.SuperblockT {
	return types.SuperblockT{
		Magic:             types.SuperblockMagic,
		Version:           2,
		Time:              1,
		TransID:           1,
		DataMappingRoot:   uint64(pool.MappingRoot),
		DeviceDetailsRoot: uint64(pool.DetailsRoot),
		DataBlockSize:     128,
		MetadataBlockSize: types.MetadataBlockSize / uint32(types.SectorSize),
	}
}

// WriteSuperblock writes sb as the live superblock at block 0. A zero
// MetadataNrBlocks is filled in with the image size.
func (img *Image) WriteSuperblock(sb types.SuperblockT) {
	if sb.MetadataNrBlocks == 0 {
		sb.MetadataNrBlocks = img.NrBlocks()
	}
	EncodeSuperblock(img.blocks[types.SuperblockLocation], types.SuperblockLocation, sb)
}

// WriteMetadataSnap writes a copy of sb to a new block, to be referenced as
// the held root of the live superblock
func (img *Image) WriteMetadataSnap(sb types.SuperblockT) types.BlockAddress {
	addr := img.Alloc()
	if sb.MetadataNrBlocks == 0 {
		sb.MetadataNrBlocks = img.NrBlocks()
	}
	EncodeSuperblock(img.blocks[addr], addr, sb)
	return addr
}

// Bytes returns the image contents
func (img *Image) Bytes() []byte {
	out := make([]byte, 0, len(img.blocks)*int(types.MetadataBlockSize))
	for _, b := range img.blocks {
		out = append(out, b...)
	}
	return out
}

// WriteFile writes the image to a file in a temporary directory and returns its path
func (img *Image) WriteFile(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metadata.bin")
	require.NoError(t, os.WriteFile(path, img.Bytes(), 0o600))
	return path
}

// Reader returns a block reader over the image
func (img *Image) Reader() interfaces.BlockDeviceReader {
	return imageReader{img}
}

type imageReader struct {
	img *Image
}

func (r imageReader) ReadBlock(address types.BlockAddress) ([]byte, error) {
	if !r.IsValidAddress(address) {
		return nil, fmt.Errorf("block %d beyond end of image", address)
	}
	return r.img.blocks[address], nil
}

func (r imageReader) BlockSize() uint32 {
	return types.MetadataBlockSize
}

func (r imageReader) TotalBlocks() uint64 {
	return r.img.NrBlocks()
}

func (r imageReader) IsValidAddress(address types.BlockAddress) bool {
	return uint64(address) < r.img.NrBlocks()
}

// EncodeNode lays out a node in block and seals it
func EncodeNode(block []byte, addr types.BlockAddress, flags, valueSize uint32, keys []uint64, values [][]byte) {
	le := binary.LittleEndian
	maxEntries := MaxEntries(valueSize)

	clear(block)
	le.PutUint32(block[4:8], flags)
	le.PutUint64(block[8:16], uint64(addr))
	le.PutUint32(block[16:20], uint32(len(keys)))
	le.PutUint32(block[20:24], maxEntries)
	le.PutUint32(block[24:28], valueSize)

	valuesStart := types.NodeHeaderSize + 8*int(maxEntries)
	for i, k := range keys {
		le.PutUint64(block[types.NodeHeaderSize+8*i:], k)
		copy(block[valuesStart+int(valueSize)*i:], values[i])
	}

	seal(block, types.BtreeCsumXor)
}

// EncodeSuperblock lays out sb in block, recording addr as its location, and seals it
func EncodeSuperblock(block []byte, addr types.BlockAddress, sb types.SuperblockT) {
	le := binary.LittleEndian

	clear(block)
	le.PutUint32(block[types.SuperblockFlagsOffset:], sb.Flags)
	le.PutUint64(block[types.SuperblockBlocknrOffset:], uint64(addr))
	copy(block[types.SuperblockUUIDOffset:], sb.UUID[:])
	le.PutUint64(block[types.SuperblockMagicOffset:], sb.Magic)
	le.PutUint32(block[types.SuperblockVersionOffset:], sb.Version)
	le.PutUint32(block[types.SuperblockTimeOffset:], sb.Time)
	le.PutUint64(block[types.SuperblockTransIDOffset:], sb.TransID)
	le.PutUint64(block[types.SuperblockMetadataSnapOffset:], sb.MetadataSnap)
	copy(block[types.SuperblockDataSpaceMapRootOffset:], sb.DataSpaceMapRoot[:])
	copy(block[types.SuperblockMetadataSpaceMapRootOffset:], sb.MetadataSpaceMapRoot[:])
	le.PutUint64(block[types.SuperblockDataMappingRootOffset:], sb.DataMappingRoot)
	le.PutUint64(block[types.SuperblockDeviceDetailsRootOffset:], sb.DeviceDetailsRoot)
	le.PutUint32(block[types.SuperblockDataBlockSizeOffset:], sb.DataBlockSize)
	le.PutUint32(block[types.SuperblockMetadataBlockSizeOffset:], sb.MetadataBlockSize)
	le.PutUint64(block[types.SuperblockMetadataNrBlocksOffset:], sb.MetadataNrBlocks)
	le.PutUint32(block[types.SuperblockCompatFlagsOffset:], sb.CompatFlags)
	le.PutUint32(block[types.SuperblockCompatRoFlagsOffset:], sb.CompatRoFlags)
	le.PutUint32(block[types.SuperblockIncompatFlagsOffset:], sb.IncompatFlags)

	seal(block, types.SuperblockCsumXor)
}

// EncodeDeviceDetails returns the 24-byte on-disk form of d
func EncodeDeviceDetails(d types.DeviceDetailsT) []byte {
	le := binary.LittleEndian
	b := make([]byte, types.DeviceDetailsValueSize)
	le.PutUint64(b[0:8], d.MappedBlocks)
	le.PutUint64(b[8:16], d.TransactionID)
	le.PutUint32(b[16:20], d.CreationTime)
	le.PutUint32(b[20:24], d.SnapshottedTime)
	return b
}

// U64 returns the little endian encoding of v
func U64(v uint64) []byte {
	return u64(v)
}

func u64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func split(entries []Entry) ([]uint64, [][]byte) {
	keys := make([]uint64, len(entries))
	values := make([][]byte, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
		values[i] = e.Value
	}
	return keys, values
}

func seal(block []byte, xor uint32) {
	binary.LittleEndian.PutUint32(block[:types.ChecksumSize], objects.BlockChecksum(block[types.ChecksumSize:], xor))
}
