package superblock

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/parsers/objects"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

var (
	ErrInvalidChecksum = errors.New("superblock checksum mismatch")
	ErrInvalidMagic    = errors.New("not a thin pool superblock")
	ErrMisdirected     = errors.New("superblock location mismatch")
	ErrUnsupported     = errors.New("unsupported metadata format")
)

// Data block size limits in sectors, as enforced by the dm-thin-pool target
const (
	dataBlockSizeMinSectors = 128
	dataBlockSizeMaxSectors = 2097152
)

// superblockReader implements the SuperblockReader interface
type superblockReader struct {
	superblock *types.SuperblockT
	location   types.BlockAddress
}

var _ interfaces.SuperblockReader = (*superblockReader)(nil)

// NewSuperblockReader validates and decodes the superblock stored in a metadata
// block read from location
func NewSuperblockReader(data []byte, location types.BlockAddress) (interfaces.SuperblockReader, error) {
	if len(data) != int(types.MetadataBlockSize) {
		return nil, fmt.Errorf("superblock must be a full %d byte block, got %d bytes", types.MetadataBlockSize, len(data))
	}

	if !objects.NewChecksumInspector(data, types.SuperblockCsumXor).VerifyChecksum() {
		return nil, fmt.Errorf("block %d: %w", location, ErrInvalidChecksum)
	}

	sb := parseSuperblock(data)

	if sb.Magic != types.SuperblockMagic {
		return nil, fmt.Errorf("block %d: %w: magic %d, want %d", location, ErrInvalidMagic, sb.Magic, types.SuperblockMagic)
	}
	if types.BlockAddress(sb.Blocknr) != location {
		return nil, fmt.Errorf("%w: block %d claims to be block %d", ErrMisdirected, location, sb.Blocknr)
	}
	if sb.Version < types.SuperblockVersionMin || sb.Version > types.SuperblockVersionMax {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupported, sb.Version)
	}
	if sb.DataBlockSize < dataBlockSizeMinSectors || sb.DataBlockSize > dataBlockSizeMaxSectors ||
		sb.DataBlockSize%dataBlockSizeMinSectors != 0 {
		return nil, fmt.Errorf("%w: data block size of %d sectors", ErrUnsupported, sb.DataBlockSize)
	}

	return &superblockReader{
		superblock: sb,
		location:   location,
	}, nil
}

// parseSuperblock parses raw bytes into a SuperblockT structure
func parseSuperblock(data []byte) *types.SuperblockT {
	le := binary.LittleEndian
	sb := &types.SuperblockT{}

	sb.Csum = le.Uint32(data[types.SuperblockCsumOffset:])
	sb.Flags = le.Uint32(data[types.SuperblockFlagsOffset:])
	sb.Blocknr = le.Uint64(data[types.SuperblockBlocknrOffset:])
	copy(sb.UUID[:], data[types.SuperblockUUIDOffset:types.SuperblockUUIDOffset+16])
	sb.Magic = le.Uint64(data[types.SuperblockMagicOffset:])
	sb.Version = le.Uint32(data[types.SuperblockVersionOffset:])
	sb.Time = le.Uint32(data[types.SuperblockTimeOffset:])
	sb.TransID = le.Uint64(data[types.SuperblockTransIDOffset:])
	sb.MetadataSnap = le.Uint64(data[types.SuperblockMetadataSnapOffset:])
	copy(sb.DataSpaceMapRoot[:], data[types.SuperblockDataSpaceMapRootOffset:])
	copy(sb.MetadataSpaceMapRoot[:], data[types.SuperblockMetadataSpaceMapRootOffset:])
	sb.DataMappingRoot = le.Uint64(data[types.SuperblockDataMappingRootOffset:])
	sb.DeviceDetailsRoot = le.Uint64(data[types.SuperblockDeviceDetailsRootOffset:])
	sb.DataBlockSize = le.Uint32(data[types.SuperblockDataBlockSizeOffset:])
	sb.MetadataBlockSize = le.Uint32(data[types.SuperblockMetadataBlockSizeOffset:])
	sb.MetadataNrBlocks = le.Uint64(data[types.SuperblockMetadataNrBlocksOffset:])
	sb.CompatFlags = le.Uint32(data[types.SuperblockCompatFlagsOffset:])
	sb.CompatRoFlags = le.Uint32(data[types.SuperblockCompatRoFlagsOffset:])
	sb.IncompatFlags = le.Uint32(data[types.SuperblockIncompatFlagsOffset:])

	return sb
}

func (sr *superblockReader) Location() types.BlockAddress {
	return sr.location
}

// UUID returns the pool's identifier
func (sr *superblockReader) UUID() uuid.UUID {
	return uuid.UUID(sr.superblock.UUID)
}

func (sr *superblockReader) Version() uint32 {
	return sr.superblock.Version
}

func (sr *superblockReader) Time() uint32 {
	return sr.superblock.Time
}

func (sr *superblockReader) TransactionID() uint64 {
	return sr.superblock.TransID
}

func (sr *superblockReader) MetadataSnap() types.BlockAddress {
	return types.BlockAddress(sr.superblock.MetadataSnap)
}

// HasMetadataSnap checks if a metadata snapshot is held
func (sr *superblockReader) HasMetadataSnap() bool {
	return sr.superblock.MetadataSnap != 0
}

func (sr *superblockReader) DataMappingRoot() types.BlockAddress {
	return types.BlockAddress(sr.superblock.DataMappingRoot)
}

func (sr *superblockReader) DeviceDetailsRoot() types.BlockAddress {
	return types.BlockAddress(sr.superblock.DeviceDetailsRoot)
}

// DataBlockSize returns the data block size in sectors
func (sr *superblockReader) DataBlockSize() uint32 {
	return sr.superblock.DataBlockSize
}

func (sr *superblockReader) MetadataNrBlocks() uint64 {
	return sr.superblock.MetadataNrBlocks
}

// Superblock returns the decoded on-disk structure
func (sr *superblockReader) Superblock() *types.SuperblockT {
	return sr.superblock
}
