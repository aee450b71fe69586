package types

// Superblock
// The superblock lives at metadata block 0 and anchors every tree in the pool.
// A metadata snapshot is a copy of the superblock written to another block and
// recorded in the live superblock's MetadataSnap field.

// SuperblockT is the thin pool superblock.
type SuperblockT struct {
	// The crc32c checksum of the superblock, excluding this field.
	Csum uint32

	// The superblock's flags.
	Flags uint32

	// The metadata block this superblock was written to.
	Blocknr uint64

	// The pool's universally unique identifier. Usually zero; the kernel never
	// assigns one.
	UUID UUID

	// A number that identifies the block as a thin pool superblock.
	// The value of this field is always SuperblockMagic.
	Magic uint64

	// The metadata format version. See SuperblockVersionMin and SuperblockVersionMax.
	Version uint32

	// The current time counter. Each snapshot bumps it; mapping entries record
	// the time at which they were written.
	Time uint32

	// The transaction identifier of the last committed transaction.
	TransID uint64

	// The location of the metadata snapshot superblock, or zero if no metadata
	// snapshot is held.
	MetadataSnap uint64

	// The root of the data space map. Opaque to this package.
	DataSpaceMapRoot [SpaceMapRootSize]byte

	// The root of the metadata space map. Opaque to this package.
	MetadataSpaceMapRoot [SpaceMapRootSize]byte

	// The root of the top-level mapping tree, keyed by device identifier.
	DataMappingRoot uint64

	// The root of the device details tree, keyed by device identifier.
	DeviceDetailsRoot uint64

	// The size of a data block in 512-byte sectors.
	DataBlockSize uint32

	// The size of a metadata block in 512-byte sectors.
	MetadataBlockSize uint32

	// The number of blocks on the metadata device.
	MetadataNrBlocks uint64

	// Compatible feature flags.
	CompatFlags uint32

	// Read-only compatible feature flags.
	CompatRoFlags uint32

	// Incompatible feature flags.
	IncompatFlags uint32
}

// SuperblockLocation is the metadata block that holds the live superblock.
const SuperblockLocation BlockAddress = 0

// SuperblockMagic is the value of the Magic field of a thin pool superblock.
const SuperblockMagic uint64 = 27022010

// SuperblockCsumXor is the value XOR-ed into the superblock's crc32c before it is stored.
const SuperblockCsumXor uint32 = 160774

// SuperblockVersionMin is the oldest supported metadata format version.
const SuperblockVersionMin uint32 = 1

// SuperblockVersionMax is the newest supported metadata format version.
const SuperblockVersionMax uint32 = 2

// SpaceMapRootSize is the size, in bytes, of each space map root.
const SpaceMapRootSize = 128

// Superblock field offsets.
const (
	SuperblockCsumOffset                 = 0
	SuperblockFlagsOffset                = 4
	SuperblockBlocknrOffset              = 8
	SuperblockUUIDOffset                 = 16
	SuperblockMagicOffset                = 32
	SuperblockVersionOffset              = 40
	SuperblockTimeOffset                 = 44
	SuperblockTransIDOffset              = 48
	SuperblockMetadataSnapOffset         = 56
	SuperblockDataSpaceMapRootOffset     = 64
	SuperblockMetadataSpaceMapRootOffset = 192
	SuperblockDataMappingRootOffset      = 320
	SuperblockDeviceDetailsRootOffset    = 328
	SuperblockDataBlockSizeOffset        = 336
	SuperblockMetadataBlockSizeOffset    = 340
	SuperblockMetadataNrBlocksOffset     = 344
	SuperblockCompatFlagsOffset          = 352
	SuperblockCompatRoFlagsOffset        = 356
	SuperblockIncompatFlagsOffset        = 360

	// SuperblockSize is the number of meaningful bytes at the start of the block.
	SuperblockSize = 364
)
