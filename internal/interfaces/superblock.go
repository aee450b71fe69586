// File: internal/interfaces/superblock.go
package interfaces

import (
	"github.com/google/uuid"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// SuperblockReader provides methods for reading a validated thin pool superblock
type SuperblockReader interface {
	// Location returns the metadata block the superblock was read from
	Location() types.BlockAddress

	// UUID returns the pool's identifier
	UUID() uuid.UUID

	// Version returns the metadata format version
	Version() uint32

	// Time returns the pool's current time counter
	Time() uint32

	// TransactionID returns the identifier of the last committed transaction
	TransactionID() uint64

	// MetadataSnap returns the location of the held metadata snapshot
	MetadataSnap() types.BlockAddress

	// HasMetadataSnap checks if a metadata snapshot is held
	HasMetadataSnap() bool

	// DataMappingRoot returns the root of the top-level mapping tree
	DataMappingRoot() types.BlockAddress

	// DeviceDetailsRoot returns the root of the device details tree
	DeviceDetailsRoot() types.BlockAddress

	// DataBlockSize returns the data block size in sectors
	DataBlockSize() uint32

	// MetadataNrBlocks returns the number of blocks on the metadata device
	MetadataNrBlocks() uint64

	// Superblock returns the decoded on-disk structure
	Superblock() *types.SuperblockT
}
