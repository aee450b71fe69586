// File: internal/interfaces/block_device.go
package interfaces

import (
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// BlockDeviceReader provides methods for reading from the metadata device
type BlockDeviceReader interface {
	// ReadBlock reads a single block at the specified address
	ReadBlock(address types.BlockAddress) ([]byte, error)

	// BlockSize returns the size of a single block in bytes
	BlockSize() uint32

	// TotalBlocks returns the total number of blocks on the device
	TotalBlocks() uint64

	// IsValidAddress checks if a block address is valid
	IsValidAddress(address types.BlockAddress) bool
}

// BlockDeviceInfo provides information about an opened metadata device
type BlockDeviceInfo interface {
	// DevicePath returns the system path to the device
	DevicePath() string

	// IsExclusive reports whether the device was opened exclusively
	IsExclusive() bool
}
