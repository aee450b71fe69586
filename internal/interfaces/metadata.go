// File: internal/interfaces/metadata.go
package interfaces

import (
	"iter"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// DeviceDetails is one entry of the device details tree
type DeviceDetails struct {
	// The thin device identifier
	ID types.DeviceID

	// The number of data blocks mapped by the device
	MappedBlocks uint64

	// The transaction in which the device was last changed
	TransactionID uint64

	// The pool time at which the device was created
	CreationTime uint32

	// The pool time at which the device was last snapshotted
	SnapshotTime uint32
}

// Mapping is one entry of a device mapping tree
type Mapping struct {
	// The device-relative block
	Virtual types.BlockAddress

	// The data device block it maps to
	Physical types.BlockAddress

	// The pool time at which the mapping was written
	Time uint32
}

// MappingRoot locates the mapping tree of one device
type MappingRoot struct {
	// The device the tree belongs to
	Device types.DeviceID

	// The root node of the tree
	Block types.BlockAddress
}

// MetadataSource is a read-only, frozen view of thin pool metadata.
//
// Enumerations are lazy and restartable: every range over a returned sequence
// walks the tree again from its root. When part of a tree cannot be resolved
// the sequence yields a non-nil error in place of the entries it lost, and
// continues with the rest of the tree if the caller keeps ranging.
type MetadataSource interface {
	// Devices enumerates the device details tree in ascending id order
	Devices() iter.Seq2[DeviceDetails, error]

	// LookupMappingRoot finds a device's mapping tree in the top-level tree.
	// It returns false when the device has no entry.
	LookupMappingRoot(dev types.DeviceID) (MappingRoot, bool, error)

	// Mappings enumerates a device mapping tree in ascending virtual block order
	Mappings(root MappingRoot) iter.Seq2[Mapping, error]
}
