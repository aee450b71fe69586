// Package types implements the on-disk data structures of dm-thin pool metadata.
// Layouts follow the persistent-data format written by the Linux dm-thin-pool
// target: little endian, fixed 4096-byte metadata blocks.
package types

import "strconv"

// General-Purpose Types
// Basic types that are used in a variety of contexts, and aren't associated with
// any particular tree.

// BlockAddress identifies a block. Depending on context it addresses either the
// metadata device (tree nodes, superblocks) or the data device (mapped blocks).
type BlockAddress uint64

// DeviceID is the 24-bit identifier of a thin device, stored widened to 64 bits
// as the key of the device details tree and the top-level mapping tree.
type DeviceID uint64

// UUID represents the pool's universally unique identifier.
type UUID [16]byte

// MetadataBlockSize is the size, in bytes, of every metadata block.
// The kernel target only supports 4KiB metadata blocks.
const MetadataBlockSize uint32 = 4096

// SectorSize is the size, in bytes, of a sector. Data block sizes in the
// superblock are expressed in sectors.
const SectorSize uint64 = 512

// ChecksumSize is the size, in bytes, of the leading crc32c checksum field that
// every checksummed metadata block carries.
const ChecksumSize = 4

// KeyRange is a half-open range [Begin, End) of B-tree keys. A nil bound is
// unbounded on that side.
type KeyRange struct {
	// The lowest key included in the range, or nil when unbounded below.
	Begin *uint64

	// The first key past the range, or nil when unbounded above.
	End *uint64
}

// Contains reports whether key lies within the range.
func (r KeyRange) Contains(key uint64) bool {
	if r.Begin != nil && key < *r.Begin {
		return false
	}
	if r.End != nil && key >= *r.End {
		return false
	}
	return true
}

// String formats the range as [begin..end), with '-' for an unbounded side.
func (r KeyRange) String() string {
	begin, end := "-", "-"
	if r.Begin != nil {
		begin = strconv.FormatUint(*r.Begin, 10)
	}
	if r.End != nil {
		end = strconv.FormatUint(*r.End, 10)
	}
	return "[" + begin + ".." + end + ")"
}
