package types

// Thin Devices

// DeviceDetailsT is the value stored in the device details tree for each thin device.
type DeviceDetailsT struct {
	// The number of data blocks mapped by the device.
	MappedBlocks uint64

	// The transaction in which the device was last changed.
	TransactionID uint64

	// The pool time at which the device was created.
	CreationTime uint32

	// The pool time at which the device was last snapshotted.
	SnapshottedTime uint32
}

// BlockTimeT is the value stored in a device mapping tree for each mapped
// virtual block.
type BlockTimeT struct {
	// The data block the virtual block maps to.
	Block BlockAddress

	// The pool time at which the mapping was written.
	Time uint32
}

// BlockTimeShift is the number of low bits of a packed block/time value that
// hold the time.
const BlockTimeShift = 24

// BlockTimeMask selects the time from a packed block/time value.
const BlockTimeMask uint64 = (1 << BlockTimeShift) - 1

// MaxDataBlock is the highest data block a packed block/time value can hold.
const MaxDataBlock BlockAddress = 1<<(64-BlockTimeShift) - 1

// PackBlockTime packs a block/time pair into its on-disk 64-bit form.
func PackBlockTime(bt BlockTimeT) uint64 {
	return uint64(bt.Block)<<BlockTimeShift | uint64(bt.Time)&BlockTimeMask
}

// UnpackBlockTime splits an on-disk 64-bit block/time value.
func UnpackBlockTime(v uint64) BlockTimeT {
	return BlockTimeT{
		Block: BlockAddress(v >> BlockTimeShift),
		Time:  uint32(v & BlockTimeMask),
	}
}
