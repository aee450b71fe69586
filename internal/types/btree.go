package types

// B-Trees
// Every tree in the metadata (the device details tree, the top-level mapping
// tree and each device's mapping tree) is a persistent-data B-tree. All nodes
// share the same layout: a node header, then max_entries 64-bit keys, then
// max_entries values of value_size bytes each.

// NodeHeaderT is the header at the start of every B-tree node.
type NodeHeaderT struct {
	// The crc32c checksum of the node, excluding this field.
	Csum uint32

	// The node's flags.
	// For the values used in this bit field, see B-Tree Node Flags.
	Flags uint32

	// The metadata block this node was written to.
	// A node read from any other location is misdirected and must be rejected.
	Blocknr uint64

	// The number of keys stored in this node.
	NrEntries uint32

	// The capacity of the key and value arrays.
	// The value array starts at NodeHeaderSize + 8*MaxEntries.
	MaxEntries uint32

	// The size, in bytes, of each value.
	// Internal nodes always store 8-byte child block numbers.
	ValueSize uint32

	// Padding to keep the key array 8-byte aligned.
	Padding uint32
}

// NodeHeaderSize is the on-disk size, in bytes, of NodeHeaderT.
const NodeHeaderSize = 32

// B-Tree Node Flags

// InternalNode indicates the node's values are child block numbers.
const InternalNode uint32 = 0x00000001

// LeafNode indicates the node's values are tree payloads.
const LeafNode uint32 = 0x00000002

// B-Tree Checksums

// BtreeCsumXor is the value XOR-ed into a node's crc32c before it is stored.
const BtreeCsumXor uint32 = 121107

// Value Sizes

// BlockNumberValueSize is the value size of internal nodes and of the top-level
// mapping tree, whose values are 64-bit block numbers.
const BlockNumberValueSize uint32 = 8

// BlockTimeValueSize is the value size of a device mapping tree leaf.
const BlockTimeValueSize uint32 = 8

// DeviceDetailsValueSize is the value size of a device details tree leaf.
const DeviceDetailsValueSize uint32 = 24

// MaxTreeDepth bounds the height of any tree walked. A walk that descends
// further is following a reference loop.
const MaxTreeDepth = 16
