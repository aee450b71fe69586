package objects

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// ChecksumInspector verifies the leading crc32c of a metadata block
type ChecksumInspector struct {
	Block []byte // full raw block including the checksum field
	Xor   uint32 // per-structure salt folded into the stored checksum
}

func NewChecksumInspector(block []byte, xor uint32) *ChecksumInspector {
	return &ChecksumInspector{Block: block, Xor: xor}
}

// Checksum returns the checksum stored in the block
func (c *ChecksumInspector) Checksum() uint32 {
	if len(c.Block) < types.ChecksumSize {
		return 0
	}
	return binary.LittleEndian.Uint32(c.Block[:types.ChecksumSize])
}

// Calculate computes the checksum the block should carry
func (c *ChecksumInspector) Calculate() uint32 {
	if len(c.Block) < types.ChecksumSize {
		return 0
	}
	return BlockChecksum(c.Block[types.ChecksumSize:], c.Xor)
}

func (c *ChecksumInspector) VerifyChecksum() bool {
	if len(c.Block) < types.ChecksumSize {
		return false
	}
	return c.Checksum() == c.Calculate()
}

// BlockChecksum is the persistent-data block checksum: the raw crc32c register
// seeded with all ones and left uninverted, XOR-ed with a salt.
// crc32.Checksum inverts on entry and exit, so its complement is the raw register.
func BlockChecksum(payload []byte, xor uint32) uint32 {
	return ^crc32.Checksum(payload, castagnoli) ^ xor
}
