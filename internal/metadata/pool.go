// Package metadata provides read-only views of thin pool metadata as
// interfaces.MetadataSource values: Pool reads an on-disk metadata device and
// Memory holds synthetic metadata for tests and tooling.
package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"iter"

	"github.com/deploymenttheory/go-thinpool/internal/damage"
	"github.com/deploymenttheory/go-thinpool/internal/disk"
	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/managers/btrees"
	"github.com/deploymenttheory/go-thinpool/internal/parsers/superblock"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// ErrNoMetadataSnap is returned when a metadata snapshot is requested but
// the pool holds none.
var ErrNoMetadataSnap = errors.New("no metadata snapshot is held")

// OpenOptions control how Open reads the metadata device
type OpenOptions struct {
	// UseMetadataSnap reads the superblock copy at the held metadata
	// snapshot root instead of the live superblock. The device is then
	// opened without O_EXCL.
	UseMetadataSnap bool

	// Exclusive opens the device with O_EXCL when the live superblock is used
	Exclusive bool

	// CacheBlocks bounds the metadata block cache
	CacheBlocks int
}

// Pool is a MetadataSource over an on-disk metadata device
type Pool struct {
	blockReader interfaces.BlockDeviceReader
	device      *disk.MetadataDevice
	superblock  interfaces.SuperblockReader
	mappingTree *btrees.BTreeNavigator
	detailsTree *btrees.BTreeNavigator
}

var _ interfaces.MetadataSource = (*Pool)(nil)

// Open opens the metadata device at path and reads its superblock
func Open(path string, opts OpenOptions) (*Pool, error) {
	device, err := disk.Open(path, disk.Options{
		Exclusive:   opts.Exclusive && !opts.UseMetadataSnap,
		CacheBlocks: opts.CacheBlocks,
	})
	if err != nil {
		return nil, err
	}

	pool, err := NewPool(device, opts.UseMetadataSnap)
	if err != nil {
		device.Close()
		return nil, err
	}
	pool.device = device

	return pool, nil
}

// NewPool reads the superblock from blockReader. With useMetadataSnap the
// live superblock only supplies the held root, and every tree is read from
// the superblock copy found there.
func NewPool(blockReader interfaces.BlockDeviceReader, useMetadataSnap bool) (*Pool, error) {
	sb, err := readSuperblock(blockReader, types.SuperblockLocation)
	if err != nil {
		return nil, err
	}

	if useMetadataSnap {
		if !sb.HasMetadataSnap() {
			return nil, ErrNoMetadataSnap
		}
		sb, err = readSuperblock(blockReader, sb.MetadataSnap())
		if err != nil {
			return nil, fmt.Errorf("failed to read metadata snapshot: %w", err)
		}
	}

	return &Pool{
		blockReader: blockReader,
		superblock:  sb,
		mappingTree: btrees.NewBTreeNavigator(blockReader, sb.DataMappingRoot(), types.BlockNumberValueSize),
		detailsTree: btrees.NewBTreeNavigator(blockReader, sb.DeviceDetailsRoot(), types.DeviceDetailsValueSize),
	}, nil
}

func readSuperblock(blockReader interfaces.BlockDeviceReader, location types.BlockAddress) (interfaces.SuperblockReader, error) {
	if !blockReader.IsValidAddress(location) {
		return nil, fmt.Errorf("superblock location %d is beyond the end of the metadata device", location)
	}

	data, err := blockReader.ReadBlock(location)
	if err != nil {
		return nil, fmt.Errorf("failed to read superblock: %w", err)
	}

	sb, err := superblock.NewSuperblockReader(data, location)
	if err != nil {
		return nil, fmt.Errorf("failed to parse superblock: %w", err)
	}

	return sb, nil
}

// Superblock returns the superblock the pool's trees are read from
func (p *Pool) Superblock() interfaces.SuperblockReader {
	return p.superblock
}

// Device returns the underlying metadata device, or nil when the pool was
// not created by Open
func (p *Pool) Device() *disk.MetadataDevice {
	return p.device
}

// Close closes the metadata device opened by Open
func (p *Pool) Close() error {
	if p.device != nil {
		return p.device.Close()
	}
	return nil
}

// Devices enumerates the device details tree
func (p *Pool) Devices() iter.Seq2[interfaces.DeviceDetails, error] {
	return func(yield func(interfaces.DeviceDetails, error) bool) {
		for entry, err := range p.detailsTree.Entries() {
			if err != nil {
				if !yield(interfaces.DeviceDetails{}, missingDevices(damage.TreeDeviceDetails, err)) {
					return
				}
				continue
			}

			if !yield(decodeDeviceDetails(entry), nil) {
				return
			}
		}
	}
}

// LookupMappingRoot finds a device in the top-level mapping tree
func (p *Pool) LookupMappingRoot(dev types.DeviceID) (interfaces.MappingRoot, bool, error) {
	value, found, err := p.mappingTree.Find(uint64(dev))
	if err != nil {
		return interfaces.MappingRoot{}, false, missingDevices(damage.TreeTopLevel, err)
	}
	if !found {
		return interfaces.MappingRoot{}, false, nil
	}

	return interfaces.MappingRoot{
		Device: dev,
		Block:  types.BlockAddress(binary.LittleEndian.Uint64(value)),
	}, true, nil
}

// Mappings enumerates one device mapping tree
func (p *Pool) Mappings(root interfaces.MappingRoot) iter.Seq2[interfaces.Mapping, error] {
	tree := btrees.NewBTreeNavigator(p.blockReader, root.Block, types.BlockTimeValueSize)

	return func(yield func(interfaces.Mapping, error) bool) {
		for entry, err := range tree.Entries() {
			if err != nil {
				if !yield(interfaces.Mapping{}, missingMappings(root.Device, err)) {
					return
				}
				continue
			}

			bt := types.UnpackBlockTime(binary.LittleEndian.Uint64(entry.Value))
			if !yield(interfaces.Mapping{
				Virtual:  types.BlockAddress(entry.Key),
				Physical: bt.Block,
				Time:     bt.Time,
			}, nil) {
				return
			}
		}
	}
}

func decodeDeviceDetails(entry interfaces.BTreeLeafEntry) interfaces.DeviceDetails {
	le := binary.LittleEndian
	return interfaces.DeviceDetails{
		ID:            types.DeviceID(entry.Key),
		MappedBlocks:  le.Uint64(entry.Value[0:8]),
		TransactionID: le.Uint64(entry.Value[8:16]),
		CreationTime:  le.Uint32(entry.Value[16:20]),
		SnapshotTime:  le.Uint32(entry.Value[20:24]),
	}
}

// missingDevices converts node damage in the device details or top-level
// tree. Read failures are passed through.
func missingDevices(tree string, err error) error {
	var nodeErr *btrees.NodeError
	if !errors.As(err, &nodeErr) {
		return err
	}
	return &damage.MissingDevices{Tree: tree, Keys: nodeErr.Keys, Reason: reason(nodeErr)}
}

func missingMappings(dev types.DeviceID, err error) error {
	var nodeErr *btrees.NodeError
	if !errors.As(err, &nodeErr) {
		return err
	}
	return &damage.MissingMappings{Device: dev, Keys: nodeErr.Keys, Reason: reason(nodeErr)}
}

func reason(nodeErr *btrees.NodeError) string {
	return fmt.Sprintf("block %d: %v", nodeErr.Block, nodeErr.Err)
}
