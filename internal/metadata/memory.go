package metadata

import (
	"iter"
	"slices"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// Memory is a MetadataSource held entirely in memory. Devices are enumerated
// in the order they were added. Errors can be injected into any enumeration
// to exercise damage handling.
type Memory struct {
	devices      []interfaces.DeviceDetails
	roots        map[types.DeviceID]interfaces.MappingRoot
	mappings     map[types.BlockAddress][]interfaces.Mapping
	deviceErrors map[int]error
	mappingErrs  map[types.DeviceID]map[int]error
	lookupErrs   map[types.DeviceID]error
	nextRoot     types.BlockAddress

	lookups int
	walks   map[types.DeviceID]int
}

var _ interfaces.MetadataSource = (*Memory)(nil)

// NewMemory creates an empty in-memory source
func NewMemory() *Memory {
	return &Memory{
		roots:        make(map[types.DeviceID]interfaces.MappingRoot),
		mappings:     make(map[types.BlockAddress][]interfaces.Mapping),
		deviceErrors: make(map[int]error),
		mappingErrs:  make(map[types.DeviceID]map[int]error),
		lookupErrs:   make(map[types.DeviceID]error),
		walks:        make(map[types.DeviceID]int),
		nextRoot:     1,
	}
}

// AddDevice adds a device whose virtual block i maps to physical[i].
// details is stored as given; MappedBlocks is not derived from physical.
func (m *Memory) AddDevice(details interfaces.DeviceDetails, physical []types.BlockAddress) {
	root := interfaces.MappingRoot{Device: details.ID, Block: m.nextRoot}
	m.nextRoot++

	mappings := make([]interfaces.Mapping, len(physical))
	for v, p := range physical {
		mappings[v] = interfaces.Mapping{
			Virtual:  types.BlockAddress(v),
			Physical: p,
			Time:     details.CreationTime,
		}
	}

	m.devices = append(m.devices, details)
	m.roots[details.ID] = root
	m.mappings[root.Block] = mappings
}

// RemoveRoot drops a device's entry from the top-level mapping tree while
// keeping its device details
func (m *Memory) RemoveRoot(dev types.DeviceID) {
	delete(m.roots, dev)
}

// InjectDeviceError yields err from Devices before the device at index.
// An index equal to the number of devices yields it last.
func (m *Memory) InjectDeviceError(index int, err error) {
	m.deviceErrors[index] = err
}

// InjectMappingError yields err from the device's Mappings before the
// mapping at index
func (m *Memory) InjectMappingError(dev types.DeviceID, index int, err error) {
	if m.mappingErrs[dev] == nil {
		m.mappingErrs[dev] = make(map[int]error)
	}
	m.mappingErrs[dev][index] = err
}

// InjectLookupError makes LookupMappingRoot fail for dev
func (m *Memory) InjectLookupError(dev types.DeviceID, err error) {
	m.lookupErrs[dev] = err
}

// Lookups returns the number of LookupMappingRoot calls made
func (m *Memory) Lookups() int {
	return m.lookups
}

// Walks returns the number of times a device's mappings were enumerated
func (m *Memory) Walks(dev types.DeviceID) int {
	return m.walks[dev]
}

func (m *Memory) Devices() iter.Seq2[interfaces.DeviceDetails, error] {
	devices := slices.Clone(m.devices)
	return func(yield func(interfaces.DeviceDetails, error) bool) {
		for i := 0; i <= len(devices); i++ {
			if err, ok := m.deviceErrors[i]; ok {
				if !yield(interfaces.DeviceDetails{}, err) {
					return
				}
			}
			if i == len(devices) {
				return
			}
			if !yield(devices[i], nil) {
				return
			}
		}
	}
}

func (m *Memory) LookupMappingRoot(dev types.DeviceID) (interfaces.MappingRoot, bool, error) {
	m.lookups++
	if err, ok := m.lookupErrs[dev]; ok {
		return interfaces.MappingRoot{}, false, err
	}
	root, ok := m.roots[dev]
	return root, ok, nil
}

func (m *Memory) Mappings(root interfaces.MappingRoot) iter.Seq2[interfaces.Mapping, error] {
	mappings := m.mappings[root.Block]
	errs := m.mappingErrs[root.Device]

	return func(yield func(interfaces.Mapping, error) bool) {
		m.walks[root.Device]++
		for i := 0; i <= len(mappings); i++ {
			if err, ok := errs[i]; ok {
				if !yield(interfaces.Mapping{}, err) {
					return
				}
			}
			if i == len(mappings) {
				return
			}
			if !yield(mappings[i], nil) {
				return
			}
		}
	}
}
