package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

func TestMemory(t *testing.T) {
	m := NewMemory()
	m.AddDevice(interfaces.DeviceDetails{ID: 4, MappedBlocks: 2}, []types.BlockAddress{7, 8})
	m.AddDevice(interfaces.DeviceDetails{ID: 9, MappedBlocks: 0}, nil)

	assert.Equal(t, []interfaces.DeviceDetails{
		{ID: 4, MappedBlocks: 2},
		{ID: 9},
	}, listDevices(t, m))

	root, found, err := m.LookupMappingRoot(4)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, types.DeviceID(4), root.Device)

	var physical []types.BlockAddress
	for mapping, err := range m.Mappings(root) {
		require.NoError(t, err)
		physical = append(physical, mapping.Physical)
	}
	assert.Equal(t, []types.BlockAddress{7, 8}, physical)
	assert.Equal(t, 1, m.Walks(4))
	assert.Equal(t, 1, m.Lookups())

	m.RemoveRoot(9)
	_, found, err = m.LookupMappingRoot(9)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryInjectedErrors(t *testing.T) {
	boom := errors.New("boom")

	m := NewMemory()
	m.AddDevice(interfaces.DeviceDetails{ID: 1, MappedBlocks: 3}, []types.BlockAddress{1, 2, 3})
	m.InjectDeviceError(1, boom)
	m.InjectMappingError(1, 3, boom)
	m.InjectLookupError(2, boom)

	var devErrs int
	for _, err := range m.Devices() {
		if err != nil {
			devErrs++
		}
	}
	assert.Equal(t, 1, devErrs)

	root, _, err := m.LookupMappingRoot(1)
	require.NoError(t, err)

	var entries, mapErrs int
	for _, err := range m.Mappings(root) {
		if err != nil {
			assert.ErrorIs(t, err, boom)
			mapErrs++
			continue
		}
		entries++
	}
	assert.Equal(t, 3, entries)
	assert.Equal(t, 1, mapErrs)

	_, _, err = m.LookupMappingRoot(2)
	assert.ErrorIs(t, err, boom)
}
