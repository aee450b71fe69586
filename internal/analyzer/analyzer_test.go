package analyzer

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/deploymenttheory/go-thinpool/internal/damage"
	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/metadata"
	"github.com/deploymenttheory/go-thinpool/internal/testutil"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

func device(id types.DeviceID, physical ...types.BlockAddress) (interfaces.DeviceDetails, []types.BlockAddress) {
	return interfaces.DeviceDetails{ID: id, MappedBlocks: uint64(len(physical))}, physical
}

// workedExample: device 1 maps {1,2,3}, device 2 maps {3,4}
func workedExample() *metadata.Memory {
	m := metadata.NewMemory()
	m.AddDevice(device(1, 1, 2, 3))
	m.AddDevice(device(2, 3, 4))
	return m
}

type counts struct {
	Mapped, Exclusive, Shared uint64
}

func summarize(r *Result) map[types.DeviceID]counts {
	out := make(map[types.DeviceID]counts)
	for _, d := range r.Devices {
		out[d.Device.ID] = counts{d.Mapped, d.Exclusive, d.Shared}
	}
	return out
}

func TestAnalyzeWorkedExample(t *testing.T) {
	for _, cacheMappings := range []bool{false, true} {
		t.Run(fmt.Sprintf("CacheMappings=%v", cacheMappings), func(t *testing.T) {
			opts := DefaultOptions()
			opts.CacheMappings = cacheMappings

			result, err := NewExclusivityAnalyzer(workedExample(), opts).Analyze(true)
			require.NoError(t, err)

			assert.Equal(t, map[types.DeviceID]counts{
				1: {Mapped: 3, Exclusive: 2, Shared: 1},
				2: {Mapped: 2, Exclusive: 1, Shared: 1},
			}, summarize(result))
			for _, d := range result.Devices {
				assert.True(t, d.HasExclusivity)
			}
		})
	}
}

func TestAnalyzeKeepsCatalogOrder(t *testing.T) {
	m := metadata.NewMemory()
	m.AddDevice(device(2, 7))
	m.AddDevice(device(5, 7, 8))
	m.AddDevice(device(9))

	result, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	require.NoError(t, err)

	var ids []types.DeviceID
	for _, d := range result.Devices {
		ids = append(ids, d.Device.ID)
	}
	assert.Equal(t, []types.DeviceID{2, 5, 9}, ids)
	assert.Equal(t, counts{}, summarize(result)[9])
}

func TestAnalyzeSkipsPassesWhenNotNeeded(t *testing.T) {
	m := workedExample()

	skipped, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(false)
	require.NoError(t, err)
	assert.Zero(t, m.Lookups())
	assert.Zero(t, m.Walks(1))
	assert.Zero(t, m.Walks(2))

	full, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	require.NoError(t, err)

	require.Len(t, skipped.Devices, len(full.Devices))
	for i := range skipped.Devices {
		assert.Equal(t, full.Devices[i].Mapped, skipped.Devices[i].Mapped)
		assert.Equal(t, full.Devices[i].Device, skipped.Devices[i].Device)
		assert.False(t, skipped.Devices[i].HasExclusivity)
		assert.Zero(t, skipped.Devices[i].Exclusive)
		assert.Zero(t, skipped.Devices[i].Shared)
	}
}

func TestAnalyzeWalksTwice(t *testing.T) {
	m := workedExample()
	_, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Walks(1))
	assert.Equal(t, 2, m.Walks(2))
	assert.Equal(t, 4, m.Lookups())

	m = workedExample()
	opts := DefaultOptions()
	opts.CacheMappings = true
	_, err = NewExclusivityAnalyzer(m, opts).Analyze(true)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Walks(1))
	assert.Equal(t, 1, m.Walks(2))
	assert.Equal(t, 2, m.Lookups())
}

func TestAnalyzeMappingDamageIsFatal(t *testing.T) {
	m := metadata.NewMemory()
	m.AddDevice(device(1, 1, 2))
	m.AddDevice(device(2, 3, 4, 5))
	m.InjectMappingError(2, 1, &damage.MissingMappings{Device: 2, Reason: "checksum mismatch"})

	result, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	assert.Nil(t, result)
	require.ErrorIs(t, err, damage.ErrMetadataDamage)

	var fatal *damage.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, damage.KindMissingMappings, fatal.Kind)
	assert.Contains(t, err.Error(), "device 2")
	assert.Contains(t, err.Error(), "thin_check")

	// device 1 was fully scanned but the second pass never started
	assert.Equal(t, 1, m.Walks(1))
}

func TestAnalyzeUnaddressableBlockIsFatal(t *testing.T) {
	for _, block := range []types.BlockAddress{types.MaxDataBlock + 1, 1 << 63, ^types.BlockAddress(0)} {
		m := metadata.NewMemory()
		m.AddDevice(device(1, 0))
		m.AddDevice(device(2, 5, block))

		result, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
		assert.Nil(t, result)

		var missing *damage.MissingMappings
		require.ErrorAs(t, err, &missing, "block %d", block)
		assert.Equal(t, types.DeviceID(2), missing.Device)
		assert.Equal(t, "[1..2)", missing.Keys.String())
		assert.ErrorIs(t, err, damage.ErrMetadataDamage)
	}
}

func TestAnalyzeMissingRootIsFatal(t *testing.T) {
	m := workedExample()
	m.RemoveRoot(2)

	result, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	assert.Nil(t, result)
	require.ErrorIs(t, err, damage.ErrMetadataDamage)
	assert.Contains(t, err.Error(), "missing mapping tree root")

	var missing *damage.MissingRoot
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, types.DeviceID(2), missing.Device)
}

func TestAnalyzeMissingRootIgnoredWithoutExclusivity(t *testing.T) {
	m := workedExample()
	m.RemoveRoot(2)

	result, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(false)
	require.NoError(t, err)
	assert.Len(t, result.Devices, 2)
}

func TestAnalyzeLookupDamageIsFatal(t *testing.T) {
	m := workedExample()
	m.InjectLookupError(1, &damage.MissingDevices{Reason: "bad node"})

	_, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	var fatal *damage.FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, damage.KindMissingDevices, fatal.Kind)
}

func TestAnalyzeReadFailure(t *testing.T) {
	eio := errors.New("input/output error")
	m := workedExample()
	m.InjectMappingError(1, 0, eio)

	_, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
	require.ErrorIs(t, err, eio)
	assert.NotErrorIs(t, err, damage.ErrMetadataDamage)
	assert.Contains(t, err.Error(), "pass 1: device 1")
}

func TestAnalyzeCountMismatch(t *testing.T) {
	m := metadata.NewMemory()
	m.AddDevice(interfaces.DeviceDetails{ID: 1, MappedBlocks: 4}, []types.BlockAddress{1, 2, 3})

	t.Run("Verified", func(t *testing.T) {
		_, err := NewExclusivityAnalyzer(m, DefaultOptions()).Analyze(true)
		require.ErrorIs(t, err, damage.ErrInvariant)
		assert.NotErrorIs(t, err, damage.ErrMetadataDamage)

		var invariant *damage.InvariantError
		require.ErrorAs(t, err, &invariant)
		assert.Equal(t, damage.InvariantError{Device: 1, Pass: 1, Expected: 4, Observed: 3}, *invariant)
	})

	t.Run("Unverified", func(t *testing.T) {
		result, err := NewExclusivityAnalyzer(m, Options{}).Analyze(true)
		require.NoError(t, err)
		assert.Equal(t, counts{Mapped: 4, Exclusive: 3, Shared: 1}, summarize(result)[1])
	})

	t.Run("Exclusive Exceeds Mapped", func(t *testing.T) {
		over := metadata.NewMemory()
		over.AddDevice(interfaces.DeviceDetails{ID: 1, MappedBlocks: 1}, []types.BlockAddress{1, 2})

		_, err := NewExclusivityAnalyzer(over, Options{}).Analyze(true)
		assert.ErrorIs(t, err, damage.ErrInvariant)
	})
}

func TestAnalyzeLogsPasses(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	opts := DefaultOptions()
	opts.Logger = logger
	_, err := NewExclusivityAnalyzer(workedExample(), opts).Analyze(true)
	require.NoError(t, err)

	var passes []int
	for _, entry := range hook.AllEntries() {
		if pass, ok := entry.Data["pass"]; ok {
			passes = append(passes, pass.(int))
		}
	}
	assert.Equal(t, []int{1, 1, 2, 2}, passes)
}

func TestAnalyzeOnDisk(t *testing.T) {
	img := testutil.NewImage()
	img.LeafCapacity = 4
	layout := img.WritePool([]testutil.ThinDevice{
		{ID: 1, Physical: []types.BlockAddress{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{ID: 2, Physical: []types.BlockAddress{1, 2, 3, 4, 5, 20, 21}, CreationTime: 1},
		{ID: 3, Physical: []types.BlockAddress{1, 30}, CreationTime: 2},
	})
	img.WriteSuperblock(testutil.NewSuperblock(layout))

	pool, err := metadata.Open(img.WriteFile(t), metadata.OpenOptions{CacheBlocks: 8})
	require.NoError(t, err)
	defer pool.Close()

	result, err := NewExclusivityAnalyzer(pool, DefaultOptions()).Analyze(true)
	require.NoError(t, err)
	assert.Equal(t, map[types.DeviceID]counts{
		1: {Mapped: 10, Exclusive: 5, Shared: 5},
		2: {Mapped: 7, Exclusive: 2, Shared: 5},
		3: {Mapped: 2, Exclusive: 1, Shared: 1},
	}, summarize(result))
}

func TestAnalyzeOnDiskMappingDamage(t *testing.T) {
	img := testutil.NewImage()
	img.LeafCapacity = 2
	layout := img.WritePool([]testutil.ThinDevice{
		{ID: 1, Physical: []types.BlockAddress{1, 2, 3}},
		{ID: 2, Physical: []types.BlockAddress{3, 4, 5}},
	})
	img.WriteSuperblock(testutil.NewSuperblock(layout))
	img.Block(layout.MappingNodes[2][1])[types.NodeHeaderSize] ^= 0xff

	pool, err := metadata.NewPool(img.Reader(), false)
	require.NoError(t, err)

	result, err := NewExclusivityAnalyzer(pool, DefaultOptions()).Analyze(true)
	assert.Nil(t, result)

	var missing *damage.MissingMappings
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, types.DeviceID(2), missing.Device)
}

// TestAnalyzeProperties checks the counts against a direct reference count
// over random pools
func TestAnalyzeProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nDevices := rapid.IntRange(0, 6).Draw(t, "devices")
		m := metadata.NewMemory()

		refs := make(map[types.BlockAddress]int)
		var physical [][]types.BlockAddress
		for d := 0; d < nDevices; d++ {
			raw := rapid.SliceOfN(rapid.Uint64Range(0, 50_000), 0, 40).Draw(t, fmt.Sprintf("blocks%d", d))
			blocks := make([]types.BlockAddress, len(raw))
			for i, b := range raw {
				blocks[i] = types.BlockAddress(b)
				refs[blocks[i]]++
			}
			physical = append(physical, blocks)
			m.AddDevice(device(types.DeviceID(d), blocks...))
		}

		opts := DefaultOptions()
		opts.CacheMappings = rapid.Bool().Draw(t, "cacheMappings")
		result, err := NewExclusivityAnalyzer(m, opts).Analyze(true)
		if err != nil {
			t.Fatalf("analyze: %v", err)
		}

		for d, stats := range result.Devices {
			var exclusive uint64
			for _, b := range physical[d] {
				if refs[b] == 1 {
					exclusive++
				}
			}
			if stats.Exclusive != exclusive {
				t.Fatalf("device %d: exclusive %d, want %d", d, stats.Exclusive, exclusive)
			}
			if stats.Exclusive+stats.Shared != stats.Mapped {
				t.Fatalf("device %d: %d + %d != %d", d, stats.Exclusive, stats.Shared, stats.Mapped)
			}
		}
	})
}
