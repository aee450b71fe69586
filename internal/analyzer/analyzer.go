// Package analyzer computes how many of each thin device's mapped blocks it
// owns exclusively and how many it shares with other devices.
//
// The scan runs in two passes over every device mapping tree. The first
// records, for every data block, whether one or several devices reference
// it. The second walks each tree again and counts the blocks found to be
// exclusive. Only a few bits per data block are held between passes.
package analyzer

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-thinpool/internal/catalog"
	"github.com/deploymenttheory/go-thinpool/internal/damage"
	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/tracker"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// Options tune an analysis run
type Options struct {
	// VerifyCounts checks the mappings walked for each device against its
	// mapped block count
	VerifyCounts bool

	// CacheMappings keeps each device's data blocks from the first pass in
	// memory instead of walking the mapping trees a second time
	CacheMappings bool

	// Logger receives per device debug output. Nil discards it.
	Logger logrus.FieldLogger
}

// DefaultOptions returns the options used by the command line tool
func DefaultOptions() Options {
	return Options{VerifyCounts: true}
}

// DeviceStats is the result for one device
type DeviceStats struct {
	Device         interfaces.DeviceDetails
	Mapped         uint64
	Exclusive      uint64
	Shared         uint64
	HasExclusivity bool
}

// Result holds the statistics of every device in catalog order
type Result struct {
	Devices []DeviceStats
}

// ExclusivityAnalyzer runs the two pass scan over one metadata source
type ExclusivityAnalyzer struct {
	source  interfaces.MetadataSource
	catalog *catalog.DeviceCatalog
	opts    Options
	log     logrus.FieldLogger
}

// NewExclusivityAnalyzer creates an analyzer over source
func NewExclusivityAnalyzer(source interfaces.MetadataSource, opts Options) *ExclusivityAnalyzer {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	return &ExclusivityAnalyzer{
		source:  source,
		catalog: catalog.NewDeviceCatalog(source),
		opts:    opts,
		log:     log,
	}
}

// Analyze lists every device and, when needExclusive is set, computes its
// exclusive and shared block counts. Any damage or failure ends the run
// with no result.
func (a *ExclusivityAnalyzer) Analyze(needExclusive bool) (*Result, error) {
	devices, err := a.catalog.List()
	if err != nil {
		return nil, err
	}
	a.log.WithField("devices", len(devices)).Debug("listed devices")

	result := &Result{Devices: make([]DeviceStats, len(devices))}
	for i, dev := range devices {
		result.Devices[i] = DeviceStats{Device: dev, Mapped: dev.MappedBlocks}
	}

	if !needExclusive {
		return result, nil
	}

	states := tracker.NewBlockStateTracker()
	var cached [][]types.BlockAddress
	if a.opts.CacheMappings {
		cached = make([][]types.BlockAddress, len(devices))
	}

	for i, dev := range devices {
		var blocks []types.BlockAddress
		visited, err := a.walk(1, dev, func(m interfaces.Mapping) {
			states.Increment(m.Physical)
			if cached != nil {
				blocks = append(blocks, m.Physical)
			}
		})
		if err != nil {
			return nil, err
		}
		if cached != nil {
			cached[i] = blocks
		}
		a.logPass(1, dev, visited)
	}

	for i, dev := range devices {
		var exclusive uint64
		count := func(block types.BlockAddress) {
			if states.State(block) == tracker.Exclusive {
				exclusive++
			}
		}

		var visited uint64
		if cached != nil {
			for _, block := range cached[i] {
				count(block)
			}
			visited = uint64(len(cached[i]))
		} else {
			visited, err = a.walk(2, dev, func(m interfaces.Mapping) { count(m.Physical) })
			if err != nil {
				return nil, err
			}
		}
		a.logPass(2, dev, visited)

		if exclusive > dev.MappedBlocks {
			return nil, &damage.InvariantError{Device: dev.ID, Pass: 2, Expected: dev.MappedBlocks, Observed: exclusive}
		}

		stats := &result.Devices[i]
		stats.Exclusive = exclusive
		stats.Shared = dev.MappedBlocks - exclusive
		stats.HasExclusivity = true
	}

	return result, nil
}

// walk resolves a device's mapping tree and calls visit for every entry.
// It returns the number of entries visited.
func (a *ExclusivityAnalyzer) walk(pass int, dev interfaces.DeviceDetails, visit func(interfaces.Mapping)) (uint64, error) {
	root, found, err := a.source.LookupMappingRoot(dev.ID)
	if err != nil {
		return 0, a.fail(pass, dev.ID, err)
	}
	if !found {
		return 0, damage.Fatal(&damage.MissingRoot{Device: dev.ID})
	}

	var visited uint64
	for m, err := range a.source.Mappings(root) {
		if err != nil {
			return 0, a.fail(pass, dev.ID, err)
		}
		if m.Physical > types.MaxDataBlock {
			return 0, damage.Fatal(unaddressable(dev.ID, m))
		}
		visit(m)
		visited++
	}

	if a.opts.VerifyCounts && visited != dev.MappedBlocks {
		return 0, &damage.InvariantError{Device: dev.ID, Pass: pass, Expected: dev.MappedBlocks, Observed: visited}
	}

	return visited, nil
}

// unaddressable reports a mapping to a data block no block/time value can hold
func unaddressable(dev types.DeviceID, m interfaces.Mapping) *damage.MissingMappings {
	begin := uint64(m.Virtual)
	end := begin + 1
	return &damage.MissingMappings{
		Device: dev,
		Keys:   types.KeyRange{Begin: &begin, End: &end},
		Reason: fmt.Sprintf("data block %d is beyond the maximum %d", m.Physical, types.MaxDataBlock),
	}
}

// fail routes err through the damage policy. Errors that are not damage are
// annotated with where the scan stopped.
func (a *ExclusivityAnalyzer) fail(pass int, dev types.DeviceID, err error) error {
	err = damage.Check(err)

	var fatal *damage.FatalError
	if errors.As(err, &fatal) {
		return err
	}
	return fmt.Errorf("pass %d: device %d: %w", pass, dev, err)
}

func (a *ExclusivityAnalyzer) logPass(pass int, dev interfaces.DeviceDetails, entries uint64) {
	a.log.WithFields(logrus.Fields{
		"device":  dev.ID,
		"pass":    pass,
		"entries": entries,
	}).Debug("walked mapping tree")
}
