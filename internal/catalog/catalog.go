// Package catalog lists the thin devices recorded in pool metadata.
package catalog

import (
	"fmt"

	"github.com/deploymenttheory/go-thinpool/internal/damage"
	"github.com/deploymenttheory/go-thinpool/internal/interfaces"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// DeviceCatalog enumerates every device in the device details tree
type DeviceCatalog struct {
	source interfaces.MetadataSource
}

// NewDeviceCatalog creates a catalog over source
func NewDeviceCatalog(source interfaces.MetadataSource) *DeviceCatalog {
	return &DeviceCatalog{source: source}
}

// List returns every device in ascending id order. Any damage in the device
// details tree is fatal and no devices are returned.
func (c *DeviceCatalog) List() ([]interfaces.DeviceDetails, error) {
	var devices []interfaces.DeviceDetails

	for dev, err := range c.source.Devices() {
		if err != nil {
			return nil, checked(err)
		}

		if n := len(devices); n > 0 && dev.ID <= devices[n-1].ID {
			return nil, damage.Fatal(outOfOrder(devices[n-1].ID, dev.ID))
		}

		devices = append(devices, dev)
	}

	return devices, nil
}

func outOfOrder(prev, id types.DeviceID) *damage.MissingDevices {
	begin := uint64(id)
	end := uint64(prev) + 1
	return &damage.MissingDevices{
		Tree:   damage.TreeDeviceDetails,
		Keys:   types.KeyRange{Begin: &begin, End: &end},
		Reason: fmt.Sprintf("device %d listed after device %d", id, prev),
	}
}

func checked(err error) error {
	if err = damage.Check(err); err != nil {
		if _, ok := err.(*damage.FatalError); ok {
			return err
		}
		return fmt.Errorf("failed to list devices: %w", err)
	}
	return nil
}
