// Package damage defines how structural corruption found while walking thin
// pool metadata is reported and acted upon.
//
// Walkers report damage as one of a closed set of variants. Every variant is
// fatal: Fatal turns it into the single error returned to the operator, and no
// caller attempts to continue past it.
package damage

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// ErrMetadataDamage matches every error produced by Fatal.
var ErrMetadataDamage = errors.New("metadata contains errors (run thin_check for details)")

// Kind identifies a damage variant.
type Kind int

const (
	// KindMissingDevices is damage in the device details tree or the top-level mapping tree.
	KindMissingDevices Kind = iota + 1
	// KindMissingMappings is damage in one device's mapping tree.
	KindMissingMappings
	// KindMissingRoot is a device with no entry in the top-level mapping tree.
	KindMissingRoot
)

func (k Kind) String() string {
	switch k {
	case KindMissingDevices:
		return "missing devices"
	case KindMissingMappings:
		return "missing mappings"
	case KindMissingRoot:
		return "missing mapping tree root"
	default:
		return fmt.Sprintf("unknown damage kind %d", int(k))
	}
}

// Damage is a fact that a traversal met structurally invalid metadata.
// The implementations in this package are the only ones.
type Damage interface {
	error
	Kind() Kind
	damage()
}

// Trees keyed by device id. MissingDevices names the one it was found in.
const (
	TreeDeviceDetails = "device details tree"
	TreeTopLevel      = "top-level mapping tree"
)

// MissingDevices reports that part of the device details tree or the
// top-level mapping tree could not be read.
type MissingDevices struct {
	// The tree the damage was found in, TreeDeviceDetails when empty
	Tree string

	// The device ids lost with the unreadable subtree
	Keys types.KeyRange

	// What the walker found wrong
	Reason string
}

func (d *MissingDevices) Kind() Kind { return KindMissingDevices }
func (d *MissingDevices) damage()    {}

func (d *MissingDevices) Error() string {
	return fmt.Sprintf("missing devices %s in %s: %s", d.Keys, d.tree(), d.Reason)
}

func (d *MissingDevices) tree() string {
	if d.Tree == "" {
		return TreeDeviceDetails
	}
	return d.Tree
}

// MissingMappings reports that part of one device's mapping tree could not be read.
type MissingMappings struct {
	// The device whose mappings were lost
	Device types.DeviceID

	// The virtual blocks lost with the unreadable subtree
	Keys types.KeyRange

	// What the walker found wrong
	Reason string
}

func (d *MissingMappings) Kind() Kind { return KindMissingMappings }
func (d *MissingMappings) damage()    {}

func (d *MissingMappings) Error() string {
	return fmt.Sprintf("missing mappings for device %d %s: %s", d.Device, d.Keys, d.Reason)
}

// MissingRoot reports a device listed in the device details tree that has no
// entry in the top-level mapping tree.
type MissingRoot struct {
	// The device without a mapping tree
	Device types.DeviceID
}

func (d *MissingRoot) Kind() Kind { return KindMissingRoot }
func (d *MissingRoot) damage()    {}

func (d *MissingRoot) Error() string {
	return fmt.Sprintf("missing mapping tree root for device %d", d.Device)
}
