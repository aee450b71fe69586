package damage

import (
	"errors"
	"fmt"

	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// FatalError is the error a run ends with once damage has been observed.
type FatalError struct {
	// The damage variant observed
	Kind Kind

	// A description naming the tree, device and keys involved
	Context string

	// The notification itself
	Damage Damage
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMetadataDamage.Error(), e.Context)
}

// Unwrap exposes both ErrMetadataDamage and the damage variant to errors.Is/As.
func (e *FatalError) Unwrap() []error {
	return []error{ErrMetadataDamage, e.Damage}
}

// Fatal is the damage policy: every notification aborts the run.
func Fatal(d Damage) error {
	var context string
	switch d := d.(type) {
	case *MissingDevices:
		context = fmt.Sprintf("%s damaged at keys %s (%s)", d.tree(), d.Keys, d.Reason)
	case *MissingMappings:
		context = fmt.Sprintf("mapping tree of device %d damaged at blocks %s (%s)", d.Device, d.Keys, d.Reason)
	case *MissingRoot:
		context = fmt.Sprintf("%s for device %d", KindMissingRoot, d.Device)
	default:
		panic(fmt.Sprintf("damage: unhandled variant %T", d))
	}

	return &FatalError{
		Kind:    d.Kind(),
		Context: context,
		Damage:  d,
	}
}

// Check routes an error from a metadata enumeration through the policy.
// Damage becomes a FatalError; any other error is returned unchanged.
func Check(err error) error {
	if err == nil {
		return nil
	}

	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal
	}

	var d Damage
	if errors.As(err, &d) {
		return Fatal(d)
	}

	return err
}

// ErrInvariant matches every InvariantError.
var ErrInvariant = errors.New("internal invariant violated")

// InvariantError reports that the number of mappings walked for a device
// disagrees with its device details record. This is a defect in the analyzer
// or the walker, not metadata damage.
type InvariantError struct {
	// The device whose counts disagree
	Device types.DeviceID

	// The scan pass that observed the mismatch
	Pass int

	// The mapped block count from the device details tree
	Expected uint64

	// The number of mapping entries visited
	Observed uint64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: device %d mapped %d blocks but pass %d visited %d mappings",
		ErrInvariant.Error(), e.Device, e.Expected, e.Pass, e.Observed)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
