package ls

import (
	"fmt"
	"strings"

	"github.com/docker/go-units"

	"github.com/deploymenttheory/go-thinpool/internal/analyzer"
	"github.com/deploymenttheory/go-thinpool/internal/types"
)

// Field is a report column
type Field string

// Report columns
const (
	FieldDev              Field = "DEV"
	FieldMappedBlocks     Field = "MAPPED_BLOCKS"
	FieldExclusiveBlocks  Field = "EXCLUSIVE_BLOCKS"
	FieldSharedBlocks     Field = "SHARED_BLOCKS"
	FieldMappedSectors    Field = "MAPPED_SECTORS"
	FieldExclusiveSectors Field = "EXCLUSIVE_SECTORS"
	FieldSharedSectors    Field = "SHARED_SECTORS"
	FieldMappedBytes      Field = "MAPPED_BYTES"
	FieldExclusiveBytes   Field = "EXCLUSIVE_BYTES"
	FieldSharedBytes      Field = "SHARED_BYTES"
	FieldMapped           Field = "MAPPED"
	FieldExclusive        Field = "EXCLUSIVE"
	FieldShared           Field = "SHARED"
	FieldTransaction      Field = "TRANSACTION"
	FieldCreateTime       Field = "CREATE_TIME"
	FieldSnapTime         Field = "SNAP_TIME"
)

// AllFields lists every column in documentation order
var AllFields = []Field{
	FieldDev,
	FieldMappedBlocks, FieldExclusiveBlocks, FieldSharedBlocks,
	FieldMappedSectors, FieldExclusiveSectors, FieldSharedSectors,
	FieldMappedBytes, FieldExclusiveBytes, FieldSharedBytes,
	FieldMapped, FieldExclusive, FieldShared,
	FieldTransaction, FieldCreateTime, FieldSnapTime,
}

// DefaultFields is the column set used when none is requested
var DefaultFields = []Field{FieldDev, FieldMapped, FieldCreateTime, FieldSnapTime}

// ParseFields parses a comma separated list of column names
func ParseFields(list string) ([]Field, error) {
	if strings.TrimSpace(list) == "" {
		return nil, fmt.Errorf("no fields given")
	}

	var fields []Field
	for _, name := range strings.Split(list, ",") {
		f := Field(strings.ToUpper(strings.TrimSpace(name)))
		if !f.Valid() {
			return nil, fmt.Errorf("unknown field %q (valid fields: %s)", name, FieldNames())
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// FieldNames returns every column name, comma separated
func FieldNames() string {
	names := make([]string, len(AllFields))
	for i, f := range AllFields {
		names[i] = string(f)
	}
	return strings.Join(names, ",")
}

// Valid reports whether f is a known column
func (f Field) Valid() bool {
	for _, known := range AllFields {
		if f == known {
			return true
		}
	}
	return false
}

// NeedsExclusivity reports whether the column depends on the exclusive
// block count
func (f Field) NeedsExclusivity() bool {
	switch f {
	case FieldExclusiveBlocks, FieldSharedBlocks,
		FieldExclusiveSectors, FieldSharedSectors,
		FieldExclusiveBytes, FieldSharedBytes,
		FieldExclusive, FieldShared:
		return true
	}
	return false
}

// Human reports whether the column is shown in binary units in tables
func (f Field) Human() bool {
	return f == FieldMapped || f == FieldExclusive || f == FieldShared
}

// NeedsExclusivity reports whether any column needs the two pass scan
func NeedsExclusivity(fields []Field) bool {
	for _, f := range fields {
		if f.NeedsExclusivity() {
			return true
		}
	}
	return false
}

// Value returns the raw value of the column for one device. dataBlockSize
// is in sectors.
func (f Field) Value(stats analyzer.DeviceStats, dataBlockSize uint64) uint64 {
	sectors := func(blocks uint64) uint64 { return blocks * dataBlockSize }
	bytes := func(blocks uint64) uint64 { return sectors(blocks) * types.SectorSize }

	switch f {
	case FieldDev:
		return uint64(stats.Device.ID)
	case FieldMappedBlocks:
		return stats.Mapped
	case FieldExclusiveBlocks:
		return stats.Exclusive
	case FieldSharedBlocks:
		return stats.Shared
	case FieldMappedSectors:
		return sectors(stats.Mapped)
	case FieldExclusiveSectors:
		return sectors(stats.Exclusive)
	case FieldSharedSectors:
		return sectors(stats.Shared)
	case FieldMappedBytes, FieldMapped:
		return bytes(stats.Mapped)
	case FieldExclusiveBytes, FieldExclusive:
		return bytes(stats.Exclusive)
	case FieldSharedBytes, FieldShared:
		return bytes(stats.Shared)
	case FieldTransaction:
		return stats.Device.TransactionID
	case FieldCreateTime:
		return uint64(stats.Device.CreationTime)
	case FieldSnapTime:
		return uint64(stats.Device.SnapshotTime)
	default:
		panic(fmt.Sprintf("ls: unhandled field %s", f))
	}
}

// Format renders a raw column value for a table cell
func (f Field) Format(value uint64) string {
	if f.Human() {
		return units.BytesSize(float64(value))
	}
	return fmt.Sprintf("%d", value)
}
