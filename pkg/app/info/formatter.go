package info

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/docker/go-units"
	"gopkg.in/yaml.v3"
)

// FormatOutput formats a superblock summary according to output format
func FormatOutput(w io.Writer, response *Response, format string) error {
	switch format {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(response)
	case "yaml":
		encoder := yaml.NewEncoder(w)
		defer encoder.Close()
		encoder.SetIndent(2)
		return encoder.Encode(response)
	case "table", "":
		return formatTable(w, response)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// formatTable formats the summary as aligned key/value lines
func formatTable(w io.Writer, r *Response) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "Device:\t%s\n", r.DevicePath)
	fmt.Fprintf(tw, "Exclusive open:\t%t\n", r.Exclusive)
	fmt.Fprintf(tw, "Superblock:\tblock %d\n", r.SuperblockAt)
	fmt.Fprintf(tw, "UUID:\t%s\n", r.UUID)
	fmt.Fprintf(tw, "Version:\t%d\n", r.Version)
	fmt.Fprintf(tw, "Time:\t%d\n", r.Time)
	fmt.Fprintf(tw, "Transaction:\t%d\n", r.TransactionID)
	fmt.Fprintf(tw, "Data block size:\t%d sectors (%s)\n", r.DataBlockSize, units.BytesSize(float64(r.DataBlockBytes)))
	fmt.Fprintf(tw, "Metadata blocks:\t%d\n", r.MetadataBlocks)
	if r.MetadataSnap != 0 {
		fmt.Fprintf(tw, "Metadata snapshot:\tblock %d\n", r.MetadataSnap)
	} else {
		fmt.Fprintf(tw, "Metadata snapshot:\tnone\n")
	}
	fmt.Fprintf(tw, "Devices:\t%d\n", r.DeviceCount)

	return tw.Flush()
}
