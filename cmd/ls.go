package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-thinpool/internal/disk"
	"github.com/deploymenttheory/go-thinpool/pkg/app"
	"github.com/deploymenttheory/go-thinpool/pkg/app/ls"
)

var (
	lsFields        string
	lsMetadataSnap  bool
	lsNoHeaders     bool
	lsCacheMappings bool
)

var lsCmd = &cobra.Command{
	Use:   "ls <metadata-dev>",
	Short: "List thin devices and their block usage",
	Long: `List the thin devices in a pool, one row per device in id order.

Fields:
  DEV                                      device id
  MAPPED_BLOCKS, MAPPED_SECTORS, MAPPED_BYTES
  EXCLUSIVE_BLOCKS, EXCLUSIVE_SECTORS, EXCLUSIVE_BYTES
  SHARED_BLOCKS, SHARED_SECTORS, SHARED_BYTES
  MAPPED, EXCLUSIVE, SHARED                human readable sizes
  TRANSACTION, CREATE_TIME, SNAP_TIME      device details

Exclusive and shared counts need a scan of every mapping in the pool and are
only computed when one of their fields is requested.

Examples:
  # Default fields
  go-thinpool ls /dev/mapper/pool_tmeta

  # Sharing between a volume and its snapshots
  go-thinpool ls /dev/mapper/pool_tmeta --format DEV,MAPPED,EXCLUSIVE,SHARED

  # Read the metadata snapshot of a live pool
  go-thinpool ls /dev/mapper/pool_tmeta -m -o json`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runLs(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)

	lsCmd.Flags().StringVar(&lsFields, "format", "", "comma separated fields to report (default "+disk.DefaultFields+")")
	lsCmd.Flags().BoolVarP(&lsMetadataSnap, "metadata-snap", "m", false, "read the held metadata snapshot")
	lsCmd.Flags().BoolVar(&lsNoHeaders, "no-headers", false, "omit the table header row")
	lsCmd.Flags().BoolVar(&lsCacheMappings, "cache-mappings", false, "keep mappings in memory between passes instead of walking twice")
}

func runLs(cmd *cobra.Command, devicePath string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	fields, err := ls.ParseFields(config.Fields)
	if err != nil {
		return app.NewError(app.ErrCodeInvalidInput, "invalid --format", err)
	}

	ctx := newContext(cmd)
	if err := ctx.ValidateOutputFormat(); err != nil {
		return err
	}
	request := &ls.Request{
		DevicePath:      devicePath,
		Fields:          fields,
		Headers:         config.Headers,
		UseMetadataSnap: lsMetadataSnap,
		Exclusive:       config.Exclusive,
		CacheBlocks:     config.CacheBlocks,
		VerifyCounts:    config.VerifyCounts,
		CacheMappings:   config.CacheMappings,
	}

	response, err := ls.Handle(ctx, request)
	if err != nil {
		return err
	}

	return ls.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
