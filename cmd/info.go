package cmd

import (
	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-thinpool/pkg/app/info"
)

var infoMetadataSnap bool

var infoCmd = &cobra.Command{
	Use:   "info <metadata-dev>",
	Short: "Summarize the pool superblock",
	Long: `Print the pool superblock: uuid, format version, transaction id, time,
data block size, metadata size, the held metadata snapshot and the number of
thin devices.

Examples:
  go-thinpool info /dev/mapper/pool_tmeta
  go-thinpool info /dev/mapper/pool_tmeta --metadata-snap -o yaml`,

	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInfo(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().BoolVarP(&infoMetadataSnap, "metadata-snap", "m", false, "read the held metadata snapshot")
}

func runInfo(cmd *cobra.Command, devicePath string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := newContext(cmd)
	if err := ctx.ValidateOutputFormat(); err != nil {
		return err
	}
	response, err := info.Handle(ctx, &info.Request{
		DevicePath:      devicePath,
		UseMetadataSnap: infoMetadataSnap,
		Exclusive:       config.Exclusive,
		CacheBlocks:     config.CacheBlocks,
	})
	if err != nil {
		return err
	}

	return info.FormatOutput(ctx.Out, response, ctx.OutputFormat)
}
