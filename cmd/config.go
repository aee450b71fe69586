package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-thinpool/internal/disk"
	"github.com/deploymenttheory/go-thinpool/pkg/app"
)

// flagKeys maps command flags onto configuration keys
var flagKeys = map[string]string{
	"format":         "fields",
	"cache-mappings": "cache_mappings",
}

// loadConfig resolves configuration for cmd. Flags set on the command line
// override the environment and the config file.
func loadConfig(cmd *cobra.Command) (*disk.Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	for name, key := range flagKeys {
		if flag := cmd.Flags().Lookup(name); flag != nil && flag.Changed {
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, err
			}
		}
	}
	if flag := cmd.Flags().Lookup("no-headers"); flag != nil && flag.Changed {
		noHeaders, err := cmd.Flags().GetBool("no-headers")
		if err != nil {
			return nil, err
		}
		v.Set("headers", !noHeaders)
	}

	config, err := disk.LoadConfig(v)
	if err != nil {
		return nil, app.NewError(app.ErrCodeInvalidInput, "failed to load configuration", err)
	}
	return config, nil
}
