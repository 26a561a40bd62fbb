package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindEnvironment fills every flag the user did not set from its
// RTCONFIG_ environment variable. Flag names map to variables by upper-casing
// and replacing dashes, so --log-level reads RTCONFIG_LOG_LEVEL.
func BindEnvironment(cmd *cobra.Command) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Changed {
			return
		}
		if err := v.BindEnv(f.Name); err != nil {
			bindErr = err
			return
		}
		if !v.IsSet(f.Name) {
			return
		}
		if err := cmd.Flags().Set(f.Name, v.GetString(f.Name)); err != nil {
			bindErr = fmt.Errorf("invalid %s_%s: %w", EnvPrefix,
				strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_")), err)
		}
	})
	return bindErr
}
