package config

import (
	"fmt"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// CliConfig holds the command line arguments that are not config keys themselves.
type CliConfig struct {
	ConfigFile string
	Debug      bool
}

// flagBindings maps command line flags onto config keys.
var flagBindings = map[string]string{
	"listen":  "listen_address",
	"program": "program",
	"strict":  "strict",
}

// RegisterFlags defines the command line flags on fs and returns the values that are not bound to viper.
func RegisterFlags(fs *pflag.FlagSet) *CliConfig {
	args := &CliConfig{}
	fs.StringVarP(&args.ConfigFile, "config", "c", "", "Path to the config file")
	fs.BoolVarP(&args.Debug, "debug", "d", false, "Enable debug mode")
	fs.StringP("listen", "l", "", "Address to listen on (default :8000)")
	fs.StringP("program", "p", "", "Path to the dspgen program")
	fs.Bool("strict", false, "Report failures to the client instead of always answering 200")
	return args
}

// BindFlags makes the flags registered by RegisterFlags override the matching config keys when set.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for flag, key := range flagBindings {
		f := fs.Lookup(flag)
		if f == nil {
			return fmt.Errorf("flag --%s is not registered", flag)
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", flag, err)
		}
	}
	return nil
}
