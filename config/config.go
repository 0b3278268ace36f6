package config

import (
	"errors"
	"fmt"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"strings"
	"time"
)

const (
	EnvPrefix      = "DSPGEND"
	DefaultProgram = "/home/pi/development/waveminer/dspgen"
)

// New returns a viper instance with every default and the environment overrides registered.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("listen_address", ":8000")
	v.SetDefault("program", DefaultProgram)
	v.SetDefault("route_prefix", "/dspgen/")
	v.SetDefault("routes", map[string]any{
		"f": map[string]any{"description": "frequency in Hz", "numeric": true},
		"a": map[string]any{"description": "amplitude, 0.0 to 1.0", "numeric": true},
	})
	v.SetDefault("strict", false)
	v.SetDefault("validate", false)
	v.SetDefault("split_flag", false)
	v.SetDefault("exec_timeout", time.Duration(0))
	v.SetDefault("queue_timeout", 75*time.Second)
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("concurrency", 1)
	v.SetDefault("rate_limit", 0.0)
	v.SetDefault("rate_burst", 1)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("metrics", true)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file (if any), merges defaults, flags and environment, and validates the result.
// With an empty path the file is looked up as dspgend.yaml in /etc/dspgend and the working directory;
// a missing file is not an error in that case.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("dspgend")
		v.AddConfigPath("/etc/dspgend")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// Watch reloads the configuration whenever the file in use changes.
// It does nothing when no config file was found.
func Watch(v *viper.Viper, onChange func(*Config, error)) bool {
	if v.ConfigFileUsed() == "" {
		return false
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		log.Infof("Config file %s changed (%s), reloading", e.Name, e.Op)
		onChange(decode(v))
	})
	v.WatchConfig()
	return true
}

func decode(v *viper.Viper) (*Config, error) {
	var configuration Config
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := configuration.check(); err != nil {
		return nil, err
	}
	return &configuration, nil
}

// check validates the values that the server cannot start without.
func (c *Config) check() error {
	if c.ListenAddress == "" {
		return errors.New("listen_address is required")
	}
	if strings.TrimSpace(c.Program) == "" {
		return errors.New("program is required")
	}
	if !strings.HasPrefix(c.RoutePrefix, "/") || !strings.HasSuffix(c.RoutePrefix, "/") {
		return fmt.Errorf("route_prefix %q must begin and end with /", c.RoutePrefix)
	}
	for key := range c.Routes {
		if key == "" || strings.Contains(key, "/") {
			return fmt.Errorf("invalid route key %q", key)
		}
	}
	if len(c.ActiveRoutes()) == 0 {
		log.Warnln("No routes are enabled, every request will be unmatched")
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.ExecTimeout < 0 || c.QueueTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate_limit must not be negative")
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return errors.New("rate_burst must be at least 1 when rate_limit is set")
	}
	return nil
}
