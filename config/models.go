package config

import "time"

// RouteConfig represents the configuration for a single dspgen flag route.
type RouteConfig struct {
	Description string `mapstructure:"description" yaml:"description,omitempty"`
	Numeric     bool   `mapstructure:"numeric" yaml:"numeric"`
	Disabled    bool   `mapstructure:"disabled" yaml:"disabled,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	ListenAddress   string                 `mapstructure:"listen_address"`
	Program         string                 `mapstructure:"program"`
	RoutePrefix     string                 `mapstructure:"route_prefix"`
	Routes          map[string]RouteConfig `mapstructure:"routes"`
	Strict          bool                   `mapstructure:"strict"`
	Validate        bool                   `mapstructure:"validate"`
	SplitFlag       bool                   `mapstructure:"split_flag"`
	ExecTimeout     time.Duration          `mapstructure:"exec_timeout"`
	QueueTimeout    time.Duration          `mapstructure:"queue_timeout"`
	ShutdownTimeout time.Duration          `mapstructure:"shutdown_timeout"`
	Concurrency     int                    `mapstructure:"concurrency"`
	RateLimit       float64                `mapstructure:"rate_limit"`
	RateBurst       int                    `mapstructure:"rate_burst"`
	LogLevel        string                 `mapstructure:"log_level"`
	LogFormat       string                 `mapstructure:"log_format"`
	Metrics         bool                   `mapstructure:"metrics"`
}

// ActiveRoutes returns the routes that are not disabled.
func (c *Config) ActiveRoutes() map[string]RouteConfig {
	out := make(map[string]RouteConfig, len(c.Routes))
	for key, route := range c.Routes {
		if route.Disabled {
			continue
		}
		out[key] = route
	}
	return out
}
