package config

import (
	"fmt"
	"gopkg.in/yaml.v3"
	"io"
)

type dumpedConfig struct {
	ListenAddress   string                 `yaml:"listen_address"`
	Program         string                 `yaml:"program"`
	RoutePrefix     string                 `yaml:"route_prefix"`
	Routes          map[string]RouteConfig `yaml:"routes"`
	Strict          bool                   `yaml:"strict"`
	Validate        bool                   `yaml:"validate"`
	SplitFlag       bool                   `yaml:"split_flag"`
	ExecTimeout     string                 `yaml:"exec_timeout"`
	QueueTimeout    string                 `yaml:"queue_timeout"`
	ShutdownTimeout string                 `yaml:"shutdown_timeout"`
	Concurrency     int                    `yaml:"concurrency"`
	RateLimit       float64                `yaml:"rate_limit"`
	RateBurst       int                    `yaml:"rate_burst"`
	LogLevel        string                 `yaml:"log_level"`
	LogFormat       string                 `yaml:"log_format"`
	Metrics         bool                   `yaml:"metrics"`
}

// Dump writes the effective configuration as YAML that Load accepts back.
func (c *Config) Dump(w io.Writer) error {
	out := dumpedConfig{
		ListenAddress:   c.ListenAddress,
		Program:         c.Program,
		RoutePrefix:     c.RoutePrefix,
		Routes:          c.Routes,
		Strict:          c.Strict,
		Validate:        c.Validate,
		SplitFlag:       c.SplitFlag,
		ExecTimeout:     c.ExecTimeout.String(),
		QueueTimeout:    c.QueueTimeout.String(),
		ShutdownTimeout: c.ShutdownTimeout.String(),
		Concurrency:     c.Concurrency,
		RateLimit:       c.RateLimit,
		RateBurst:       c.RateBurst,
		LogLevel:        c.LogLevel,
		LogFormat:       c.LogFormat,
		Metrics:         c.Metrics,
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	return enc.Close()
}
