// Package config loads command configuration from a file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"pipelined.dev/graph/rig"
)

// EnvPrefix is the prefix of environment variables. Nested keys use
// underscore, e.g. GRAPH_CHANNELS_OUT.
const EnvPrefix = "GRAPH"

// ErrInvalid is returned when configuration has invalid values.
var ErrInvalid = errors.New("invalid config")

// Config holds all command configuration.
type Config struct {
	SampleRate float64        `mapstructure:"sample_rate"`
	BlockSize  int            `mapstructure:"block_size"`
	Channels   ChannelsConfig `mapstructure:"channels"`
	Report     int            `mapstructure:"report_buffer"`
	Log        LogConfig      `mapstructure:"log"`
	Rig        rig.Rig        `mapstructure:"rig"`
}

// ChannelsConfig sets channel count of graph input and output.
type ChannelsConfig struct {
	In  int `mapstructure:"in"`
	Out int `mapstructure:"out"`
}

// LogConfig sets logging of commands. Level is a logrus level name.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("sample_rate", 44100)
	v.SetDefault("block_size", 512)
	v.SetDefault("channels.in", 2)
	v.SetDefault("channels.out", 2)
	v.SetDefault("report_buffer", 16)
	v.SetDefault("log.level", "info")
}

// Validate returns error if configuration cannot be used.
func (c *Config) Validate() error {
	var errs []error
	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("%w: sample_rate %v must be positive", ErrInvalid, c.SampleRate))
	}
	if c.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("%w: block_size %d must be positive", ErrInvalid, c.BlockSize))
	}
	for name, ch := range map[string]int{"channels.in": c.Channels.In, "channels.out": c.Channels.Out} {
		if ch != 1 && ch != 2 {
			errs = append(errs, fmt.Errorf("%w: %s %d must be 1 or 2", ErrInvalid, name, ch))
		}
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalid, err))
	}
	return errors.Join(errs...)
}

// Warnings returns values that are valid but likely unintended.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.BlockSize&(c.BlockSize-1) != 0 {
		warnings = append(warnings, fmt.Sprintf("block_size %d is not a power of two", c.BlockSize))
	}
	if len(c.Rig.Nodes) == 0 {
		warnings = append(warnings, "rig has no nodes")
	}
	return warnings
}

// Level returns parsed log level.
func (c *Config) Level() logrus.Level {
	l, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return l
}

// Load reads configuration from file and environment. Empty path means
// defaults and environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
