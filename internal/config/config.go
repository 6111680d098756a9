// Package config loads the manager's static and dynamic configuration
// from file and environment via github.com/spf13/viper, the way
// a long-running daemon built from this module is expected to be
// configured rather than wired together purely in code.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/revolution1/datablock/blockmgr"
)

// Defaults are scaled down from typical production extent/block sizes
// to values a demo/test data file can actually afford.
const (
	DefaultExtentSize           = 16 * 1024 * 1024
	DefaultBlockSize            = 4096
	DefaultNumActiveDataExtents = 4
	DefaultGCLowRatio           = 0.15
	DefaultGCHighRatio          = 0.5
	DefaultReadAheadEnable      = true
)

// File is the on-disk/env/flag shape config.Load reads, one level
// removed from blockmgr's own StaticConfig/DynamicConfig so the wire
// format doesn't have to change in lockstep with the manager's types.
type File struct {
	ExtentSize           int64   `mapstructure:"extent_size"`
	BlockSize            int64   `mapstructure:"block_size"`
	NumActiveDataExtents int     `mapstructure:"num_active_data_extents"`
	GCLowRatio           float64 `mapstructure:"gc_low_ratio"`
	GCHighRatio          float64 `mapstructure:"gc_high_ratio"`
	ReadAheadEnable      bool    `mapstructure:"read_ahead_enable"`
	DataFile             string  `mapstructure:"data_file"`
}

// Load reads configuration from path (if non-empty), then the
// DATABLOCK_-prefixed environment, applying the package defaults first.
// It does not validate gc_low_ratio/gc_high_ratio against each other;
// call Split and blockmgr.DynamicConfig.Validate for that.
func Load(path string) (File, error) {
	v := viper.New()
	v.SetDefault("extent_size", DefaultExtentSize)
	v.SetDefault("block_size", DefaultBlockSize)
	v.SetDefault("num_active_data_extents", DefaultNumActiveDataExtents)
	v.SetDefault("gc_low_ratio", DefaultGCLowRatio)
	v.SetDefault("gc_high_ratio", DefaultGCHighRatio)
	v.SetDefault("read_ahead_enable", DefaultReadAheadEnable)
	v.SetDefault("data_file", "datablock.dat")

	v.SetEnvPrefix("DATABLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return File{}, errors.Wrap(err, "config: read config file")
		}
	}

	var f File
	if err := v.Unmarshal(&f); err != nil {
		return File{}, errors.Wrap(err, "config: unmarshal")
	}
	return f, nil
}

// Split converts a loaded File into the Static/Dynamic pair
// blockmgr.New expects.
func Split(f File) (blockmgr.StaticConfig, blockmgr.DynamicConfig) {
	static := blockmgr.StaticConfig{
		ExtentSize:           f.ExtentSize,
		BlockSize:            f.BlockSize,
		NumActiveDataExtents: f.NumActiveDataExtents,
	}
	dynamic := blockmgr.DynamicConfig{
		GCLowRatio:      f.GCLowRatio,
		GCHighRatio:     f.GCHighRatio,
		ReadAheadEnable: f.ReadAheadEnable,
	}
	return static, dynamic
}
