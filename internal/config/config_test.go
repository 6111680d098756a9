package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaultsWithNoFile(t *testing.T) {
	f, err := Load("")
	require.NoError(t, err)
	require.Equal(t, int64(DefaultExtentSize), f.ExtentSize)
	require.Equal(t, int64(DefaultBlockSize), f.BlockSize)
	require.Equal(t, DefaultNumActiveDataExtents, f.NumActiveDataExtents)
	require.Equal(t, DefaultGCLowRatio, f.GCLowRatio)
	require.Equal(t, DefaultGCHighRatio, f.GCHighRatio)
	require.Equal(t, DefaultReadAheadEnable, f.ReadAheadEnable)
}

func TestLoadReadsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "datablock.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extent_size: 1048576\nblock_size: 512\n"), 0o600))

	f, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, int64(1048576), f.ExtentSize)
	require.Equal(t, int64(512), f.BlockSize)
	// Untouched settings keep their defaults.
	require.Equal(t, DefaultNumActiveDataExtents, f.NumActiveDataExtents)
}

func TestLoadEnvOverridesDefault(t *testing.T) {
	t.Setenv("DATABLOCK_BLOCK_SIZE", "8192")
	f, err := Load("")
	require.NoError(t, err)
	require.Equal(t, int64(8192), f.BlockSize)
}

func TestSplitMapsFileIntoStaticAndDynamic(t *testing.T) {
	f := File{
		ExtentSize:           1 << 20,
		BlockSize:            4096,
		NumActiveDataExtents: 3,
		GCLowRatio:           0.1,
		GCHighRatio:          0.4,
		ReadAheadEnable:      true,
	}
	static, dynamic := Split(f)
	require.Equal(t, int64(1<<20), static.ExtentSize)
	require.Equal(t, int64(4096), static.BlockSize)
	require.Equal(t, 3, static.NumActiveDataExtents)
	require.Equal(t, 0.1, dynamic.GCLowRatio)
	require.Equal(t, 0.4, dynamic.GCHighRatio)
	require.True(t, dynamic.ReadAheadEnable)
}
