package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureDirectoryIdempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch", "t071_151200_iw1")

	require.NoError(t, EnsureDirectory(dir))
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	// Recreating an existing directory must not fail.
	require.NoError(t, EnsureDirectory(dir))
}

func TestCheckFilePath(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "dem.tif")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	assert.NoError(t, CheckFilePath(file))
	assert.Error(t, CheckFilePath(filepath.Join(dir, "missing.tif")))
	assert.Error(t, CheckFilePath(dir))
}

func TestCheckWriteDirCreatesMissing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "product")
	require.NoError(t, CheckWriteDir(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestPolarizationModeFromSafeName(t *testing.T) {
	tests := []struct {
		name    string
		safe    string
		want    string
		wantErr bool
	}{
		{
			name: "dual pol",
			safe: "S1A_IW_SLC__1SDV_20220501T120000_20220501T120027_043011_05233F_D5C2.SAFE",
			want: "DV",
		},
		{
			name: "single pol",
			safe: "S1B_IW_SLC__1SSH_20210203T050607_20210203T050634_025500_030A1B_AB12.SAFE",
			want: "SH",
		},
		{
			name:    "not a SAFE name",
			safe:    "dem.tif",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PolarizationModeFromSafeName(tt.safe)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSortedKeys(t *testing.T) {
	m := map[string]int{"t071_151200_iw2": 1, "t071_151199_iw1": 2, "t005_009113_iw3": 3}
	assert.Equal(t, []string{"t005_009113_iw3", "t071_151199_iw1", "t071_151200_iw2"}, SortedKeys(m))
}
