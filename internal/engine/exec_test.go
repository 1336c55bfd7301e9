package engine

import (
	"path/filepath"
	"testing"

	"github.com/burstlab/s1-cslc-poc/internal/geogrid"
	"github.com/burstlab/s1-cslc-poc/internal/lut"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeometryArgs(t *testing.T) {
	args := geometryArgs(GeometryParams{Threshold: 1e-8, NumIter: 25, LinesPerBlock: 1000})
	assert.Equal(t, []string{
		"--threshold", "1e-08",
		"--numiter", "25",
		"--lines-per-block", "1000",
	}, args)
}

func TestGridArgs(t *testing.T) {
	g := geogrid.GeoGrid{
		StartX: 400000, StartY: 5420000,
		SpacingX: 5, SpacingY: -10,
		Width: 20000, Length: 2000, EPSG: 32631,
	}
	args := gridArgs(g)
	assert.Contains(t, args, "--grid-start-x")
	assert.Contains(t, args, "400000")
	assert.Contains(t, args, "-10")
	assert.Contains(t, args, "32631")
	assert.Len(t, args, 14)
}

func TestGpuArgs(t *testing.T) {
	e := NewExec("isce3-burst", GPU{})
	assert.Empty(t, e.gpuArgs())

	e = NewExec("isce3-burst", GPU{Enabled: true, ID: 1})
	assert.Equal(t, []string{"--gpu", "--gpu-id", "1"}, e.gpuArgs())
}

func TestWriteLUT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "range_lut.json")
	l := lut.LUT2d{
		XStart: 800000, YStart: 43200,
		XSpacing: 200, YSpacing: 0.25,
		Width: 2, Length: 1,
		Data: []float64{0.1, 0.2},
	}
	require.NoError(t, writeLUT(path, l))
	assert.FileExists(t, path)
}
